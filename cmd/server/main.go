package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/config"
	"github.com/mysocial/shop-api/internal/database"
	"github.com/mysocial/shop-api/internal/handler"
	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/logger"
	"github.com/mysocial/shop-api/internal/metrics"
	"github.com/mysocial/shop-api/internal/middleware"
	"github.com/mysocial/shop-api/internal/queue"
	"github.com/mysocial/shop-api/internal/repository"
	"github.com/mysocial/shop-api/internal/router"
	"github.com/mysocial/shop-api/internal/service"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg, 5*time.Second)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		log.Fatal("schema migration failed", zap.Error(err))
	}

	// Redis is optional: without it step-up lives in memory and rate
	// limiting is off.
	rdb := config.NewRedisClient(config.RedisOptions())
	var verifications service.VerificationStore
	if rdb != nil {
		defer rdb.Close()
		verifications = service.NewRedisVerificationStore(rdb, service.AdminVerificationTTL)
		log.Info("redis connected")
	} else {
		verifications = service.NewMemoryVerificationStore(service.AdminVerificationTTL)
		log.Warn("redis unavailable; admin step-up kept in memory, rate limiting disabled")
	}

	bg := service.NewBackground(log, 10*time.Second)

	// Repositories
	users := repository.NewUserRepo(db)
	sessionRepo := repository.NewSessionRepo(db)
	devices := repository.NewDeviceRepo(db)
	shops := repository.NewShopRepo(db)
	subs := repository.NewSubscriptionRepo(db)
	payments := repository.NewPaymentRequestRepo(db)
	audit := repository.NewAuditRepo(db)
	resetTokens := repository.NewResetTokenRepo(db)
	notifications := repository.NewNotificationRepo(db)

	// Services
	sessions := service.NewSessionManager(sessionRepo, service.NewDeviceBinder(devices), bg, log)
	subscriptions := service.NewSubscriptionService(subs, bg)
	verifier := service.NewAdminVerifier(verifications, cfg.Admin.Password)
	identity := service.AdminIdentity{Email: cfg.Admin.Email, Phone: cfg.Admin.Phone}
	mailer := service.NewMailer(cfg.SMTP, log)

	var notifier service.ResetNotifier = service.DirectNotifier{Mailer: mailer}
	if cfg.RabbitURL != "" {
		notifier = service.NewQueuePublisher(cfg.RabbitURL, log)
		go func() {
			deliver := func(ctx context.Context, ev queue.PasswordResetRequestedEvent) error {
				return service.DeliverResetEmail(ctx, mailer, ev)
			}
			if err := queue.StartPasswordResetConsumer(ctx, cfg.RabbitURL, deliver, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("reset consumer stopped", zap.Error(err))
			}
		}()
	}
	credentials := service.NewCredentialService(users, resetTokens, notifier, service.CredentialOptions{
		BcryptCost: cfg.BcryptCost,
		AppBaseURL: cfg.AppBaseURL,
		Production: cfg.IsProduction(),
	}, log)

	cookie := middleware.SessionCookie{Name: cfg.SessionCookieName}

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpx.NewValidator()
	e.HTTPErrorHandler = httpx.ErrorHandler

	e.Use(middleware.RequestID)
	e.Use(logger.Middleware(log))
	e.Use(metrics.Middleware())
	e.Use(echomw.Recover())
	e.Use(echomw.Secure())
	if cfg.WebOrigin != "" {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     []string{cfg.WebOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderXRequestID, "X-Device-Fingerprint", "X-Platform"},
			AllowCredentials: true,
		}))
	}
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.OriginCheck(cfg.WebOrigin))
	e.Use(middleware.NewTokenBucket(config.GlobalRateLimit(), rdb))
	e.Use(middleware.SessionAuth(sessions, cookie))
	e.Use(middleware.SubscriptionGate(shops, subscriptions))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	router.Register(e, router.Handlers{
		Auth: &handler.AuthHandler{
			Users:         users,
			Shops:         shops,
			Subscriptions: subscriptions,
			Sessions:      sessions,
			Credentials:   credentials,
			Verifications: verifier,
			Identity:      identity,
			Cookie:        cookie,
		},
		Shop: &handler.ShopHandler{Shops: shops},
		Subscription: &handler.SubscriptionHandler{
			Payment:       cfg.Payment,
			Subscriptions: subscriptions,
			Requests:      payments,
		},
		Dashboard:    &handler.DashboardHandler{Shops: shops, Subscriptions: subscriptions},
		Security:     &handler.SecurityHandler{Devices: devices},
		Notification: &handler.NotificationHandler{Notifications: notifications},
		Admin: &handler.AdminHandler{
			StepUp:        verifier,
			Payments:      payments,
			Subscriptions: subs,
			Shops:         shops,
			Audit:         audit,
			Support:       credentials,
		},
	}, router.Guards{
		AuthRateLimit: middleware.NewTokenBucket(config.AuthRateLimit(), rdb),
		Admin:         middleware.RequireAdmin(identity),
		AdminVerified: middleware.RequireAdminVerified(verifier),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	bg.Wait()
}
