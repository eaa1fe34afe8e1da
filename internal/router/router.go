package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/mysocial/shop-api/internal/handler"
	"github.com/mysocial/shop-api/internal/middleware"
)

// Handlers groups every handler the API exposes.
type Handlers struct {
	Auth         *handler.AuthHandler
	Shop         *handler.ShopHandler
	Subscription *handler.SubscriptionHandler
	Dashboard    *handler.DashboardHandler
	Security     *handler.SecurityHandler
	Notification *handler.NotificationHandler
	Admin        *handler.AdminHandler
}

// Guards are the route-level middleware built from configuration.
// SessionAuth and SubscriptionGate run globally and are not listed here.
type Guards struct {
	AuthRateLimit echo.MiddlewareFunc
	Admin         echo.MiddlewareFunc
	AdminVerified echo.MiddlewareFunc
}

// Register mounts every /api route on e.
func Register(e *echo.Echo, h Handlers, g Guards) {
	api := e.Group("/api")
	api.GET("/health", handler.Health)

	RegisterAuth(api, h.Auth, g)

	shop := api.Group("/shop", middleware.RequireAuth)
	shop.GET("/me", h.Shop.Get)
	shop.PATCH("/me", h.Shop.Update)

	sub := api.Group("/subscription", middleware.RequireAuth)
	sub.GET("/payment-info", h.Subscription.PaymentInfo)
	sub.GET("/status", h.Subscription.Status)
	sub.POST("/payment-request", h.Subscription.CreatePaymentRequest)

	api.GET("/dashboard/summary", h.Dashboard.Summary, middleware.RequireAuth)

	sec := api.Group("/security", middleware.RequireAuth)
	sec.GET("/devices", h.Security.ListDevices)
	sec.POST("/devices/:id/revoke", h.Security.RevokeDevice)

	notes := api.Group("/notifications", middleware.RequireAuth)
	notes.GET("", h.Notification.List)
	notes.GET("/unread-count", h.Notification.UnreadCount)
	notes.PATCH("/:id/read", h.Notification.MarkRead)

	RegisterAdmin(api, h.Admin, g)
}

// RegisterAuth mounts /api/auth behind the stricter auth rate limit.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, g Guards) {
	auth := api.Group("/auth")
	if g.AuthRateLimit != nil {
		auth.Use(g.AuthRateLimit)
	}
	auth.POST("/signup", a.Signup)
	auth.POST("/login", a.Login)
	auth.POST("/forgot-password", a.ForgotPassword)
	auth.POST("/reset-password", a.ResetPassword)
	auth.POST("/logout", a.Logout)
	auth.GET("/me", a.Me, middleware.RequireAuth)

	auth.POST("/request-otp", handler.OTPDisabled)
	auth.POST("/verify-otp", handler.OTPDisabled)
	auth.POST("/set-password", handler.OTPDisabled)
}

// RegisterAdmin mounts /api/admin.  Only the step-up endpoints skip the
// verified-session check.
func RegisterAdmin(api *echo.Group, a *handler.AdminHandler, g Guards) {
	admin := api.Group("/admin", middleware.RequireAuth, g.Admin)
	admin.GET("/verification-status", a.VerificationStatus)
	admin.POST("/verify-password", a.VerifyPassword)

	v := admin.Group("", g.AdminVerified)
	v.GET("/stats", a.Stats)
	v.GET("/payment-requests", a.ListPaymentRequests)
	v.POST("/payment-requests/:id/approve", a.ApprovePaymentRequest)
	v.POST("/payment-requests/:id/reject", a.RejectPaymentRequest)
	v.GET("/shops", a.ListShops)
	v.POST("/shops/:shopId/activate", a.ActivateShop)
	v.POST("/shops/:shopId/extend-trial", a.ExtendTrial)
	v.POST("/shops/:shopId/suspend", a.SuspendShop)
	v.DELETE("/shops/:shopId", a.DeleteShop)
	v.GET("/audit", a.ListAudit)
	v.POST("/support/send-password-reset", a.SendPasswordReset)
	v.POST("/utils/normalize-trials-to-7-days", a.NormalizeTrials)
}
