package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/logger"
	"github.com/mysocial/shop-api/internal/metrics"
	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
	"github.com/mysocial/shop-api/internal/service"
)

// ShopLoader loads the tenant of the current user.
type ShopLoader interface {
	GetByID(ctx context.Context, id string) (*model.Shop, error)
}

// SubscriptionEvaluator returns a shop's current subscription state.
type SubscriptionEvaluator interface {
	Evaluate(ctx context.Context, shopID string) (service.SubscriptionState, error)
}

// Paths a view-only shop may still write to, so it can pay its way out.
var viewOnlyWritable = []string{
	"/api/subscription/payment-request",
	"/api/admin/payment-requests",
}

func isSafeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

func hasAnyPrefix(path string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// SubscriptionGate enforces view-only mode.  It must run after SessionAuth.
//
// Order matters:
//  1. anonymous requests, admin users and /api/admin pass untouched;
//  2. the shop and subscription are loaded and attached;
//  3. /api/auth and /api/security always pass;
//  4. without a subscription only reads and /api/export pass;
//  5. a view-only shop may read, export, and submit or decide payments.
func SubscriptionGate(shops ShopLoader, subs SubscriptionEvaluator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			path := c.Request().URL.Path
			if user == nil || user.IsAdmin || strings.HasPrefix(path, "/api/admin") {
				return next(c)
			}

			ctx := c.Request().Context()
			shop, err := shops.GetByID(ctx, user.ShopID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				logger.FromEcho(c).Error("gate: load shop", zap.Error(err))
				return httpx.Internal(c)
			}
			if shop != nil {
				c.Set(keyShop, shop)
			}
			state, err := subs.Evaluate(ctx, user.ShopID)
			if err != nil {
				logger.FromEcho(c).Error("gate: evaluate subscription", zap.Error(err))
				return httpx.Internal(c)
			}
			c.Set(keySubscription, state.Subscription)
			c.Set(keyViewOnly, state.ViewOnly)

			if hasAnyPrefix(path, "/api/auth", "/api/security") {
				return next(c)
			}
			method := c.Request().Method

			if state.Subscription == nil {
				if isSafeMethod(method) || strings.HasPrefix(path, "/api/export") {
					return next(c)
				}
				metrics.ViewOnlyBlocked.WithLabelValues("no_subscription").Inc()
				return httpx.ViewOnlyBlocked(c)
			}

			if !state.ViewOnly {
				return next(c)
			}
			if isSafeMethod(method) || strings.HasPrefix(path, "/api/export") || hasAnyPrefix(path, viewOnlyWritable...) {
				return next(c)
			}
			metrics.ViewOnlyBlocked.WithLabelValues(strings.ToLower(string(state.Subscription.Status))).Inc()
			return httpx.ViewOnlyBlocked(c)
		}
	}
}
