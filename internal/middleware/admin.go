package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/logger"
	"github.com/mysocial/shop-api/internal/service"
)

// VerificationChecker reports whether a session passed admin step-up.
type VerificationChecker interface {
	IsVerified(ctx context.Context, sessionID string) (bool, error)
}

// RequireAdmin lets through only the configured operator: the stored admin
// flag and a live match on both email and phone.
func RequireAdmin(identity service.AdminIdentity) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil || !u.IsAdmin || !identity.Matches(u.Email, u.Phone) {
				return httpx.LegacyError(c, http.StatusForbidden, "Admin only.")
			}
			return next(c)
		}
	}
}

// RequireAdminVerified additionally demands a live step-up verification
// for the current session.
func RequireAdminVerified(verifier VerificationChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := CurrentSession(c)
			if s == nil {
				return httpx.LegacyError(c, http.StatusUnauthorized, "Authentication required.")
			}
			ok, err := verifier.IsVerified(c.Request().Context(), s.Session.ID)
			if err != nil {
				logger.FromEcho(c).Error("admin verification lookup failed", zap.Error(err))
				return httpx.Internal(c)
			}
			if !ok {
				return httpx.LegacyError(c, http.StatusForbidden, "Admin verification required")
			}
			return next(c)
		}
	}
}
