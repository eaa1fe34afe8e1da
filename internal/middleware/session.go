package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/logger"
	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/service"
)

// SessionValidator resolves a raw cookie token.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*model.SessionDetail, error)
}

// SessionAuth attaches the session named by the cookie, if any.  Anonymous
// requests pass through untouched; RequireAuth decides whether they may
// continue.  An idle-expired session clears the cookie and answers 401
// SESSION_EXPIRED.  A valid session re-issues the cookie so its max-age
// rolls with activity.
func SessionAuth(sessions SessionValidator, cookie SessionCookie) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := cookie.Read(c)
			if token == "" {
				return next(c)
			}
			detail, err := sessions.Validate(c.Request().Context(), token)
			if errors.Is(err, service.ErrSessionExpired) {
				cookie.Clear(c)
				return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeSessionExpired, "Session expired due to inactivity.", nil)
			}
			if err != nil {
				logger.FromEcho(c).Error("session lookup failed", zap.Error(err))
				return httpx.Internal(c)
			}
			if detail == nil {
				return next(c)
			}

			c.Set(keySession, detail)
			c.Set(keyUserID, detail.User.ID)
			c.Set(keyRawToken, token)
			cookie.Set(c, token)
			return next(c)
		}
	}
}

// RequireAuth rejects requests without a validated session.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentSession(c) == nil {
			return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeUnauthorized, "Authentication required.", nil)
		}
		return next(c)
	}
}
