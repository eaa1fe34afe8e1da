package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mysocial/shop-api/internal/httpx"
)

// OriginCheck requires state-changing requests to come from allowed.  An
// empty allowed origin disables the check.
func OriginCheck(allowed string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				return next(c)
			}
			if allowed == "" {
				return next(c)
			}
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if origin == "" {
				return httpx.Fail(c, http.StatusForbidden, httpx.CodeForbidden, "Missing Origin header.", nil)
			}
			if origin != allowed {
				return httpx.Fail(c, http.StatusForbidden, httpx.CodeForbidden, "Invalid Origin.", nil)
			}
			return next(c)
		}
	}
}
