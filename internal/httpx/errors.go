package httpx

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/logger"
)

// ErrorHandler is the echo.HTTPErrorHandler for the API.  Unknown routes
// become 404 NOT_FOUND, echo's own 4xx errors keep their status, and
// everything else is logged and answered with a bare 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Code == http.StatusNotFound:
			_ = Fail(c, http.StatusNotFound, CodeNotFound, "Not found.", nil)
			return
		case he.Code == http.StatusUnauthorized:
			_ = Fail(c, he.Code, CodeUnauthorized, "Authentication required.", nil)
			return
		case he.Code == http.StatusTooManyRequests:
			_ = Fail(c, he.Code, CodeForbidden, "Too many requests, please try again later.", nil)
			return
		case he.Code >= 400 && he.Code < 500:
			_ = Fail(c, he.Code, CodeValidation, http.StatusText(he.Code), nil)
			return
		}
	}

	logger.FromEcho(c).Error("unhandled error", zap.Error(err))
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(http.StatusInternalServerError)
		return
	}
	_ = Internal(c)
}
