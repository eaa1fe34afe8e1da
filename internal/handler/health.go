package handler // declare the package name; contains HTTP handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mysocial/shop-api/internal/httpx"
)

// Health is a liveness endpoint for load balancers and monitoring.  It
// touches no dependencies and always answers 200.
func Health(c echo.Context) error {
	return httpx.OK(c, http.StatusOK, map[string]string{"status": "ok"})
}
