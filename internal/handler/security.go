package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/middleware"
	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
)

// Devices lists and revokes a user's authorized devices.
type Devices interface {
	ListActive(ctx context.Context, userID string) ([]model.AuthorizedDevice, error)
	Revoke(ctx context.Context, userID, deviceID string, at time.Time) error
}

// SecurityHandler serves /api/security.
type SecurityHandler struct {
	Devices Devices
	Now     func() time.Time
}

// ListDevices returns the caller's live devices, flagging the current one.
func (h *SecurityHandler) ListDevices(c echo.Context) error {
	s := middleware.CurrentSession(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	devices, err := h.Devices.ListActive(ctx, s.User.ID)
	if err != nil {
		return err
	}
	out := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceView{
			ID:         d.ID,
			Label:      d.Label,
			LastSeenAt: d.LastSeenAt,
			CreatedAt:  d.CreatedAt,
			Current:    d.ID == s.Session.DeviceID,
		})
	}
	return httpx.OK(c, http.StatusOK, out)
}

// RevokeDevice revokes one of the caller's devices and every session on it.
func (h *SecurityHandler) RevokeDevice(c echo.Context) error {
	s := middleware.CurrentSession(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	err := h.Devices.Revoke(ctx, s.User.ID, c.Param("id"), now)
	if errors.Is(err, repository.ErrNotFound) {
		return httpx.Fail(c, http.StatusNotFound, httpx.CodeNotFound, "Device not found.", nil)
	}
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"revoked": true})
}
