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

// Notifications is the shop-scoped notification store.
type Notifications interface {
	ListForShop(ctx context.Context, shopID string) ([]model.Notification, error)
	CountUnread(ctx context.Context, shopID string) (int, error)
	MarkRead(ctx context.Context, shopID, id string, at time.Time) error
}

// NotificationHandler serves /api/notifications.
type NotificationHandler struct {
	Notifications Notifications
	Now           func() time.Time
}

func (h *NotificationHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// List returns every notification of the caller's shop, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Notifications.ListForShop(ctx, u.ShopID)
	if err != nil {
		return err
	}
	out := make([]notificationView, 0, len(items))
	for _, n := range items {
		out = append(out, toNotificationView(n))
	}
	return httpx.OK(c, http.StatusOK, out)
}

// UnreadCount returns {unread}.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notifications.CountUnread(ctx, u.ShopID)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]int{"unread": n})
}

// MarkRead marks one unread notification of the caller's shop as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Notifications.MarkRead(ctx, u.ShopID, c.Param("id"), h.now())
	if errors.Is(err, repository.ErrNotFound) {
		return httpx.LegacyError(c, http.StatusNotFound, "Notification not found.")
	}
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"read": true})
}
