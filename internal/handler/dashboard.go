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

// DashboardSource loads what the dashboard summary shows.
type DashboardSource interface {
	GetByID(ctx context.Context, id string) (*model.Shop, error)
	DashboardCounts(ctx context.Context, shopID string, now time.Time) (model.DashboardCounts, error)
}

// DashboardHandler serves /api/dashboard.
type DashboardHandler struct {
	Shops         DashboardSource
	Subscriptions middleware.SubscriptionEvaluator
	Now           func() time.Time
}

type dashboardCounts struct {
	Inventory           int `json:"inventory"`
	Dealers             int `json:"dealers"`
	Consignments        int `json:"consignments"`
	OverdueConsignments int `json:"overdueConsignments"`
}

type dashboardUser struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"isAdmin"`
}

type dashboardResp struct {
	User                dashboardUser         `json:"user"`
	Shop                *shopView             `json:"shop"`
	Subscription        *subscriptionWithFlag `json:"subscription"`
	Counts              dashboardCounts       `json:"counts"`
	UnreadNotifications int                   `json:"unreadNotifications"`
}

// Summary returns the landing-page overview for the caller's shop.
func (h *DashboardHandler) Summary(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	shop, err := h.Shops.GetByID(ctx, u.ShopID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	state, err := h.Subscriptions.Evaluate(ctx, u.ShopID)
	if err != nil {
		return err
	}
	counts, err := h.Shops.DashboardCounts(ctx, u.ShopID, now)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, dashboardResp{
		User:         dashboardUser{ID: u.ID, IsAdmin: u.IsAdmin},
		Shop:         toShopView(shop),
		Subscription: withViewOnly(state.Subscription, state.ViewOnly),
		Counts: dashboardCounts{
			Inventory:           counts.InventoryItems,
			Dealers:             counts.Dealers,
			Consignments:        counts.Consignments,
			OverdueConsignments: counts.OverdueConsignments,
		},
		UnreadNotifications: counts.UnreadNotifications,
	})
}
