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

// ShopProfiles reads and edits the caller's shop.
type ShopProfiles interface {
	GetByID(ctx context.Context, id string) (*model.Shop, error)
	UpdateProfile(ctx context.Context, shopID, userID string, upd repository.ShopUpdate, now time.Time) (*model.Shop, error)
}

// ShopHandler serves /api/shop.
type ShopHandler struct {
	Shops ShopProfiles
	Now   func() time.Time
}

type updateShopReq struct {
	Name         string  `json:"name" validate:"required,min=1"`
	Phone        string  `json:"phone" validate:"required,min=3"`
	OwnerName    *string `json:"ownerName" validate:"omitempty,min=1"`
	LocationNote *string `json:"locationNote" validate:"omitempty,max=500"`
	Email        *string `json:"email" validate:"omitempty,email"`
}

// Get returns the caller's shop with the owner's name.
func (h *ShopHandler) Get(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	shop, err := h.Shops.GetByID(ctx, u.ShopID)
	if errors.Is(err, repository.ErrNotFound) {
		return httpx.LegacyError(c, http.StatusNotFound, "Shop not found.")
	}
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, shopWithOwnerView{shopView: toShopView(shop), OwnerName: u.Name})
}

// Update edits the shop profile.  locationNote is always written, so an
// omitted or null value clears it.
func (h *ShopHandler) Update(c echo.Context) error {
	var req updateShopReq
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.LegacyError(c, http.StatusBadRequest, "Invalid body.")
	}
	u := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	shop, err := h.Shops.UpdateProfile(ctx, u.ShopID, u.ID, repository.ShopUpdate{
		Name:         req.Name,
		Phone:        req.Phone,
		LocationNote: req.LocationNote,
		Email:        req.Email,
		OwnerName:    req.OwnerName,
	}, now)
	if errors.Is(err, repository.ErrNotFound) {
		return httpx.LegacyError(c, http.StatusNotFound, "Shop not found.")
	}
	if err != nil {
		return err
	}

	ownerName := u.Name
	if req.OwnerName != nil {
		ownerName = *req.OwnerName
	}
	return httpx.OK(c, http.StatusOK, shopWithOwnerView{shopView: toShopView(shop), OwnerName: ownerName})
}
