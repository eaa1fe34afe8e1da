package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mysocial/shop-api/internal/config"
	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/middleware"
	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
)

func TestShopGetAndUpdate(t *testing.T) {
	shops := newFakeShops()
	h := &ShopHandler{Shops: shops, Now: clock}
	e := newTestEcho(defaultSessions())
	e.GET("/api/shop/me", h.Get, middleware.RequireAuth)
	e.PATCH("/api/shop/me", h.Update, middleware.RequireAuth)

	_, env := call(t, e, http.MethodGet, "/api/shop/me", "owner-token", "")
	var got struct {
		Name      string `json:"name"`
		OwnerName string `json:"ownerName"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Kofi Phones", got.Name)
	assert.Equal(t, "Kofi Mensah", got.OwnerName)

	rec, env := call(t, e, http.MethodPatch, "/api/shop/me", "owner-token",
		`{"name":"Kofi Phones & Repairs","phone":"0241234567","ownerName":"Kofi A. Mensah"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Name         string  `json:"name"`
		OwnerName    string  `json:"ownerName"`
		LocationNote *string `json:"locationNote"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Kofi Phones & Repairs", updated.Name)
	assert.Equal(t, "Kofi A. Mensah", updated.OwnerName)
	assert.Nil(t, updated.LocationNote)
	require.Len(t, shops.updates, 1)
	assert.Nil(t, shops.updates[0].LocationNote)

	rec, env = call(t, e, http.MethodPatch, "/api/shop/me", "owner-token", `{"name":"","phone":"0241234567"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid body.", env.legacyMessage())
}

func TestShopGetMissingShop(t *testing.T) {
	h := &ShopHandler{Shops: &fakeShops{shops: map[string]*model.Shop{}}}
	e := newTestEcho(defaultSessions())
	e.GET("/api/shop/me", h.Get, middleware.RequireAuth)

	rec, env := call(t, e, http.MethodGet, "/api/shop/me", "owner-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Shop not found.", env.legacyMessage())
}

type fakePaymentRequests struct {
	pending *model.PaymentRequest
	created []*model.PaymentRequest
}

func (f *fakePaymentRequests) Create(_ context.Context, p *model.PaymentRequest) error {
	if f.pending != nil {
		return repository.ErrPendingExists
	}
	p.ID = "pr-1"
	f.pending = p
	f.created = append(f.created, p)
	return nil
}

func (f *fakePaymentRequests) PendingForShop(_ context.Context, _ string) (*model.PaymentRequest, error) {
	if f.pending == nil {
		return nil, repository.ErrNotFound
	}
	return f.pending, nil
}

func newSubscriptionEcho(sub *model.Subscription, requests *fakePaymentRequests) *echo.Echo {
	h := &SubscriptionHandler{
		Payment:       config.PaymentConfig{MomoNumber: "0240000000", MomoName: "MySocial Ltd"},
		Subscriptions: fakeEvaluator{"shop-1": sub},
		Requests:      requests,
		Now:           clock,
	}
	e := newTestEcho(defaultSessions())
	g := e.Group("/api/subscription", middleware.RequireAuth)
	g.GET("/payment-info", h.PaymentInfo)
	g.GET("/status", h.Status)
	g.POST("/payment-request", h.CreatePaymentRequest)
	return e
}

func TestPaymentInfo(t *testing.T) {
	e := newSubscriptionEcho(nil, &fakePaymentRequests{})
	_, env := call(t, e, http.MethodGet, "/api/subscription/payment-info", "owner-token", "")
	var info paymentInfoResp
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "0240000000", info.MomoNumber)
	assert.Equal(t, "MySocial Ltd", info.MomoName)
}

func TestSubscriptionStatusReportsViewOnly(t *testing.T) {
	requests := &fakePaymentRequests{}
	e := newSubscriptionEcho(trialing(fixedNow.Add(-time.Hour)), requests)

	_, env := call(t, e, http.MethodGet, "/api/subscription/status", "owner-token", "")
	var body struct {
		Subscription   *struct{ Status string } `json:"subscription"`
		ViewOnly       bool                     `json:"viewOnly"`
		PendingRequest *struct{ ID string }     `json:"pendingRequest"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.NotNil(t, body.Subscription)
	assert.Equal(t, "TRIALING", body.Subscription.Status)
	assert.True(t, body.ViewOnly)
	assert.Nil(t, body.PendingRequest)
}

func TestCreatePaymentRequest(t *testing.T) {
	requests := &fakePaymentRequests{}
	e := newSubscriptionEcho(trialing(fixedNow.Add(-time.Hour)), requests)
	body := `{"billingCycle":"ANNUAL","method":"MOMO","reference":"MP240301.1200.A1"}`

	rec, env := call(t, e, http.MethodPost, "/api/subscription/payment-request", "owner-token", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created paymentRequestView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, 590, created.AmountGHS)
	assert.Equal(t, "shop-1", created.ShopID)

	rec, env = call(t, e, http.MethodPost, "/api/subscription/payment-request", "owner-token", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "A pending payment request already exists.", env.legacyMessage())

	rec, env = call(t, e, http.MethodPost, "/api/subscription/payment-request", "owner-token", `{"billingCycle":"ANNUAL","method":"CASH","reference":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid body.", env.legacyMessage())
	assert.Len(t, requests.created, 1)
}

func TestDashboardSummary(t *testing.T) {
	shops := newFakeShops()
	shops.counts = model.DashboardCounts{InventoryItems: 12, Dealers: 3, Consignments: 5, OverdueConsignments: 1, UnreadNotifications: 2}
	h := &DashboardHandler{Shops: shops, Subscriptions: fakeEvaluator{"shop-1": trialing(fixedNow.Add(time.Hour))}, Now: clock}
	e := newTestEcho(defaultSessions())
	e.GET("/api/dashboard/summary", h.Summary, middleware.RequireAuth)

	_, env := call(t, e, http.MethodGet, "/api/dashboard/summary", "owner-token", "")
	var body struct {
		Counts              map[string]int `json:"counts"`
		UnreadNotifications int            `json:"unreadNotifications"`
		Subscription        struct {
			ViewOnly bool `json:"viewOnly"`
		} `json:"subscription"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, map[string]int{"inventory": 12, "dealers": 3, "consignments": 5, "overdueConsignments": 1}, body.Counts)
	assert.Equal(t, 2, body.UnreadNotifications)
	assert.False(t, body.Subscription.ViewOnly)
}

type fakeDevices struct {
	devices []model.AuthorizedDevice
	revoked []string
}

func (f *fakeDevices) ListActive(_ context.Context, _ string) ([]model.AuthorizedDevice, error) {
	return f.devices, nil
}

func (f *fakeDevices) Revoke(_ context.Context, _, deviceID string, _ time.Time) error {
	for _, d := range f.devices {
		if d.ID == deviceID {
			f.revoked = append(f.revoked, deviceID)
			return nil
		}
	}
	return repository.ErrNotFound
}

func TestSecurityDevices(t *testing.T) {
	devices := &fakeDevices{devices: []model.AuthorizedDevice{
		{ID: "dev-1", Label: "iPhone", LastSeenAt: fixedNow},
		{ID: "dev-2", Label: "Windows PC", LastSeenAt: fixedNow.Add(-time.Hour)},
	}}
	h := &SecurityHandler{Devices: devices, Now: clock}
	e := newTestEcho(defaultSessions())
	g := e.Group("/api/security", middleware.RequireAuth)
	g.GET("/devices", h.ListDevices)
	g.POST("/devices/:id/revoke", h.RevokeDevice)

	_, env := call(t, e, http.MethodGet, "/api/security/devices", "owner-token", "")
	var list []deviceView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.True(t, list[0].Current)
	assert.False(t, list[1].Current)

	rec, env := call(t, e, http.MethodPost, "/api/security/devices/dev-2/revoke", "owner-token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":true}`, string(env.Data))
	assert.Equal(t, []string{"dev-2"}, devices.revoked)

	rec, env = call(t, e, http.MethodPost, "/api/security/devices/dev-9/revoke", "owner-token", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, httpx.CodeNotFound, env.errorCode())
}
