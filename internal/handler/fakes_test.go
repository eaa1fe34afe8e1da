package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/middleware"
	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
	"github.com/mysocial/shop-api/internal/service"
)

var (
	testCookie    = middleware.SessionCookie{Name: "mysocial_session"}
	adminIdentity = service.AdminIdentity{Email: "ops@mysocial.gh", Phone: "0200000000"}
	fixedNow      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func clock() time.Time { return fixedNow }

// ----- sessions -----

type fakeSessionValidator map[string]*model.SessionDetail

func (f fakeSessionValidator) Validate(_ context.Context, token string) (*model.SessionDetail, error) {
	return f[token], nil
}

func ownerSession() *model.SessionDetail {
	now := fixedNow
	return &model.SessionDetail{
		Session: model.Session{ID: "sess-1", UserID: "user-1", DeviceID: "dev-1"},
		User: model.User{
			ID: "user-1", ShopID: "shop-1", Name: "Kofi Mensah",
			Email: "kofi@shop.gh", Phone: "0241234567", VerifiedAt: &now,
		},
	}
}

func adminSession() *model.SessionDetail {
	return &model.SessionDetail{
		Session: model.Session{ID: "sess-admin", UserID: "user-admin"},
		User: model.User{
			ID: "user-admin", ShopID: "shop-admin", Name: "Ops",
			Email: adminIdentity.Email, Phone: adminIdentity.Phone, IsAdmin: true,
		},
	}
}

func defaultSessions() fakeSessionValidator {
	return fakeSessionValidator{"owner-token": ownerSession(), "admin-token": adminSession()}
}

type fakeIssuer struct {
	mu      sync.Mutex
	created []string
	revoked []string
}

func (f *fakeIssuer) Create(_ context.Context, userID string, dev service.DeviceInfo) (string, *model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, userID)
	return "tok-" + userID, &model.Session{ID: "sess-" + userID, UserID: userID}, nil
}

func (f *fakeIssuer) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return nil
}

// ----- users and shops -----

type fakeAuthUsers struct {
	byTarget map[string]*model.User
	adminSet map[string]bool
}

func newFakeAuthUsers(users ...*model.User) *fakeAuthUsers {
	f := &fakeAuthUsers{byTarget: map[string]*model.User{}, adminSet: map[string]bool{}}
	for _, u := range users {
		f.byTarget[u.Email] = u
		f.byTarget[u.Phone] = u
	}
	return f
}

func (f *fakeAuthUsers) FindByTarget(_ context.Context, target string) (*model.User, error) {
	if u, ok := f.byTarget[target]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAuthUsers) Exists(_ context.Context, email, phone string) (bool, bool, error) {
	_, e := f.byTarget[email]
	_, p := f.byTarget[phone]
	return e, p, nil
}

func (f *fakeAuthUsers) SetAdmin(_ context.Context, id string, isAdmin bool, _ time.Time) error {
	f.adminSet[id] = isAdmin
	return nil
}

type fakeShops struct {
	shops     map[string]*model.Shop
	created   []*model.User
	createErr error
	updates   []repository.ShopUpdate
	counts    model.DashboardCounts
}

func newFakeShops() *fakeShops {
	return &fakeShops{shops: map[string]*model.Shop{
		"shop-1": {ID: "shop-1", Name: "Kofi Phones", Phone: "0241234567"},
	}}
}

func (f *fakeShops) CreateWithOwner(_ context.Context, shop *model.Shop, owner *model.User, sub *model.Subscription) error {
	if f.createErr != nil {
		return f.createErr
	}
	shop.ID = "shop-new"
	owner.ID = "user-new"
	owner.ShopID = shop.ID
	sub.ID = "sub-new"
	sub.ShopID = shop.ID
	f.shops[shop.ID] = shop
	f.created = append(f.created, owner)
	return nil
}

func (f *fakeShops) GetByID(_ context.Context, id string) (*model.Shop, error) {
	if s, ok := f.shops[id]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeShops) UpdateProfile(_ context.Context, shopID, _ string, upd repository.ShopUpdate, now time.Time) (*model.Shop, error) {
	s, ok := f.shops[shopID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	f.updates = append(f.updates, upd)
	s.Name, s.Phone, s.LocationNote, s.Email, s.UpdatedAt = upd.Name, upd.Phone, upd.LocationNote, upd.Email, now
	return s, nil
}

func (f *fakeShops) DashboardCounts(_ context.Context, _ string, _ time.Time) (model.DashboardCounts, error) {
	return f.counts, nil
}

// ----- subscriptions -----

type fakeEvaluator map[string]*model.Subscription

func (f fakeEvaluator) Evaluate(_ context.Context, shopID string) (service.SubscriptionState, error) {
	sub := f[shopID]
	return service.SubscriptionState{Subscription: sub, ViewOnly: service.IsViewOnly(sub, fixedNow)}, nil
}

func trialing(ends time.Time) *model.Subscription {
	return &model.Subscription{
		ID: "sub-1", ShopID: "shop-1", Status: model.SubscriptionTrialing,
		TrialEndsAt: &ends, BillingCycle: model.BillingMonthly, AmountGHS: 59, StartedAt: fixedNow,
	}
}

// ----- credentials -----

type fakeCredentials struct {
	resetRequests []string
	consumeErr    error
	consumed      []string
}

func (f *fakeCredentials) HashPassword(plain string) (string, error) { return "hash:" + plain, nil }

func (f *fakeCredentials) VerifyPassword(hash, plain string) bool { return hash == "hash:"+plain }

func (f *fakeCredentials) RequestPasswordReset(_ context.Context, email string) error {
	f.resetRequests = append(f.resetRequests, email)
	return nil
}

func (f *fakeCredentials) ConsumeResetToken(_ context.Context, raw, _ string) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	f.consumed = append(f.consumed, raw)
	return nil
}

type fakeClearer struct{ cleared []string }

func (f *fakeClearer) Clear(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return nil
}

// ----- harness -----

func newTestEcho(sessions fakeSessionValidator) *echo.Echo {
	e := echo.New()
	e.Validator = httpx.NewValidator()
	e.HTTPErrorHandler = httpx.ErrorHandler
	e.Use(middleware.SessionAuth(sessions, testCookie))
	return e
}

type envelope struct {
	OK       bool            `json:"ok"`
	Data     json.RawMessage `json:"data"`
	Error    json.RawMessage `json:"error"`
	ViewOnly bool            `json:"viewOnly"`
}

// errorCode returns the code of a standard error, or "" for the legacy
// string form.
func (e envelope) errorCode() string {
	var body struct {
		Code string `json:"code"`
	}
	if json.Unmarshal(e.Error, &body) != nil {
		return ""
	}
	return body.Code
}

// legacyMessage returns the message of a {ok:false,error:"..."} body.
func (e envelope) legacyMessage() string {
	var s string
	if json.Unmarshal(e.Error, &s) != nil {
		return ""
	}
	return s
}

func call(t *testing.T, e *echo.Echo, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: token})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// lastSessionCookie returns the final session Set-Cookie of a response.
func lastSessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var last *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie.Name {
			last = c
		}
	}
	return last
}
