package handler

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/logger"
	"github.com/mysocial/shop-api/internal/middleware"
	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
	"github.com/mysocial/shop-api/internal/service"
)

var tenDigits = regexp.MustCompile(`^[0-9]{10}$`)

// AuthUsers is the user persistence the auth endpoints need.
type AuthUsers interface {
	FindByTarget(ctx context.Context, target string) (*model.User, error)
	Exists(ctx context.Context, email, phone string) (emailTaken, phoneTaken bool, err error)
	SetAdmin(ctx context.Context, id string, isAdmin bool, now time.Time) error
}

// ShopCreator opens a new tenant with its owner and trial.
type ShopCreator interface {
	CreateWithOwner(ctx context.Context, shop *model.Shop, owner *model.User, sub *model.Subscription) error
	GetByID(ctx context.Context, id string) (*model.Shop, error)
}

// SessionIssuer creates and revokes login sessions.
type SessionIssuer interface {
	Create(ctx context.Context, userID string, dev service.DeviceInfo) (string, *model.Session, error)
	Revoke(ctx context.Context, token string) error
}

// Credentials hashes passwords and runs password resets.
type Credentials interface {
	HashPassword(plain string) (string, error)
	VerifyPassword(hash, plain string) bool
	RequestPasswordReset(ctx context.Context, email string) error
	ConsumeResetToken(ctx context.Context, raw, newPassword string) error
}

// VerificationClearer drops an admin step-up on logout.
type VerificationClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// AuthHandler bundles dependencies for /api/auth.
type AuthHandler struct {
	Users         AuthUsers
	Shops         ShopCreator
	Subscriptions middleware.SubscriptionEvaluator
	Sessions      SessionIssuer
	Credentials   Credentials
	Verifications VerificationClearer
	Identity      service.AdminIdentity
	Cookie        middleware.SessionCookie
	Now           func() time.Time
}

// ----- DTOs -----

type signupReq struct {
	OwnerName string  `json:"ownerName" validate:"required,min=1"`
	ShopName  string  `json:"shopName" validate:"required,min=1"`
	Phone     string  `json:"phone" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8,max=200"`
	Location  *string `json:"location" validate:"omitempty,max=500"`
}

type loginReq struct {
	Target   string `json:"target" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8,max=200"`
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordReq struct {
	Token    string `json:"token" validate:"required,min=10"`
	Password string `json:"password" validate:"required,min=8,max=200"`
}

type userIDResp struct {
	UserID string `json:"userId"`
}

func (h *AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// startSession binds the device, opens a session and sets the cookie.
func (h *AuthHandler) startSession(ctx context.Context, c echo.Context, userID string) error {
	dev, err := service.DeviceFromRequest(c.Request())
	if err != nil {
		return err
	}
	token, _, err := h.Sessions.Create(ctx, userID, dev)
	if err != nil {
		return err
	}
	h.Cookie.Set(c, token)
	return nil
}

// Signup opens a shop with its owner and a seven day trial, then logs the
// owner in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.BadBody(c, err)
	}
	email := service.NormalizeTarget(req.Email)
	phone := service.NormalizeTarget(req.Phone)
	if !tenDigits.MatchString(phone) {
		return httpx.LegacyError(c, http.StatusBadRequest, "Phone number must be exactly 10 digits")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	emailTaken, phoneTaken, err := h.Users.Exists(ctx, email, phone)
	if err != nil {
		return err
	}
	if emailTaken {
		return httpx.Fail(c, http.StatusConflict, httpx.CodeForbidden, "Email already exists.", nil)
	}
	if phoneTaken {
		return httpx.Fail(c, http.StatusConflict, httpx.CodeForbidden, "Phone already exists.", nil)
	}

	hash, err := h.Credentials.HashPassword(req.Password)
	if err != nil {
		return err
	}
	now := h.now()
	trialEnds := now.Add(model.TrialPeriod)
	shop := &model.Shop{Name: req.ShopName, Phone: phone, Email: &email, LocationNote: req.Location, CreatedAt: now, UpdatedAt: now}
	owner := &model.User{
		Name:         req.OwnerName,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		IsAdmin:      h.Identity.Matches(email, phone),
		VerifiedAt:   &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sub := &model.Subscription{
		Status:       model.SubscriptionTrialing,
		TrialEndsAt:  &trialEnds,
		BillingCycle: model.BillingMonthly,
		AmountGHS:    model.BillingMonthly.PriceGHS(),
		StartedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch err := h.Shops.CreateWithOwner(ctx, shop, owner, sub); {
	case errors.Is(err, repository.ErrEmailExists):
		return httpx.Fail(c, http.StatusConflict, httpx.CodeForbidden, "Email already exists.", nil)
	case errors.Is(err, repository.ErrPhoneExists), errors.Is(err, repository.ErrConflict):
		return httpx.Fail(c, http.StatusConflict, httpx.CodeForbidden, "Phone already exists.", nil)
	case err != nil:
		return err
	}

	if err := h.startSession(ctx, c, owner.ID); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, userIDResp{UserID: owner.ID})
}

// Login authenticates by email or phone.  Every credential failure gets
// the same answer.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.BadBody(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	user, err := h.Users.FindByTarget(ctx, service.NormalizeTarget(req.Target))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if user == nil || user.VerifiedAt == nil || !h.Credentials.VerifyPassword(user.PasswordHash, req.Password) {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeBadCredentials, "Invalid credentials.", nil)
	}

	state, err := h.Subscriptions.Evaluate(ctx, user.ShopID)
	if err != nil {
		return err
	}
	if state.Subscription == nil {
		return httpx.Fail(c, http.StatusPaymentRequired, httpx.CodeSubscriptionCanceled, "No subscription found.", nil)
	}

	if want := h.Identity.Matches(user.Email, user.Phone); want != user.IsAdmin {
		if err := h.Users.SetAdmin(ctx, user.ID, want, h.now()); err != nil {
			return err
		}
	}

	if err := h.startSession(ctx, c, user.ID); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, userIDResp{UserID: user.ID})
}

// ForgotPassword always reports success so accounts cannot be enumerated.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	sent := map[string]bool{"sent": true}
	var req forgotPasswordReq
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.OK(c, http.StatusOK, sent)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Credentials.RequestPasswordReset(ctx, req.Email); err != nil {
		logger.FromEcho(c).Error("forgot password failed", zap.Error(err))
	}
	return httpx.OK(c, http.StatusOK, sent)
}

// ResetPassword sets a new password with an emailed token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.BadBody(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.Credentials.ConsumeResetToken(ctx, req.Token, req.Password); {
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeForbidden, "Invalid or expired token.", nil)
	case err != nil:
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"reset": true})
}

// Logout is idempotent: it succeeds with or without a session.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if s := middleware.CurrentSession(c); s != nil {
		if err := h.Verifications.Clear(ctx, s.Session.ID); err != nil {
			logger.FromEcho(c).Warn("clear admin verification failed", zap.Error(err))
		}
	}
	token := h.Cookie.Read(c)
	h.Cookie.Clear(c)
	if err := h.Sessions.Revoke(ctx, token); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"loggedOut": true})
}

type meUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	IsAdmin bool   `json:"isAdmin"`
}

type meResp struct {
	User         meUser                `json:"user"`
	Shop         *shopView             `json:"shop"`
	Subscription *subscriptionWithFlag `json:"subscription"`
}

// Me returns the signed-in user with their shop and subscription.
func (h *AuthHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	shop, err := h.Shops.GetByID(ctx, u.ShopID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	state, err := h.Subscriptions.Evaluate(ctx, u.ShopID)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, meResp{
		User:         meUser{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, IsAdmin: u.IsAdmin},
		Shop:         toShopView(shop),
		Subscription: withViewOnly(state.Subscription, state.ViewOnly),
	})
}

// OTPDisabled answers the retired one-time-password endpoints.
func OTPDisabled(c echo.Context) error {
	return httpx.LegacyError(c, http.StatusGone, "OTP disabled")
}
