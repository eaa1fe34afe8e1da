package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mysocial/shop-api/internal/config"
	"github.com/mysocial/shop-api/internal/httpx"
	"github.com/mysocial/shop-api/internal/middleware"
	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
)

// PaymentRequests is the shop-side payment request persistence.
type PaymentRequests interface {
	Create(ctx context.Context, p *model.PaymentRequest) error
	PendingForShop(ctx context.Context, shopID string) (*model.PaymentRequest, error)
}

// SubscriptionHandler serves /api/subscription.
type SubscriptionHandler struct {
	Payment       config.PaymentConfig
	Subscriptions middleware.SubscriptionEvaluator
	Requests      PaymentRequests
	Now           func() time.Time
}

type paymentRequestReq struct {
	BillingCycle string `json:"billingCycle" validate:"required,oneof=MONTHLY ANNUAL"`
	Method       string `json:"method" validate:"required,oneof=MOMO BANK"`
	Reference    string `json:"reference" validate:"required,min=3,max=180"`
}

type paymentInfoResp struct {
	MomoNumber        string `json:"momoNumber"`
	MomoName          string `json:"momoName"`
	BankName          string `json:"bankName"`
	BankAccountName   string `json:"bankAccountName"`
	BankAccountNumber string `json:"bankAccountNumber"`
}

// PaymentInfo returns where to send manual payments.
func (h *SubscriptionHandler) PaymentInfo(c echo.Context) error {
	return httpx.OK(c, http.StatusOK, paymentInfoResp{
		MomoNumber:        h.Payment.MomoNumber,
		MomoName:          h.Payment.MomoName,
		BankName:          h.Payment.BankName,
		BankAccountName:   h.Payment.BankAccountName,
		BankAccountNumber: h.Payment.BankAccountNumber,
	})
}

type statusResp struct {
	Subscription   *subscriptionView   `json:"subscription"`
	ViewOnly       bool                `json:"viewOnly"`
	PendingRequest *paymentRequestView `json:"pendingRequest"`
}

// Status returns the current subscription, its view-only flag and any
// pending payment request.
func (h *SubscriptionHandler) Status(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	state, err := h.Subscriptions.Evaluate(ctx, u.ShopID)
	if err != nil {
		return err
	}
	pending, err := h.Requests.PendingForShop(ctx, u.ShopID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return httpx.OK(c, http.StatusOK, statusResp{
		Subscription:   toSubscriptionView(state.Subscription),
		ViewOnly:       state.ViewOnly,
		PendingRequest: toPaymentRequestView(pending),
	})
}

// CreatePaymentRequest records a manual payment for admin approval.  Only
// one request may be pending per shop.
func (h *SubscriptionHandler) CreatePaymentRequest(c echo.Context) error {
	var req paymentRequestReq
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
	cycle := model.BillingCycle(req.BillingCycle)
	p := &model.PaymentRequest{
		ShopID:       u.ShopID,
		BillingCycle: cycle,
		AmountGHS:    cycle.PriceGHS(),
		Method:       model.PaymentMethod(req.Method),
		Reference:    req.Reference,
		Status:       model.PaymentPending,
		CreatedAt:    now,
	}
	if err := h.Requests.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrPendingExists) {
			return httpx.LegacyError(c, http.StatusConflict, "A pending payment request already exists.")
		}
		return err
	}
	return httpx.OK(c, http.StatusCreated, toPaymentRequestView(p))
}
