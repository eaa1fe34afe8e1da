package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
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

const normalizeTrialsConfirmation = "NORMALIZE_TRIALS_TO_7_DAYS"

// StepUp verifies and reports the admin step-up password.
type StepUp interface {
	Verify(ctx context.Context, sessionID, attempt string) error
	IsVerified(ctx context.Context, sessionID string) (bool, error)
}

// AdminPayments is the payment queue as seen by an admin.
type AdminPayments interface {
	CountByStatus(ctx context.Context, status model.PaymentStatus) (int, error)
	ListByStatus(ctx context.Context, status model.PaymentStatus) ([]model.PaymentRequestWithShop, error)
	Approve(ctx context.Context, id, adminID string, now time.Time) (*model.Subscription, error)
	Reject(ctx context.Context, id, adminID string, note *string, now time.Time) error
}

// AdminSubscriptions are the subscription overrides an admin can apply.
type AdminSubscriptions interface {
	CountByStatus(ctx context.Context, status model.SubscriptionStatus) (int, error)
	Activate(ctx context.Context, shopID, adminID string, cycle model.BillingCycle, amountGHS *int, now time.Time) (*model.Subscription, error)
	ExtendTrial(ctx context.Context, shopID, adminID string, days int, now time.Time) (time.Time, error)
	Suspend(ctx context.Context, shopID, adminID string, reason *string, now time.Time) error
	NormalizeTrials(ctx context.Context, adminID string, now time.Time) (repository.NormalizeResult, error)
}

// AdminShops lists and deletes tenants.
type AdminShops interface {
	ListForAdmin(ctx context.Context) ([]model.AdminShopRow, error)
	DeleteCascade(ctx context.Context, shopID, adminID string, now time.Time) error
}

// AuditLog reads and appends admin audit rows.
type AuditLog interface {
	Append(ctx context.Context, adminID, action, targetType, targetID string, meta any, now time.Time) error
	List(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

// SupportResets issues password resets on a user's behalf.
type SupportResets interface {
	SendSupportReset(ctx context.Context, target string) (bool, error)
}

// AdminHandler serves /api/admin.  Routing applies RequireAuth and
// RequireAdmin to all of it and RequireAdminVerified to everything except
// the two step-up endpoints.
type AdminHandler struct {
	StepUp        StepUp
	Payments      AdminPayments
	Subscriptions AdminSubscriptions
	Shops         AdminShops
	Audit         AuditLog
	Support       SupportResets
	Now           func() time.Time
}

func (h *AdminHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func invalidBody(c echo.Context) error {
	return httpx.LegacyError(c, http.StatusBadRequest, "Invalid body.")
}

// VerificationStatus reports whether the session passed step-up.
func (h *AdminHandler) VerificationStatus(c echo.Context) error {
	s := middleware.CurrentSession(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	verified, err := h.StepUp.IsVerified(ctx, s.Session.ID)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"verified": verified})
}

type verifyPasswordReq struct {
	Password string `json:"password" validate:"required,min=1"`
}

// VerifyPassword checks the step-up password for the current session.
func (h *AdminHandler) VerifyPassword(c echo.Context) error {
	var req verifyPasswordReq
	if err := httpx.Bind(c, &req); err != nil {
		return invalidBody(c)
	}
	s := middleware.CurrentSession(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.StepUp.Verify(ctx, s.Session.ID, req.Password); {
	case errors.Is(err, service.ErrAdminPasswordNotConfigured):
		return httpx.LegacyError(c, http.StatusInternalServerError, "Admin password is not configured securely.")
	case errors.Is(err, service.ErrAdminPasswordMismatch):
		logger.FromEcho(c).Warn("admin step-up rejected", zap.String("user_id", s.User.ID))
		return httpx.LegacyError(c, http.StatusForbidden, "Invalid admin password")
	case err != nil:
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"verified": true})
}

type statsResp struct {
	PendingApprovals int `json:"pendingApprovals"`
	ExpiredShops     int `json:"expiredShops"`
}

// Stats returns the counters on the admin home page.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pending, err := h.Payments.CountByStatus(ctx, model.PaymentPending)
	if err != nil {
		return err
	}
	expired, err := h.Subscriptions.CountByStatus(ctx, model.SubscriptionExpired)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, statsResp{PendingApprovals: pending, ExpiredShops: expired})
}

// ListPaymentRequests returns requests in one status, oldest first.
func (h *AdminHandler) ListPaymentRequests(c echo.Context) error {
	status := model.PaymentPending
	if q := c.QueryParam("status"); q != "" {
		switch s := model.PaymentStatus(q); s {
		case model.PaymentPending, model.PaymentApproved, model.PaymentRejected:
			status = s
		default:
			return httpx.LegacyError(c, http.StatusBadRequest, "Invalid query.")
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Payments.ListByStatus(ctx, status)
	if err != nil {
		return err
	}
	out := make([]adminPaymentRequestView, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		v := adminPaymentRequestView{paymentRequestView: toPaymentRequestView(&r.PaymentRequest), ShopName: r.ShopName}
		if r.OwnerName != "" || r.OwnerEmail != "" || r.OwnerPhone != "" {
			v.Owner = &ownerView{Name: r.OwnerName, Phone: r.OwnerPhone, Email: r.OwnerEmail}
		}
		out = append(out, v)
	}
	return httpx.OK(c, http.StatusOK, out)
}

func decisionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return httpx.LegacyError(c, http.StatusNotFound, "Request not found.")
	case errors.Is(err, repository.ErrAlreadyDecided):
		return httpx.LegacyError(c, http.StatusConflict, "Request already decided.")
	}
	return err
}

// ApprovePaymentRequest activates the shop for the paid cycle.
func (h *AdminHandler) ApprovePaymentRequest(c echo.Context) error {
	admin := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Payments.Approve(ctx, c.Param("id"), admin.ID, h.now()); err != nil {
		return decisionError(c, err)
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"approved": true})
}

type rejectReq struct {
	Note *string `json:"note" validate:"omitempty,max=500"`
}

// RejectPaymentRequest declines a request with an optional note.
func (h *AdminHandler) RejectPaymentRequest(c echo.Context) error {
	var req rejectReq
	if err := httpx.Bind(c, &req); err != nil {
		return invalidBody(c)
	}
	admin := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Payments.Reject(ctx, c.Param("id"), admin.ID, req.Note, h.now()); err != nil {
		return decisionError(c, err)
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"rejected": true})
}

// ListShops returns every tenant with its owner and subscription state.
func (h *AdminHandler) ListShops(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Shops.ListForAdmin(ctx)
	if err != nil {
		return err
	}
	out := make([]adminShopView, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAdminShopView(r))
	}
	return httpx.OK(c, http.StatusOK, out)
}

type activateReq struct {
	Cycle     string `json:"cycle" validate:"required,oneof=MONTHLY ANNUAL"`
	AmountGHS *int   `json:"amountGhs" validate:"omitempty,gt=0"`
}

// ActivateShop grants a paid period without a payment request.
func (h *AdminHandler) ActivateShop(c echo.Context) error {
	var req activateReq
	if err := httpx.Bind(c, &req); err != nil {
		return invalidBody(c)
	}
	admin := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, err := h.Subscriptions.Activate(ctx, c.Param("shopId"), admin.ID, model.BillingCycle(req.Cycle), req.AmountGHS, h.now())
	if errors.Is(err, repository.ErrNotFound) {
		return httpx.LegacyError(c, http.StatusNotFound, "Shop not found.")
	}
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"activated": true})
}

type extendTrialReq struct {
	Days int `json:"days" validate:"required,gt=0,max=3650"`
}

type extendTrialResp struct {
	Extended    bool      `json:"extended"`
	TrialEndsAt time.Time `json:"trialEndsAt"`
}

// ExtendTrial puts the shop back on trial for more days.
func (h *AdminHandler) ExtendTrial(c echo.Context) error {
	var req extendTrialReq
	if err := httpx.Bind(c, &req); err != nil {
		return invalidBody(c)
	}
	admin := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ends, err := h.Subscriptions.ExtendTrial(ctx, c.Param("shopId"), admin.ID, req.Days, h.now())
	if errors.Is(err, repository.ErrNotFound) {
		return httpx.LegacyError(c, http.StatusNotFound, "Subscription not found for shop.")
	}
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, extendTrialResp{Extended: true, TrialEndsAt: ends})
}

type suspendReq struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// SuspendShop expires the shop's subscription now.
func (h *AdminHandler) SuspendShop(c echo.Context) error {
	var req suspendReq
	if err := httpx.Bind(c, &req); err != nil {
		return invalidBody(c)
	}
	admin := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Subscriptions.Suspend(ctx, c.Param("shopId"), admin.ID, req.Reason, h.now())
	if errors.Is(err, repository.ErrNotFound) {
		return httpx.LegacyError(c, http.StatusNotFound, "Subscription not found for shop.")
	}
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"suspended": true})
}

// DeleteShop removes a tenant and everything it owns.
func (h *AdminHandler) DeleteShop(c echo.Context) error {
	admin := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	err := h.Shops.DeleteCascade(ctx, c.Param("shopId"), admin.ID, h.now())
	if errors.Is(err, repository.ErrNotFound) {
		return httpx.LegacyError(c, http.StatusNotFound, "Shop not found.")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// ListAudit returns the newest audit rows; limit is 1..500, default 100.
func (h *AdminHandler) ListAudit(c echo.Context) error {
	limit := 100
	if q := c.QueryParam("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 500 {
			return httpx.LegacyError(c, http.StatusBadRequest, "Invalid query.")
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Audit.List(ctx, limit)
	if err != nil {
		return err
	}
	out := make([]auditView, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAuditView(r))
	}
	return httpx.OK(c, http.StatusOK, out)
}

type supportResetReq struct {
	Target string `json:"target" validate:"required,min=3"`
}

// SendPasswordReset emails a reset link to the account matching an email
// or phone.  The answer never reveals whether one exists.
func (h *AdminHandler) SendPasswordReset(c echo.Context) error {
	var req supportResetReq
	if err := httpx.Bind(c, &req); err != nil {
		return invalidBody(c)
	}
	admin := middleware.CurrentUser(c)
	target := service.NormalizeTarget(req.Target)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Support.SendSupportReset(ctx, target); err != nil {
		logger.FromEcho(c).Error("support password reset failed", zap.Error(err))
	}
	if err := h.Audit.Append(ctx, admin.ID, model.AuditSupportPasswordReset, repository.TargetSupport, target,
		map[string]string{"target": target}, h.now()); err != nil {
		logger.FromEcho(c).Error("support password reset audit failed", zap.String("target", target), zap.Error(err))
	}
	return httpx.OK(c, http.StatusOK, map[string]bool{"sent": true})
}

type normalizeReq struct {
	Confirm string `json:"confirm"`
}

type normalizeResp struct {
	Processed int    `json:"processed"`
	Updated   int    `json:"updated"`
	CappedTo  string `json:"cappedTo"`
}

// NormalizeTrials caps every running trial at seven days from now.
func (h *AdminHandler) NormalizeTrials(c echo.Context) error {
	var req normalizeReq
	if err := httpx.Bind(c, &req); err != nil {
		return invalidBody(c)
	}
	if req.Confirm != normalizeTrialsConfirmation {
		return httpx.LegacyError(c, http.StatusBadRequest, "Confirmation text mismatch.")
	}
	admin := middleware.CurrentUser(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	res, err := h.Subscriptions.NormalizeTrials(ctx, admin.ID, h.now())
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, normalizeResp{
		Processed: res.Processed,
		Updated:   res.Updated,
		CappedTo:  res.CappedTo.UTC().Format(time.RFC3339Nano),
	})
}
