package handler

import (
	"encoding/json"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

// JSON views of the models.  Field names follow the web client's camelCase
// contract; models stay free of transport tags.

type shopView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        *string   `json:"email"`
	LocationNote *string   `json:"locationNote"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toShopView(s *model.Shop) *shopView {
	if s == nil {
		return nil
	}
	return &shopView{
		ID:           s.ID,
		Name:         s.Name,
		Phone:        s.Phone,
		Email:        s.Email,
		LocationNote: s.LocationNote,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

type shopWithOwnerView struct {
	*shopView
	OwnerName string `json:"ownerName"`
}

type subscriptionView struct {
	ID           string     `json:"id"`
	ShopID       string     `json:"shopId"`
	Status       string     `json:"status"`
	TrialEndsAt  *time.Time `json:"trialEndsAt"`
	BillingCycle string     `json:"billingCycle"`
	AmountGHS    int        `json:"amountGhs"`
	StartedAt    time.Time  `json:"startedAt"`
	EndsAt       *time.Time `json:"endsAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func toSubscriptionView(s *model.Subscription) *subscriptionView {
	if s == nil {
		return nil
	}
	return &subscriptionView{
		ID:           s.ID,
		ShopID:       s.ShopID,
		Status:       string(s.Status),
		TrialEndsAt:  s.TrialEndsAt,
		BillingCycle: string(s.BillingCycle),
		AmountGHS:    s.AmountGHS,
		StartedAt:    s.StartedAt,
		EndsAt:       s.EndsAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// subscriptionWithFlag is a subscription plus its view-only evaluation, or
// null when the shop has none.
type subscriptionWithFlag struct {
	*subscriptionView
	ViewOnly bool `json:"viewOnly"`
}

func withViewOnly(s *model.Subscription, viewOnly bool) *subscriptionWithFlag {
	if s == nil {
		return nil
	}
	return &subscriptionWithFlag{subscriptionView: toSubscriptionView(s), ViewOnly: viewOnly}
}

type paymentRequestView struct {
	ID              string     `json:"id"`
	ShopID          string     `json:"shopId"`
	BillingCycle    string     `json:"billingCycle"`
	AmountGHS       int        `json:"amountGhs"`
	Method          string     `json:"method"`
	Reference       string     `json:"reference"`
	Status          string     `json:"status"`
	DecidedByUserID *string    `json:"decidedByUserId"`
	DecidedAt       *time.Time `json:"decidedAt"`
	Note            *string    `json:"note"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toPaymentRequestView(p *model.PaymentRequest) *paymentRequestView {
	if p == nil {
		return nil
	}
	return &paymentRequestView{
		ID:              p.ID,
		ShopID:          p.ShopID,
		BillingCycle:    string(p.BillingCycle),
		AmountGHS:       p.AmountGHS,
		Method:          string(p.Method),
		Reference:       p.Reference,
		Status:          string(p.Status),
		DecidedByUserID: p.DecidedByUserID,
		DecidedAt:       p.DecidedAt,
		Note:            p.Note,
		CreatedAt:       p.CreatedAt,
	}
}

type ownerView struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type adminPaymentRequestView struct {
	*paymentRequestView
	ShopName string     `json:"shopName"`
	Owner    *ownerView `json:"owner"`
}

type adminShopView struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	OwnerName          *string    `json:"ownerName"`
	Phone              string     `json:"phone"`
	Email              *string    `json:"email"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	TrialEndsAt        *time.Time `json:"trialEndsAt"`
	EndsAt             *time.Time `json:"endsAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	PendingApprovals   int        `json:"pendingApprovals"`
}

// adminShopStatus folds EXPIRED and "no subscription" into VIEW_ONLY.
func adminShopStatus(s *model.Subscription) string {
	if s == nil || s.Status == model.SubscriptionExpired {
		return "VIEW_ONLY"
	}
	return string(s.Status)
}

func toAdminShopView(r model.AdminShopRow) adminShopView {
	v := adminShopView{
		ID:                 r.Shop.ID,
		Name:               r.Shop.Name,
		Phone:              r.Shop.Phone,
		Email:              r.Shop.Email,
		SubscriptionStatus: adminShopStatus(r.Subscription),
		CreatedAt:          r.Shop.CreatedAt,
		PendingApprovals:   r.PendingPaymentReqs,
	}
	if r.OwnerName != "" {
		name := r.OwnerName
		v.OwnerName = &name
	}
	if r.OwnerPhone != "" {
		v.Phone = r.OwnerPhone
	}
	if r.OwnerEmail != "" {
		email := r.OwnerEmail
		v.Email = &email
	}
	if r.Subscription != nil {
		v.TrialEndsAt = r.Subscription.TrialEndsAt
		v.EndsAt = r.Subscription.EndsAt
	}
	return v
}

type auditAdminView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type auditView struct {
	ID          string          `json:"id"`
	AdminUserID string          `json:"adminUserId"`
	Action      string          `json:"action"`
	TargetType  string          `json:"targetType"`
	TargetID    string          `json:"targetId"`
	MetaJSON    json.RawMessage `json:"metaJson"`
	CreatedAt   time.Time       `json:"createdAt"`
	AdminUser   auditAdminView  `json:"adminUser"`
}

func toAuditView(e model.AuditEntry) auditView {
	meta := e.Meta
	if len(meta) == 0 {
		meta = json.RawMessage("{}")
	}
	return auditView{
		ID:          e.ID,
		AdminUserID: e.AdminUserID,
		Action:      e.Action,
		TargetType:  e.TargetType,
		TargetID:    e.TargetID,
		MetaJSON:    meta,
		CreatedAt:   e.CreatedAt,
		AdminUser:   auditAdminView{ID: e.AdminUserID, Name: e.AdminName, Email: e.AdminEmail, Phone: e.AdminPhone},
	}
}

type deviceView struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	LastSeenAt time.Time `json:"lastSeenAt"`
	CreatedAt  time.Time `json:"createdAt"`
	Current    bool      `json:"current"`
}

type notificationView struct {
	ID        string     `json:"id"`
	ShopID    string     `json:"shopId"`
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toNotificationView(n model.Notification) notificationView {
	return notificationView{ID: n.ID, ShopID: n.ShopID, Message: n.Message, ReadAt: n.ReadAt, CreatedAt: n.CreatedAt}
}
