package model

import "time"

// SubscriptionStatus is the lifecycle state of a subscription row.
type SubscriptionStatus string

const (
	SubscriptionTrialing  SubscriptionStatus = "TRIALING"
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// BillingCycle is the paid period of a subscription.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "MONTHLY"
	BillingAnnual  BillingCycle = "ANNUAL"
)

// Valid reports whether c is a known cycle.
func (c BillingCycle) Valid() bool { return c == BillingMonthly || c == BillingAnnual }

// Period is how long a paid subscription on this cycle lasts.
func (c BillingCycle) Period() time.Duration {
	if c == BillingAnnual {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// PriceGHS is the list price in Ghana cedis.
func (c BillingCycle) PriceGHS() int {
	if c == BillingAnnual {
		return 590
	}
	return 59
}

// TrialPeriod is the length of the free trial created at signup.
const TrialPeriod = 7 * 24 * time.Hour

// Subscription is one row of a shop's append-only subscription history.
// The row with the latest CreatedAt is the shop's current subscription.
type Subscription struct {
	ID           string             // subscriptions.id
	ShopID       string             // subscriptions.shop_id
	Status       SubscriptionStatus // subscriptions.status
	TrialEndsAt  *time.Time         // subscriptions.trial_ends_at (nullable)
	BillingCycle BillingCycle       // subscriptions.billing_cycle
	AmountGHS    int                // subscriptions.amount_ghs
	StartedAt    time.Time          // subscriptions.started_at
	EndsAt       *time.Time         // subscriptions.ends_at (nullable)
	CreatedAt    time.Time          // subscriptions.created_at
	UpdatedAt    time.Time          // subscriptions.updated_at
}

// PaymentStatus is the decision state of a manual payment request.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRejected PaymentStatus = "REJECTED"
)

// PaymentMethod is how the shop says it paid.
type PaymentMethod string

const (
	PaymentMomo PaymentMethod = "MOMO"
	PaymentBank PaymentMethod = "BANK"
)

// PaymentRequest is a shop's claim of a manual payment awaiting an admin
// decision.  At most one PENDING request exists per shop.
type PaymentRequest struct {
	ID              string        // payment_requests.id
	ShopID          string        // payment_requests.shop_id
	BillingCycle    BillingCycle  // payment_requests.billing_cycle
	AmountGHS       int           // payment_requests.amount_ghs
	Method          PaymentMethod // payment_requests.method
	Reference       string        // payment_requests.reference
	Status          PaymentStatus // payment_requests.status
	DecidedByUserID *string       // payment_requests.decided_by_user_id (nullable)
	DecidedAt       *time.Time    // payment_requests.decided_at (nullable)
	Note            *string       // payment_requests.note (nullable)
	CreatedAt       time.Time     // payment_requests.created_at
}

// PaymentRequestWithShop is a payment request joined with the shop and its
// owner for the admin queue.
type PaymentRequestWithShop struct {
	PaymentRequest
	ShopName   string
	OwnerName  string
	OwnerEmail string
	OwnerPhone string
}

// AdminShopRow is one line of the admin shop listing.
type AdminShopRow struct {
	Shop               Shop
	OwnerName          string
	OwnerEmail         string
	OwnerPhone         string
	Subscription       *Subscription
	PendingPaymentReqs int
}

// MaxTrialExtensionDays bounds a single admin trial extension.
const MaxTrialExtensionDays = 3650

// NextTrialEnd extends a trial by days.  A trial that is still running is
// extended from its current end; an elapsed or missing one from now.
func NextTrialEnd(current *time.Time, now time.Time, days int) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(time.Duration(days) * 24 * time.Hour)
}
