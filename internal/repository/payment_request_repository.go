package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

const paymentRequestColumns = "id, shop_id, billing_cycle, amount_ghs, method, reference, status, decided_by_user_id, decided_at, note, created_at"

// PaymentRequestRepo manages manual payment claims and their decisions.
type PaymentRequestRepo struct{ DB *sql.DB }

func NewPaymentRequestRepo(db *sql.DB) *PaymentRequestRepo { return &PaymentRequestRepo{DB: db} }

func scanPaymentRequest(row scanner, extra ...any) (*model.PaymentRequest, error) {
	var (
		p         model.PaymentRequest
		cycle     string
		method    string
		status    string
		decidedBy sql.NullString
		decidedAt sql.NullTime
		note      sql.NullString
	)
	dest := []any{&p.ID, &p.ShopID, &cycle, &p.AmountGHS, &method, &p.Reference, &status,
		&decidedBy, &decidedAt, &note, &p.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.BillingCycle = model.BillingCycle(cycle)
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	p.DecidedByUserID = ptrString(decidedBy)
	p.DecidedAt = ptrTime(decidedAt)
	p.Note = ptrString(note)
	return &p, nil
}

// Create inserts a PENDING request unless the shop already has one, in
// which case ErrPendingExists is returned.  The shop row is locked so two
// concurrent submissions cannot both pass the check.
func (r *PaymentRequestRepo) Create(ctx context.Context, p *model.PaymentRequest) error {
	if !p.BillingCycle.Valid() {
		return ErrInvalidBillingCycle
	}
	if p.ID == "" {
		p.ID = newID()
	}
	p.Status = model.PaymentPending
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, "SELECT id FROM shops WHERE id=? FOR UPDATE", p.ShopID).Scan(&id); err != nil {
			return notFound(err, "lock shop")
		}
		var pending int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM payment_requests WHERE shop_id=? AND status=?",
			p.ShopID, string(model.PaymentPending)).Scan(&pending); err != nil {
			return fmt.Errorf("count pending: %w", err)
		}
		if pending > 0 {
			return ErrPendingExists
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO payment_requests (id, shop_id, billing_cycle, amount_ghs, method, reference, status, created_at) VALUES (?,?,?,?,?,?,?,?)",
			p.ID, p.ShopID, string(p.BillingCycle), p.AmountGHS, string(p.Method), p.Reference, string(p.Status), p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payment request: %w", err)
		}
		return nil
	})
}

// PendingForShop returns the shop's PENDING request.
func (r *PaymentRequestRepo) PendingForShop(ctx context.Context, shopID string) (*model.PaymentRequest, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+paymentRequestColumns+" FROM payment_requests WHERE shop_id=? AND status=? ORDER BY created_at DESC LIMIT 1",
		shopID, string(model.PaymentPending))
	p, err := scanPaymentRequest(row)
	if err != nil {
		return nil, notFound(err, "pending payment request")
	}
	return p, nil
}

// CountByStatus counts requests in the given status.
func (r *PaymentRequestRepo) CountByStatus(ctx context.Context, status model.PaymentStatus) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payment_requests WHERE status=?", string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count payment requests: %w", err)
	}
	return n, nil
}

// ListByStatus returns requests oldest first with the shop and its first
// user (the owner).
func (r *PaymentRequestRepo) ListByStatus(ctx context.Context, status model.PaymentStatus) ([]model.PaymentRequestWithShop, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT p.id, p.shop_id, p.billing_cycle, p.amount_ghs, p.method, p.reference, p.status,
		       p.decided_by_user_id, p.decided_at, p.note, p.created_at,
		       s.name, COALESCE(o.name,''), COALESCE(o.email,''), COALESCE(o.phone,'')
		FROM payment_requests p
		JOIN shops s ON s.id = p.shop_id
		LEFT JOIN users o ON o.id = (SELECT u.id FROM users u WHERE u.shop_id = p.shop_id ORDER BY u.created_at ASC LIMIT 1)
		WHERE p.status = ?
		ORDER BY p.created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list payment requests: %w", err)
	}
	defer rows.Close()

	var out []model.PaymentRequestWithShop
	for rows.Next() {
		var w model.PaymentRequestWithShop
		p, err := scanPaymentRequest(rows, &w.ShopName, &w.OwnerName, &w.OwnerEmail, &w.OwnerPhone)
		if err != nil {
			return nil, err
		}
		w.PaymentRequest = *p
		out = append(out, w)
	}
	return out, rows.Err()
}

// lockPending loads and locks a request, failing unless it is PENDING.
func lockPending(ctx context.Context, tx *sql.Tx, id string) (*model.PaymentRequest, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+paymentRequestColumns+" FROM payment_requests WHERE id=? FOR UPDATE", id)
	p, err := scanPaymentRequest(row)
	if err != nil {
		return nil, notFound(err, "lock payment request")
	}
	if p.Status != model.PaymentPending {
		return nil, ErrAlreadyDecided
	}
	return p, nil
}

// Approve marks the request APPROVED, appends an ACTIVE subscription for
// its billing cycle and writes the audit row.  All three writes commit
// together or not at all.
func (r *PaymentRequestRepo) Approve(ctx context.Context, id, adminID string, now time.Time) (*model.Subscription, error) {
	var sub *model.Subscription
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		p, err := lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE payment_requests SET status=?, decided_at=?, decided_by_user_id=? WHERE id=?",
			string(model.PaymentApproved), now, adminID, p.ID); err != nil {
			return fmt.Errorf("approve payment request: %w", err)
		}
		endsAt := now.Add(p.BillingCycle.Period())
		sub = &model.Subscription{
			ShopID:       p.ShopID,
			Status:       model.SubscriptionActive,
			BillingCycle: p.BillingCycle,
			AmountGHS:    p.AmountGHS,
			StartedAt:    now,
			EndsAt:       &endsAt,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := insertSubscription(ctx, tx, sub); err != nil {
			return err
		}
		return insertAudit(ctx, tx, adminID, model.AuditPaymentApproved, TargetPaymentRequest, p.ID, map[string]any{
			"shopId":       p.ShopID,
			"billingCycle": p.BillingCycle,
			"amountGhs":    p.AmountGHS,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Reject marks the request REJECTED with an optional note and audits it.
func (r *PaymentRequestRepo) Reject(ctx context.Context, id, adminID string, note *string, now time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		p, err := lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE payment_requests SET status=?, note=?, decided_at=?, decided_by_user_id=? WHERE id=?",
			string(model.PaymentRejected), nullString(note), now, adminID, p.ID); err != nil {
			return fmt.Errorf("reject payment request: %w", err)
		}
		return insertAudit(ctx, tx, adminID, model.AuditPaymentRejected, TargetPaymentRequest, p.ID, map[string]any{
			"shopId": p.ShopID,
			"note":   note,
		}, now)
	})
}
