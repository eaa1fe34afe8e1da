package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

const subscriptionColumns = "id, shop_id, status, trial_ends_at, billing_cycle, amount_ghs, started_at, ends_at, created_at, updated_at"

// SubscriptionRepo manages the append-only 'subscriptions' history.  The
// row with the latest created_at is a shop's current subscription.
type SubscriptionRepo struct{ DB *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{DB: db} }

func scanSubscription(row scanner) (*model.Subscription, error) {
	var (
		s         model.Subscription
		trialEnds sql.NullTime
		endsAt    sql.NullTime
		status    string
		cycle     string
	)
	if err := row.Scan(&s.ID, &s.ShopID, &status, &trialEnds, &cycle, &s.AmountGHS,
		&s.StartedAt, &endsAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = model.SubscriptionStatus(status)
	s.BillingCycle = model.BillingCycle(cycle)
	s.TrialEndsAt = ptrTime(trialEnds)
	s.EndsAt = ptrTime(endsAt)
	return &s, nil
}

func insertSubscription(ctx context.Context, q querier, s *model.Subscription) error {
	if s.ID == "" {
		s.ID = newID()
	}
	_, err := q.ExecContext(ctx,
		"INSERT INTO subscriptions ("+subscriptionColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
		s.ID, s.ShopID, string(s.Status), nullTime(s.TrialEndsAt), string(s.BillingCycle), s.AmountGHS,
		s.StartedAt, nullTime(s.EndsAt), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func currentSubscription(ctx context.Context, q querier, shopID string, forUpdate bool) (*model.Subscription, error) {
	query := "SELECT " + subscriptionColumns + " FROM subscriptions WHERE shop_id=? ORDER BY created_at DESC LIMIT 1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	s, err := scanSubscription(q.QueryRowContext(ctx, query, shopID))
	if err != nil {
		return nil, notFound(err, "current subscription")
	}
	return s, nil
}

// Current returns the shop's latest subscription row.
func (r *SubscriptionRepo) Current(ctx context.Context, shopID string) (*model.Subscription, error) {
	return currentSubscription(ctx, r.DB, shopID, false)
}

// MarkExpired rewrites a row's status to EXPIRED.
func (r *SubscriptionRepo) MarkExpired(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE subscriptions SET status=?, updated_at=? WHERE id=? AND status<>?",
		string(model.SubscriptionExpired), at, id, string(model.SubscriptionExpired))
	if err != nil {
		return fmt.Errorf("mark subscription expired: %w", err)
	}
	return nil
}

// CountByStatus counts rows (not shops) in the given status.
func (r *SubscriptionRepo) CountByStatus(ctx context.Context, status model.SubscriptionStatus) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE status=?", string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return n, nil
}

// Activate appends an ACTIVE subscription for the shop and audits it.
func (r *SubscriptionRepo) Activate(ctx context.Context, shopID, adminID string, cycle model.BillingCycle, amountGHS *int, now time.Time) (*model.Subscription, error) {
	if !cycle.Valid() {
		return nil, ErrInvalidBillingCycle
	}
	endsAt := now.Add(cycle.Period())
	amount := cycle.PriceGHS()
	if amountGHS != nil {
		amount = *amountGHS
	}
	sub := &model.Subscription{
		ShopID:       shopID,
		Status:       model.SubscriptionActive,
		BillingCycle: cycle,
		AmountGHS:    amount,
		StartedAt:    now,
		EndsAt:       &endsAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var id string
		if err := tx.QueryRowContext(ctx, "SELECT id FROM shops WHERE id=? FOR UPDATE", shopID).Scan(&id); err != nil {
			return notFound(err, "lock shop")
		}
		if err := insertSubscription(ctx, tx, sub); err != nil {
			return err
		}
		return insertAudit(ctx, tx, adminID, model.AuditShopActivated, TargetShop, shopID, map[string]any{
			"days":      int(cycle.Period() / (24 * time.Hour)),
			"cycle":     cycle,
			"amountGhs": amountGHS,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ExtendTrial sets the latest subscription back to TRIALING with a later
// trial end and audits it.  It returns the new trial end.
func (r *SubscriptionRepo) ExtendTrial(ctx context.Context, shopID, adminID string, days int, now time.Time) (time.Time, error) {
	var trialEndsAt time.Time
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		latest, err := currentSubscription(ctx, tx, shopID, true)
		if err != nil {
			return err
		}
		trialEndsAt = model.NextTrialEnd(latest.TrialEndsAt, now, days)
		if _, err := tx.ExecContext(ctx,
			"UPDATE subscriptions SET status=?, trial_ends_at=?, updated_at=? WHERE id=?",
			string(model.SubscriptionTrialing), trialEndsAt, now, latest.ID); err != nil {
			return fmt.Errorf("extend trial: %w", err)
		}
		return insertAudit(ctx, tx, adminID, model.AuditShopTrialExtended, TargetShop, shopID, map[string]any{
			"days":        days,
			"trialEndsAt": trialEndsAt.UTC().Format(time.RFC3339),
		}, now)
	})
	return trialEndsAt, err
}

// Suspend expires the latest subscription immediately and audits it.
func (r *SubscriptionRepo) Suspend(ctx context.Context, shopID, adminID string, reason *string, now time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		latest, err := currentSubscription(ctx, tx, shopID, true)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE subscriptions SET status=?, ends_at=?, updated_at=? WHERE id=?",
			string(model.SubscriptionExpired), now, now, latest.ID); err != nil {
			return fmt.Errorf("suspend subscription: %w", err)
		}
		return insertAudit(ctx, tx, adminID, model.AuditShopSuspended, TargetShop, shopID,
			map[string]any{"reason": reason}, now)
	})
}

// NormalizeResult summarizes a trial normalization run.
type NormalizeResult struct {
	Processed int
	Updated   int
	CappedTo  time.Time
}

// NormalizeTrials caps the latest TRIALING row of every shop at now+7d.
// Rows without a trial end, or ending later than the cap, are updated.
func (r *SubscriptionRepo) NormalizeTrials(ctx context.Context, adminID string, now time.Time) (NormalizeResult, error) {
	res := NormalizeResult{CappedTo: now.Add(model.TrialPeriod)}
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT id, shop_id, trial_ends_at, created_at FROM subscriptions WHERE status=? FOR UPDATE",
			string(model.SubscriptionTrialing))
		if err != nil {
			return fmt.Errorf("select trialing: %w", err)
		}
		type trialRow struct {
			id        string
			trialEnds sql.NullTime
			createdAt time.Time
		}
		latest := map[string]trialRow{}
		for rows.Next() {
			var (
				row    trialRow
				shopID string
			)
			if err := rows.Scan(&row.id, &shopID, &row.trialEnds, &row.createdAt); err != nil {
				rows.Close()
				return err
			}
			if prev, ok := latest[shopID]; !ok || row.createdAt.After(prev.createdAt) {
				latest[shopID] = row
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		res.Processed = len(latest)
		for _, row := range latest {
			if row.trialEnds.Valid && !row.trialEnds.Time.After(res.CappedTo) {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE subscriptions SET trial_ends_at=?, updated_at=? WHERE id=?", res.CappedTo, now, row.id); err != nil {
				return fmt.Errorf("cap trial: %w", err)
			}
			res.Updated++
		}
		return insertAudit(ctx, tx, adminID, model.AuditTrialsNormalized, TargetSupport, "TRIALING_SUBSCRIPTIONS", map[string]any{
			"processed": res.Processed,
			"updated":   res.Updated,
			"capIso":    res.CappedTo.UTC().Format(time.RFC3339),
		}, now)
	})
	if err != nil {
		return NormalizeResult{}, err
	}
	return res, nil
}
