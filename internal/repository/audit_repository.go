package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

// Audit target types.
const (
	TargetShop           = "SHOP"
	TargetPaymentRequest = "PAYMENT_REQUEST"
	TargetSupport        = "SUPPORT"
)

// AuditRepo reads and appends 'admin_audit_logs'.  Admin mutations that
// live in other repositories write their audit row through insertAudit
// inside their own transaction.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// insertAudit appends one audit row using q (a *sql.DB or *sql.Tx).
func insertAudit(ctx context.Context, q querier, adminID, action, targetType, targetID string, meta any, now time.Time) error {
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal audit meta: %w", err)
	}
	_, err = q.ExecContext(ctx,
		"INSERT INTO admin_audit_logs (id, admin_user_id, action, target_type, target_id, meta, created_at) VALUES (?,?,?,?,?,?,?)",
		newID(), adminID, action, targetType, targetID, string(raw), now)
	if err != nil {
		return fmt.Errorf("insert audit %s: %w", action, err)
	}
	return nil
}

// Append writes a standalone audit row.
func (r *AuditRepo) Append(ctx context.Context, adminID, action, targetType, targetID string, meta any, now time.Time) error {
	return insertAudit(ctx, r.DB, adminID, action, targetType, targetID, meta, now)
}

// List returns the newest audit rows first, joined with the acting admin.
func (r *AuditRepo) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT a.id, a.admin_user_id, a.action, a.target_type, a.target_id, a.meta, a.created_at,
		       COALESCE(u.name,''), COALESCE(u.email,''), COALESCE(u.phone,'')
		FROM admin_audit_logs a
		LEFT JOIN users u ON u.id = a.admin_user_id
		ORDER BY a.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e    model.AuditEntry
			meta sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.AdminUserID, &e.Action, &e.TargetType, &e.TargetID, &meta, &e.CreatedAt,
			&e.AdminName, &e.AdminEmail, &e.AdminPhone); err != nil {
			return nil, err
		}
		if meta.Valid {
			e.Meta = json.RawMessage(meta.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
