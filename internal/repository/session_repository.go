package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

// SessionRepo persists server-side sessions.  Only the SHA‑256 hash of the
// bearer token is stored (column 'token_hash').
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row.  An empty ID is filled with a new UUID.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	if s.ID == "" {
		s.ID = newID()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, device_id, token_hash, last_activity_at, created_at) VALUES (?,?,?,?,?,?)",
		s.ID, s.UserID, s.DeviceID, s.TokenHash, s.LastActivityAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FindLiveByTokenHash returns the non-revoked session for tokenHash joined
// with its user and device.  Inactivity is judged by the caller.
func (r *SessionRepo) FindLiveByTokenHash(ctx context.Context, tokenHash string) (*model.SessionDetail, error) {
	var (
		d        model.SessionDetail
		verified sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT s.id, s.user_id, s.device_id, s.token_hash, s.last_activity_at, s.created_at,
		       u.id, u.shop_id, u.name, u.email, u.phone, u.password_hash, u.is_admin, u.verified_at, u.created_at, u.updated_at,
		       d.id, d.user_id, d.fingerprint_hash, d.label, d.last_seen_at, d.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		JOIN authorized_devices d ON d.id = s.device_id
		WHERE s.token_hash = ? AND s.revoked_at IS NULL AND d.revoked_at IS NULL
		LIMIT 1`, tokenHash).Scan(
		&d.Session.ID, &d.Session.UserID, &d.Session.DeviceID, &d.Session.TokenHash, &d.Session.LastActivityAt, &d.Session.CreatedAt,
		&d.User.ID, &d.User.ShopID, &d.User.Name, &d.User.Email, &d.User.Phone, &d.User.PasswordHash, &d.User.IsAdmin, &verified, &d.User.CreatedAt, &d.User.UpdatedAt,
		&d.Device.ID, &d.Device.UserID, &d.Device.FingerprintHash, &d.Device.Label, &d.Device.LastSeenAt, &d.Device.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "find session")
	}
	d.User.VerifiedAt = ptrTime(verified)
	return &d, nil
}

// Touch records activity on a live session.
func (r *SessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET last_activity_at=? WHERE id=? AND revoked_at IS NULL", at, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Revoke marks a session as revoked.
func (r *SessionRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at=? WHERE id=? AND revoked_at IS NULL", at, id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeByTokenHash revokes the session holding tokenHash, if any.
func (r *SessionRepo) RevokeByTokenHash(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL", at, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke session by hash: %w", err)
	}
	return nil
}
