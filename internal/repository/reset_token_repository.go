package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

// ResetTokenRepo stores password reset tokens by SHA‑256 hash.
type ResetTokenRepo struct{ DB *sql.DB }

func NewResetTokenRepo(db *sql.DB) *ResetTokenRepo { return &ResetTokenRepo{DB: db} }

// Create inserts an unused token row.
func (r *ResetTokenRepo) Create(ctx context.Context, t *model.PasswordResetToken) error {
	if t.ID == "" {
		t.ID = newID()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used, created_at) VALUES (?,?,?,?,0,?)",
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

// Consume sets the owner's password and marks the token used in one
// transaction.  ErrNotFound means the token is unknown, used or expired.
// It returns the id of the user whose password changed.
func (r *ResetTokenRepo) Consume(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	var userID string
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			"SELECT id, user_id FROM password_reset_tokens WHERE token_hash=? AND used=0 AND expires_at > ? LIMIT 1 FOR UPDATE",
			tokenHash, now).Scan(&id, &userID)
		if err != nil {
			return notFound(err, "lock reset token")
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", passwordHash, now, userID); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE password_reset_tokens SET used=1 WHERE id=?", id); err != nil {
			return fmt.Errorf("mark token used: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}
