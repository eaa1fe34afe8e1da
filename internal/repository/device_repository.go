package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

const deviceColumns = "id, user_id, fingerprint_hash, label, last_seen_at, revoked_at, created_at"

// DeviceRepo manages rows in 'authorized_devices'.
type DeviceRepo struct{ DB *sql.DB }

func NewDeviceRepo(db *sql.DB) *DeviceRepo { return &DeviceRepo{DB: db} }

func scanDevice(row scanner) (*model.AuthorizedDevice, error) {
	var (
		d       model.AuthorizedDevice
		revoked sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.FingerprintHash, &d.Label, &d.LastSeenAt, &revoked, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.RevokedAt = ptrTime(revoked)
	return &d, nil
}

// FindActive returns the non-revoked device for (userID, fingerprintHash).
func (r *DeviceRepo) FindActive(ctx context.Context, userID, fingerprintHash string) (*model.AuthorizedDevice, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM authorized_devices WHERE user_id=? AND fingerprint_hash=? AND revoked_at IS NULL LIMIT 1",
		userID, fingerprintHash)
	d, err := scanDevice(row)
	if err != nil {
		return nil, notFound(err, "find device")
	}
	return d, nil
}

// Create inserts a device row.  An empty ID is filled with a new UUID.
func (r *DeviceRepo) Create(ctx context.Context, d *model.AuthorizedDevice) error {
	if d.ID == "" {
		d.ID = newID()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO authorized_devices (id, user_id, fingerprint_hash, label, last_seen_at, created_at) VALUES (?,?,?,?,?,?)",
		d.ID, d.UserID, d.FingerprintHash, d.Label, d.LastSeenAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// TouchLastSeen refreshes last_seen_at.
func (r *DeviceRepo) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE authorized_devices SET last_seen_at=? WHERE id=?", at, id)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return nil
}

// ListActive returns the user's non-revoked devices, most recently seen first.
func (r *DeviceRepo) ListActive(ctx context.Context, userID string) ([]model.AuthorizedDevice, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+deviceColumns+" FROM authorized_devices WHERE user_id=? AND revoked_at IS NULL ORDER BY last_seen_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []model.AuthorizedDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Revoke revokes one of the user's devices and every session bound to it.
// ErrNotFound is returned when the device is unknown, already revoked, or
// belongs to someone else.
func (r *DeviceRepo) Revoke(ctx context.Context, userID, deviceID string, at time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE authorized_devices SET revoked_at=? WHERE id=? AND user_id=? AND revoked_at IS NULL",
			at, deviceID, userID)
		if err != nil {
			return fmt.Errorf("revoke device: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET revoked_at=? WHERE device_id=? AND revoked_at IS NULL", at, deviceID); err != nil {
			return fmt.Errorf("revoke device sessions: %w", err)
		}
		return nil
	})
}
