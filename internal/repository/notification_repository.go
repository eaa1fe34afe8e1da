package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

// NotificationRepo reads and acknowledges rows in 'notifications'.  Every
// query is scoped to a shop.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// ListForShop returns the shop's notifications, newest first.
func (r *NotificationRepo) ListForShop(ctx context.Context, shopID string) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, shop_id, message, read_at, created_at FROM notifications WHERE shop_id=? ORDER BY created_at DESC",
		shopID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n    model.Notification
			read sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.ShopID, &n.Message, &read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.ReadAt = ptrTime(read)
		out = append(out, n)
	}
	return out, rows.Err()
}

// CountUnread counts the shop's unread notifications.
func (r *NotificationRepo) CountUnread(ctx context.Context, shopID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE shop_id=? AND read_at IS NULL", shopID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkRead stamps read_at on an unread notification of the shop.  It
// returns ErrNotFound when no such unread row exists, which includes rows
// owned by another shop.
func (r *NotificationRepo) MarkRead(ctx context.Context, shopID, id string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notifications SET read_at=? WHERE id=? AND shop_id=? AND read_at IS NULL", at, id, shopID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
