package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

const shopColumns = "id, name, phone, email, location_note, created_at, updated_at"

// ShopRepo manages tenants: signup, profile edits, the admin listing and
// the full cascade delete.
type ShopRepo struct{ DB *sql.DB }

func NewShopRepo(db *sql.DB) *ShopRepo { return &ShopRepo{DB: db} }

func scanShop(row scanner, extra ...any) (*model.Shop, error) {
	var (
		s     model.Shop
		email sql.NullString
		note  sql.NullString
	)
	dest := []any{&s.ID, &s.Name, &s.Phone, &email, &note, &s.CreatedAt, &s.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	s.Email = ptrString(email)
	s.LocationNote = ptrString(note)
	return &s, nil
}

// GetByID fetches a shop by id.
func (r *ShopRepo) GetByID(ctx context.Context, id string) (*model.Shop, error) {
	s, err := scanShop(r.DB.QueryRowContext(ctx, "SELECT "+shopColumns+" FROM shops WHERE id=?", id))
	if err != nil {
		return nil, notFound(err, "get shop")
	}
	return s, nil
}

// CreateWithOwner inserts the shop, its owner and the initial subscription
// in one transaction.  Unique collisions surface as ErrEmailExists or
// ErrPhoneExists.
func (r *ShopRepo) CreateWithOwner(ctx context.Context, shop *model.Shop, owner *model.User, sub *model.Subscription) error {
	if shop.ID == "" {
		shop.ID = newID()
	}
	if owner.ID == "" {
		owner.ID = newID()
	}
	owner.ShopID = shop.ID
	sub.ShopID = shop.ID
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO shops ("+shopColumns+") VALUES (?,?,?,?,?,?,?)",
			shop.ID, shop.Name, shop.Phone, nullString(shop.Email), nullString(shop.LocationNote), shop.CreatedAt, shop.UpdatedAt); err != nil {
			return fmt.Errorf("insert shop: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?)",
			owner.ID, owner.ShopID, owner.Name, owner.Email, owner.Phone, owner.PasswordHash, owner.IsAdmin,
			nullTime(owner.VerifiedAt), owner.CreatedAt, owner.UpdatedAt); err != nil {
			switch key := duplicateKey(err); {
			case strings.Contains(key, "email"):
				return ErrEmailExists
			case strings.Contains(key, "phone"):
				return ErrPhoneExists
			case key != "":
				return ErrConflict
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return insertSubscription(ctx, tx, sub)
	})
}

// ShopUpdate carries an owner's profile edit.  LocationNote is always
// written (nil clears it); Email and OwnerName only when set.
type ShopUpdate struct {
	Name         string
	Phone        string
	LocationNote *string
	Email        *string
	OwnerName    *string
}

// UpdateProfile applies upd to the shop and, for OwnerName, to the user.
func (r *ShopRepo) UpdateProfile(ctx context.Context, shopID, userID string, upd ShopUpdate, now time.Time) (*model.Shop, error) {
	var out *model.Shop
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		query := "UPDATE shops SET name=?, phone=?, location_note=?, updated_at=?"
		args := []any{upd.Name, upd.Phone, nullString(upd.LocationNote), now}
		if upd.Email != nil {
			query += ", email=?"
			args = append(args, *upd.Email)
		}
		args = append(args, shopID)
		res, err := tx.ExecContext(ctx, query+" WHERE id=?", args...)
		if err != nil {
			return fmt.Errorf("update shop: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// MySQL reports 0 for unchanged rows too, so confirm existence.
			var id string
			if err := tx.QueryRowContext(ctx, "SELECT id FROM shops WHERE id=?", shopID).Scan(&id); err != nil {
				return notFound(err, "get shop")
			}
		}
		if upd.OwnerName != nil {
			if _, err := tx.ExecContext(ctx,
				"UPDATE users SET name=?, updated_at=? WHERE id=?", *upd.OwnerName, now, userID); err != nil {
				return fmt.Errorf("update owner name: %w", err)
			}
		}
		out, err = scanShop(tx.QueryRowContext(ctx, "SELECT "+shopColumns+" FROM shops WHERE id=?", shopID))
		if err != nil {
			return notFound(err, "reload shop")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListForAdmin returns every shop that has no admin user, newest first,
// with its owner, current subscription and pending request count.
func (r *ShopRepo) ListForAdmin(ctx context.Context) ([]model.AdminShopRow, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT s.id, s.name, s.phone, s.email, s.location_note, s.created_at, s.updated_at,
		       COALESCE(o.name,''), COALESCE(o.email,''), COALESCE(o.phone,''),
		       (SELECT COUNT(*) FROM payment_requests p WHERE p.shop_id = s.id AND p.status = 'PENDING')
		FROM shops s
		LEFT JOIN users o ON o.id = (SELECT u.id FROM users u WHERE u.shop_id = s.id ORDER BY u.created_at ASC LIMIT 1)
		WHERE NOT EXISTS (SELECT 1 FROM users a WHERE a.shop_id = s.id AND a.is_admin = 1)
		ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	var out []model.AdminShopRow
	index := map[string]int{}
	for rows.Next() {
		var row model.AdminShopRow
		shop, err := scanShop(rows, &row.OwnerName, &row.OwnerEmail, &row.OwnerPhone, &row.PendingPaymentReqs)
		if err != nil {
			rows.Close()
			return nil, err
		}
		row.Shop = *shop
		index[shop.ID] = len(out)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	subs, err := r.DB.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions sub
		WHERE sub.id = (SELECT s2.id FROM subscriptions s2 WHERE s2.shop_id = sub.shop_id ORDER BY s2.created_at DESC LIMIT 1)`)
	if err != nil {
		return nil, fmt.Errorf("list current subscriptions: %w", err)
	}
	defer subs.Close()
	for subs.Next() {
		sub, err := scanSubscription(subs)
		if err != nil {
			return nil, err
		}
		if i, ok := index[sub.ShopID]; ok {
			out[i].Subscription = sub
		}
	}
	return out, subs.Err()
}

// tenantTables lists shop-scoped tables in foreign-key safe delete order.
var tenantTables = []string{
	"notifications",
	"assignments",
	"sales",
	"consignments",
	"inventory_items",
	"dealers",
	"payment_requests",
	"subscriptions",
}

// userTables lists tables keyed by user_id of the shop's users.
var userTables = []string{
	"password_reset_tokens",
	"sessions",
	"authorized_devices",
}

// DeleteCascade removes the shop and every row that belongs to it, then
// records a DELETE_SHOP audit row.  Nothing is removed if any step fails.
func (r *ShopRepo) DeleteCascade(ctx context.Context, shopID, adminID string, now time.Time) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var ownerEmail, ownerPhone sql.NullString
		shop, err := scanShop(tx.QueryRowContext(ctx, `
			SELECT s.id, s.name, s.phone, s.email, s.location_note, s.created_at, s.updated_at, o.email, o.phone
			FROM shops s
			LEFT JOIN users o ON o.id = (SELECT u.id FROM users u WHERE u.shop_id = s.id ORDER BY u.created_at ASC LIMIT 1)
			WHERE s.id = ? FOR UPDATE`, shopID), &ownerEmail, &ownerPhone)
		if err != nil {
			return notFound(err, "lock shop")
		}

		for _, table := range tenantTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE shop_id=?", shopID); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		for _, table := range userTables {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM "+table+" WHERE user_id IN (SELECT id FROM users WHERE shop_id=?)", shopID); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM admin_audit_logs WHERE admin_user_id IN (SELECT id FROM users WHERE shop_id=?)", shopID); err != nil {
			return fmt.Errorf("delete admin_audit_logs: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE shop_id=?", shopID); err != nil {
			return fmt.Errorf("delete users: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM shops WHERE id=?", shopID); err != nil {
			return fmt.Errorf("delete shop: %w", err)
		}
		return insertAudit(ctx, tx, adminID, model.AuditShopDeleted, TargetShop, shopID, map[string]any{
			"shopName":   shop.Name,
			"ownerEmail": ptrString(ownerEmail),
			"ownerPhone": ptrString(ownerPhone),
		}, now)
	})
}

// DashboardCounts aggregates the shop's tenant activity.
func (r *ShopRepo) DashboardCounts(ctx context.Context, shopID string, now time.Time) (model.DashboardCounts, error) {
	var c model.DashboardCounts
	err := r.DB.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM inventory_items WHERE shop_id = ?),
		  (SELECT COUNT(*) FROM dealers WHERE shop_id = ?),
		  (SELECT COUNT(*) FROM consignments WHERE shop_id = ?),
		  (SELECT COUNT(*) FROM consignments WHERE shop_id = ? AND status = 'OUT_WITH_DEALER' AND expected_return_at < ?),
		  (SELECT COUNT(*) FROM notifications WHERE shop_id = ? AND read_at IS NULL)`,
		shopID, shopID, shopID, shopID, now, shopID).Scan(
		&c.InventoryItems, &c.Dealers, &c.Consignments, &c.OverdueConsignments, &c.UnreadNotifications)
	if err != nil {
		return model.DashboardCounts{}, fmt.Errorf("dashboard counts: %w", err)
	}
	return c, nil
}
