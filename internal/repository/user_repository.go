package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mysocial/shop-api/internal/model"
)

const userColumns = "id, shop_id, name, email, phone, password_hash, is_admin, verified_at, created_at, updated_at"

// UserRepo reads and updates rows in the 'users' table.  Users are
// created together with their shop by ShopRepo.CreateWithOwner.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(row scanner) (*model.User, error) {
	var (
		u        model.User
		verified sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.ShopID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash,
		&u.IsAdmin, &verified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.VerifiedAt = ptrTime(verified)
	return &u, nil
}

func (r *UserRepo) getBy(ctx context.Context, column, value string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+column+"=? LIMIT 1", value)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "get user by "+column)
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetByPhone fetches a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.getBy(ctx, "phone", strings.TrimSpace(phone))
}

// FindByTarget looks a user up by email or phone, whichever matches.
func (r *UserRepo) FindByTarget(ctx context.Context, target string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? OR phone=? LIMIT 1", target, target)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "find user by target")
	}
	return u, nil
}

// Exists reports whether the email or phone is already registered.
func (r *UserRepo) Exists(ctx context.Context, email, phone string) (emailTaken, phoneTaken bool, err error) {
	err = r.DB.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(email=?),0) > 0, COALESCE(SUM(phone=?),0) > 0 FROM users WHERE email=? OR phone=?",
		email, phone, email, phone).Scan(&emailTaken, &phoneTaken)
	if err != nil {
		return false, false, fmt.Errorf("check user exists: %w", err)
	}
	return emailTaken, phoneTaken, nil
}

// SetAdmin persists a recomputed admin flag.
func (r *UserRepo) SetAdmin(ctx context.Context, id string, isAdmin bool, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_admin=?, updated_at=? WHERE id=?", isAdmin, now, id)
	if err != nil {
		return fmt.Errorf("set admin flag: %w", err)
	}
	return nil
}
