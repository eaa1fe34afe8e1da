package model

import "time"

// User represents a row in the `users` table.  Every user belongs to
// exactly one shop; the platform operator is an ordinary user whose
// IsAdmin flag is recomputed from the configured admin identity at
// signup and on every login.
//
// Fields:
//
//	ID           – primary key (UUID).
//	ShopID       – owning tenant.
//	Name         – owner's display name.
//	Email        – unique, lower-cased email address.
//	Phone        – unique 10-digit phone number.
//	PasswordHash – bcrypt hash.
//	IsAdmin      – platform operator flag.
//	VerifiedAt   – set when the account may log in (nil blocks login).
type User struct {
	ID           string     // users.id
	ShopID       string     // users.shop_id
	Name         string     // users.name
	Email        string     // users.email
	Phone        string     // users.phone
	PasswordHash string     // users.password_hash
	IsAdmin      bool       // users.is_admin
	VerifiedAt   *time.Time // users.verified_at (nullable)
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}

// PasswordResetToken models a row in `password_reset_tokens`.  Only the
// SHA‑256 hash of the emailed token is stored.  A token is consumable
// once, before ExpiresAt.
type PasswordResetToken struct {
	ID        string    // password_reset_tokens.id
	UserID    string    // password_reset_tokens.user_id
	TokenHash string    // password_reset_tokens.token_hash
	ExpiresAt time.Time // password_reset_tokens.expires_at
	Used      bool      // password_reset_tokens.used
	CreatedAt time.Time // password_reset_tokens.created_at
}
