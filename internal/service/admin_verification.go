package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mysocial/shop-api/internal/metrics"
)

// AdminVerificationTTL is how long a step-up verification lasts.
const AdminVerificationTTL = 5 * time.Hour

var (
	// ErrAdminPasswordNotConfigured means ADMIN_PASSWORD is missing or weak,
	// so step-up cannot succeed at all.
	ErrAdminPasswordNotConfigured = errors.New("admin password is not configured securely")
	// ErrAdminPasswordMismatch means the submitted password was wrong.
	ErrAdminPasswordMismatch = errors.New("invalid admin password")
)

// VerificationStore remembers which sessions passed admin step-up.
type VerificationStore interface {
	MarkVerified(ctx context.Context, sessionID string) error
	IsVerified(ctx context.Context, sessionID string) (bool, error)
	Clear(ctx context.Context, sessionID string) error
}

// MemoryVerificationStore keeps verifications in process memory.  Expired
// entries are swept on every call.  Use it only with a single instance.
type MemoryVerificationStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	TTL     time.Duration
	Now     func() time.Time
}

func NewMemoryVerificationStore(ttl time.Duration) *MemoryVerificationStore {
	return &MemoryVerificationStore{
		entries: map[string]time.Time{},
		TTL:     ttl,
		Now:     time.Now,
	}
}

func (s *MemoryVerificationStore) sweepLocked(now time.Time) {
	for id, at := range s.entries {
		if now.Sub(at) > s.TTL {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryVerificationStore) MarkVerified(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.Now()
	s.sweepLocked(now)
	s.entries[sessionID] = now
	return nil
}

func (s *MemoryVerificationStore) IsVerified(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.Now())
	_, ok := s.entries[sessionID]
	return ok, nil
}

func (s *MemoryVerificationStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	return nil
}

// size reports the number of stored entries.
func (s *MemoryVerificationStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisVerificationStore shares verifications across instances; Redis
// expires the keys.
type RedisVerificationStore struct {
	RDB    *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedisVerificationStore(rdb *redis.Client, ttl time.Duration) *RedisVerificationStore {
	return &RedisVerificationStore{RDB: rdb, Prefix: "admin:verified:", TTL: ttl}
}

func (s *RedisVerificationStore) MarkVerified(ctx context.Context, sessionID string) error {
	return s.RDB.Set(ctx, s.Prefix+sessionID, time.Now().UTC().Format(time.RFC3339), s.TTL).Err()
}

func (s *RedisVerificationStore) IsVerified(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.RDB.Exists(ctx, s.Prefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisVerificationStore) Clear(ctx context.Context, sessionID string) error {
	return s.RDB.Del(ctx, s.Prefix+sessionID).Err()
}

// IsStrongAdminPassword requires at least 12 characters with an upper-case
// letter, a lower-case letter, a digit and a symbol.
func IsStrongAdminPassword(pw string) bool {
	if len(pw) < 12 {
		return false
	}
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

// AdminIdentity is the configured operator account.  Both parts must be set
// and both must match for a user to count as the admin.
type AdminIdentity struct {
	Email string
	Phone string
}

// Matches compares a user's email (case-insensitive) and phone.
func (a AdminIdentity) Matches(email, phone string) bool {
	wantEmail := strings.ToLower(strings.TrimSpace(a.Email))
	wantPhone := strings.TrimSpace(a.Phone)
	if wantEmail == "" || wantPhone == "" {
		return false
	}
	return strings.ToLower(strings.TrimSpace(email)) == wantEmail && strings.TrimSpace(phone) == wantPhone
}

// AdminVerifier checks the step-up password and records the result.
type AdminVerifier struct {
	Store    VerificationStore
	password string
}

func NewAdminVerifier(store VerificationStore, password string) *AdminVerifier {
	return &AdminVerifier{Store: store, password: strings.TrimSpace(password)}
}

// Verify marks sessionID verified when attempt equals the configured
// password.  A weak configured password fails closed.
func (v *AdminVerifier) Verify(ctx context.Context, sessionID, attempt string) error {
	if !IsStrongAdminPassword(v.password) {
		metrics.AdminVerifications.WithLabelValues("misconfigured").Inc()
		return ErrAdminPasswordNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(attempt), []byte(v.password)) != 1 {
		metrics.AdminVerifications.WithLabelValues("rejected").Inc()
		return ErrAdminPasswordMismatch
	}
	if err := v.Store.MarkVerified(ctx, sessionID); err != nil {
		return err
	}
	metrics.AdminVerifications.WithLabelValues("verified").Inc()
	return nil
}

// IsVerified reports whether sessionID holds a live verification.
func (v *AdminVerifier) IsVerified(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	return v.Store.IsVerified(ctx, sessionID)
}

// Clear drops the verification for sessionID.
func (v *AdminVerifier) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return v.Store.Clear(ctx, sessionID)
}
