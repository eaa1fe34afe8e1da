package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/queue"
	"github.com/mysocial/shop-api/internal/repository"
	"github.com/mysocial/shop-api/internal/utils"
)

// ResetTokenTTL is how long an emailed reset link stays usable.
const ResetTokenTTL = time.Hour

// ErrInvalidOrExpiredToken is returned for unknown, used or expired reset
// tokens.
var ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

// UserFinder looks users up for password resets.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
}

// ResetTokenStore persists reset tokens.
type ResetTokenStore interface {
	Create(ctx context.Context, t *model.PasswordResetToken) error
	Consume(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
}

// CredentialOptions configures CredentialService.
type CredentialOptions struct {
	BcryptCost int
	AppBaseURL string
	Production bool
}

// CredentialService hashes passwords and runs the reset-token flow.
type CredentialService struct {
	Users    UserFinder
	Tokens   ResetTokenStore
	Notifier ResetNotifier
	Opts     CredentialOptions
	Log      *zap.Logger
	Now      func() time.Time
}

func NewCredentialService(users UserFinder, tokens ResetTokenStore, notifier ResetNotifier, opts CredentialOptions, log *zap.Logger) *CredentialService {
	return &CredentialService{
		Users:    users,
		Tokens:   tokens,
		Notifier: notifier,
		Opts:     opts,
		Log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeTarget trims an email or phone and lower-cases it.
func NormalizeTarget(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// HashPassword bcrypts plain at the configured cost.
func (s *CredentialService) HashPassword(plain string) (string, error) {
	return utils.HashPassword(plain, s.Opts.BcryptCost)
}

// VerifyPassword compares plain with a stored hash.
func (s *CredentialService) VerifyPassword(hash, plain string) bool {
	return utils.CheckPassword(hash, plain)
}

// CreatePasswordResetToken stores a fresh token for userID and returns the
// raw value for the email link.
func (s *CredentialService) CreatePasswordResetToken(ctx context.Context, userID string) (string, error) {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	now := s.Now()
	if err := s.Tokens.Create(ctx, &model.PasswordResetToken{
		UserID:    userID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return "", err
	}
	return raw, nil
}

// ConsumeResetToken sets a new password with a valid token.  The token
// becomes unusable in the same transaction.
func (s *CredentialService) ConsumeResetToken(ctx context.Context, raw, newPassword string) error {
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.Tokens.Consume(ctx, utils.HashToken(raw), hash, s.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidOrExpiredToken
	}
	return err
}

// ResetLink builds the web link for a raw token.
func (s *CredentialService) ResetLink(raw string) string {
	return strings.TrimRight(s.Opts.AppBaseURL, "/") + "/reset-password?token=" + url.QueryEscape(raw)
}

// RequestPasswordReset issues a reset for the account with email, if any.
// Unknown emails are silently ignored so callers cannot enumerate accounts.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.Users.GetByEmail(ctx, NormalizeTarget(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.issueReset(ctx, u, queue.ReasonSelfService)
}

// SendSupportReset issues a reset for the account matching an email or a
// phone number.  It reports whether an account was found.
func (s *CredentialService) SendSupportReset(ctx context.Context, target string) (bool, error) {
	target = NormalizeTarget(target)
	var (
		u   *model.User
		err error
	)
	if strings.Contains(target, "@") {
		u, err = s.Users.GetByEmail(ctx, target)
	} else {
		u, err = s.Users.GetByPhone(ctx, target)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if u.Email == "" {
		return false, nil
	}
	return true, s.issueReset(ctx, u, queue.ReasonAdminSupport)
}

func (s *CredentialService) issueReset(ctx context.Context, u *model.User, reason string) error {
	raw, err := s.CreatePasswordResetToken(ctx, u.ID)
	if err != nil {
		return err
	}
	link := s.ResetLink(raw)
	if !s.Opts.Production {
		s.Log.Info("password reset link", zap.String("email", u.Email), zap.String("link", link))
	}
	ev := queue.PasswordResetRequestedEvent{
		UserID:      u.ID,
		Email:       u.Email,
		ResetLink:   link,
		Reason:      reason,
		RequestedAt: s.Now().Format(time.RFC3339),
	}
	if err := s.Notifier.NotifyPasswordReset(ctx, ev); err != nil {
		// delivery is best effort; the token is already stored
		s.Log.Warn("password reset delivery failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return nil
}
