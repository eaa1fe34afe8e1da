package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/metrics"
	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
	"github.com/mysocial/shop-api/internal/utils"
)

const (
	// InactivityTimeout is how long a session survives without requests.
	// Exactly this much idle time is still valid.
	InactivityTimeout = 5 * time.Hour
	// ActivityTouchInterval throttles last-activity writes.
	ActivityTouchInterval = 60 * time.Second
)

// ErrSessionExpired is returned by Validate for a session that was idle for
// longer than InactivityTimeout.  The session is revoked as a side effect.
var ErrSessionExpired = errors.New("session expired")

// SessionStore is the persistence SessionManager needs.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	FindLiveByTokenHash(ctx context.Context, tokenHash string) (*model.SessionDetail, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeByTokenHash(ctx context.Context, tokenHash string, at time.Time) error
}

// SessionManager issues, validates and revokes opaque session tokens with a
// rolling inactivity timeout.
type SessionManager struct {
	Store   SessionStore
	Devices *DeviceBinder
	BG      *Background
	Log     *zap.Logger
	Now     func() time.Time
}

func NewSessionManager(store SessionStore, devices *DeviceBinder, bg *Background, log *zap.Logger) *SessionManager {
	return &SessionManager{
		Store:   store,
		Devices: devices,
		BG:      bg,
		Log:     log,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create binds the login to a device and opens a session.  The returned raw
// token goes to the client; only its hash is stored.
func (m *SessionManager) Create(ctx context.Context, userID string, dev DeviceInfo) (string, *model.Session, error) {
	deviceID, err := m.Devices.ResolveOrCreate(ctx, userID, dev)
	if err != nil {
		return "", nil, fmt.Errorf("resolve device: %w", err)
	}
	token, err := utils.NewOpaqueToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	now := m.Now()
	s := &model.Session{
		UserID:         userID,
		DeviceID:       deviceID,
		TokenHash:      utils.HashToken(token),
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := m.Store.Create(ctx, s); err != nil {
		return "", nil, err
	}
	metrics.SessionEvents.WithLabelValues("created").Inc()
	return token, s, nil
}

// Validate resolves a raw token.  It returns (nil, nil) when the token is
// empty, unknown or revoked, and ErrSessionExpired when the session idled
// out.  Activity is recorded in the background at most once per
// ActivityTouchInterval.
func (m *SessionManager) Validate(ctx context.Context, token string) (*model.SessionDetail, error) {
	if token == "" {
		return nil, nil
	}
	detail, err := m.Store.FindLiveByTokenHash(ctx, utils.HashToken(token))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := m.Now()
	idle := now.Sub(detail.Session.LastActivityAt)
	if idle > InactivityTimeout {
		if err := m.Store.Revoke(ctx, detail.Session.ID, now); err != nil {
			m.Log.Warn("revoke expired session failed", zap.String("session_id", detail.Session.ID), zap.Error(err))
		}
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		return nil, ErrSessionExpired
	}
	if idle > ActivityTouchInterval {
		id := detail.Session.ID
		m.BG.Go("session.touch", func(ctx context.Context) error {
			return m.Store.Touch(ctx, id, now)
		})
		detail.Session.LastActivityAt = now
	}
	return detail, nil
}

// Revoke ends the session holding token.  Unknown or empty tokens are a
// no-op so logout stays idempotent.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.Store.RevokeByTokenHash(ctx, utils.HashToken(token), m.Now()); err != nil {
		return err
	}
	metrics.SessionEvents.WithLabelValues("revoked").Inc()
	return nil
}
