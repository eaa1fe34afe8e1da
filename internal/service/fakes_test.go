package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/queue"
	"github.com/mysocial/shop-api/internal/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeDeviceStore struct {
	mu      sync.Mutex
	devices []*model.AuthorizedDevice
	touches int
}

func (s *fakeDeviceStore) FindActive(_ context.Context, userID, fp string) (*model.AuthorizedDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.UserID == userID && d.FingerprintHash == fp && d.RevokedAt == nil {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeDeviceStore) Create(_ context.Context, d *model.AuthorizedDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = "dev-" + string(rune('a'+len(s.devices)))
	s.devices = append(s.devices, d)
	return nil
}

func (s *fakeDeviceStore) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches++
	for _, d := range s.devices {
		if d.ID == id {
			d.LastSeenAt = at
		}
	}
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	touches  int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*model.Session{}}
}

func (s *fakeSessionStore) Create(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = "sess-" + sess.TokenHash[:8]
	cp := *sess
	s.sessions[sess.TokenHash] = &cp
	return nil
}

func (s *fakeSessionStore) FindLiveByTokenHash(_ context.Context, hash string) (*model.SessionDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[hash]
	if !ok || sess.RevokedAt != nil {
		return nil, repository.ErrNotFound
	}
	return &model.SessionDetail{
		Session: *sess,
		User:    model.User{ID: sess.UserID, ShopID: "shop-1"},
		Device:  model.AuthorizedDevice{ID: sess.DeviceID},
	}, nil
}

func (s *fakeSessionStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touches++
	for _, sess := range s.sessions {
		if sess.ID == id {
			sess.LastActivityAt = at
		}
	}
	return nil
}

func (s *fakeSessionStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			sess.RevokedAt = &at
		}
	}
	return nil
}

func (s *fakeSessionStore) RevokeByTokenHash(_ context.Context, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[hash]; ok {
		sess.RevokedAt = &at
	}
	return nil
}

func (s *fakeSessionStore) touchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touches
}

type fakeSubStore struct {
	mu      sync.Mutex
	sub     *model.Subscription
	expired []string
}

func (s *fakeSubStore) Current(_ context.Context, _ string) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil, repository.ErrNotFound
	}
	cp := *s.sub
	return &cp, nil
}

func (s *fakeSubStore) MarkExpired(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, id)
	return nil
}

type fakeUsers struct {
	byEmail map[string]*model.User
	byPhone map[string]*model.User
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	if u, ok := f.byPhone[phone]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

// fakeResetTokens mirrors the single-use and expiry rules of the SQL store.
type fakeResetTokens struct {
	tokens    map[string]*model.PasswordResetToken
	passwords map[string]string
}

func newFakeResetTokens() *fakeResetTokens {
	return &fakeResetTokens{tokens: map[string]*model.PasswordResetToken{}, passwords: map[string]string{}}
}

func (f *fakeResetTokens) Create(_ context.Context, t *model.PasswordResetToken) error {
	f.tokens[t.TokenHash] = t
	return nil
}

func (f *fakeResetTokens) Consume(_ context.Context, hash, passwordHash string, now time.Time) (string, error) {
	t, ok := f.tokens[hash]
	if !ok || t.Used || now.After(t.ExpiresAt) {
		return "", repository.ErrNotFound
	}
	t.Used = true
	f.passwords[t.UserID] = passwordHash
	return t.UserID, nil
}

type recordingNotifier struct {
	events []queue.PasswordResetRequestedEvent
	err    error
}

func (n *recordingNotifier) NotifyPasswordReset(_ context.Context, ev queue.PasswordResetRequestedEvent) error {
	n.events = append(n.events, ev)
	return n.err
}

type sentMail struct {
	to, subject, text, html string
}

type recordingMailer struct {
	sent []sentMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, text, html string) error {
	m.sent = append(m.sent, sentMail{to, subject, text, html})
	return nil
}

func newTestBackground() *Background {
	return NewBackground(zap.NewNop(), time.Second)
}
