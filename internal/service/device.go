package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/mysocial/shop-api/internal/model"
	"github.com/mysocial/shop-api/internal/repository"
	"github.com/mysocial/shop-api/internal/utils"
)

const (
	// DeviceCookieName holds the client-generated device UUID.
	DeviceCookieName = "device_id"
	deviceLabelMax   = 120
	unknownDevice    = "Unknown device"
)

// DeviceInfo identifies the device a login comes from.
type DeviceInfo struct {
	FingerprintHash string
	Label           string
}

// FingerprintHash derives a stable device hash from the User-Agent, the
// platform hint and the device_id cookie.  ok is false when the cookie is
// missing or not 8..128 characters long.
func FingerprintHash(r *http.Request) (hash string, ok bool) {
	c, err := r.Cookie(DeviceCookieName)
	if err != nil || len(c.Value) < 8 || len(c.Value) > 128 {
		return "", false
	}
	platform := r.Header.Get("Sec-CH-UA-Platform")
	if platform == "" {
		platform = r.Header.Get("X-Platform")
	}
	return utils.HashToken(r.UserAgent() + "|" + platform + "|" + c.Value), true
}

// DeviceFromRequest builds DeviceInfo for a login.  Without a usable device
// cookie a random hash is used, so the login binds to a throwaway device
// that will never match again.
func DeviceFromRequest(r *http.Request) (DeviceInfo, error) {
	hash, ok := FingerprintHash(r)
	if !ok {
		raw, err := utils.RandomHex(utils.TokenBytes)
		if err != nil {
			return DeviceInfo{}, fmt.Errorf("random fingerprint: %w", err)
		}
		hash = utils.HashToken(raw)
	}
	return DeviceInfo{FingerprintHash: hash, Label: deviceLabel(r.UserAgent())}, nil
}

func deviceLabel(ua string) string {
	if ua == "" {
		return unknownDevice
	}
	if utf8.RuneCountInString(ua) <= deviceLabelMax {
		return ua
	}
	return string([]rune(ua)[:deviceLabelMax])
}

// DeviceStore is the persistence DeviceBinder needs.
type DeviceStore interface {
	FindActive(ctx context.Context, userID, fingerprintHash string) (*model.AuthorizedDevice, error)
	Create(ctx context.Context, d *model.AuthorizedDevice) error
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

// DeviceBinder maps a (user, fingerprint) pair to an authorized device.
type DeviceBinder struct {
	Store DeviceStore
	Now   func() time.Time
}

func NewDeviceBinder(store DeviceStore) *DeviceBinder {
	return &DeviceBinder{Store: store, Now: func() time.Time { return time.Now().UTC() }}
}

// ResolveOrCreate returns the id of the user's live device with the given
// fingerprint, refreshing its last-seen time, or creates one.  No per-user
// device limit is applied; DEVICE_LIMIT_REACHED stays reserved.
func (b *DeviceBinder) ResolveOrCreate(ctx context.Context, userID string, dev DeviceInfo) (string, error) {
	now := b.Now()
	existing, err := b.Store.FindActive(ctx, userID, dev.FingerprintHash)
	switch {
	case err == nil:
		if err := b.Store.TouchLastSeen(ctx, existing.ID, now); err != nil {
			return "", err
		}
		return existing.ID, nil
	case !errors.Is(err, repository.ErrNotFound):
		return "", err
	}

	label := dev.Label
	if label == "" {
		label = unknownDevice
	}
	d := &model.AuthorizedDevice{
		UserID:          userID,
		FingerprintHash: dev.FingerprintHash,
		Label:           label,
		LastSeenAt:      now,
		CreatedAt:       now,
	}
	if err := b.Store.Create(ctx, d); err != nil {
		return "", err
	}
	return d.ID, nil
}
