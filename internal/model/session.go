package model

import "time"

// AuthorizedDevice is a (user, device fingerprint) pair allowed to hold
// sessions.  A revoked device never matches again; the next login from
// the same fingerprint creates a fresh row.
//
// Fields:
//
//	FingerprintHash – SHA‑256 hex of "userAgent|platform|deviceUUID".
//	Label           – human readable name, the User-Agent cut to 120 chars.
//	LastSeenAt      – refreshed every time a session is created on the device.
type AuthorizedDevice struct {
	ID              string     // authorized_devices.id
	UserID          string     // authorized_devices.user_id
	FingerprintHash string     // authorized_devices.fingerprint_hash
	Label           string     // authorized_devices.label
	LastSeenAt      time.Time  // authorized_devices.last_seen_at
	RevokedAt       *time.Time // authorized_devices.revoked_at (nullable)
	CreatedAt       time.Time  // authorized_devices.created_at
}

// Session is a server-side login.  The raw bearer token lives only in the
// client cookie; TokenHash is its SHA‑256 hex digest.  A session is valid
// while RevokedAt is nil and LastActivityAt is no more than the inactivity
// timeout in the past.
type Session struct {
	ID             string     // sessions.id
	UserID         string     // sessions.user_id
	DeviceID       string     // sessions.device_id
	TokenHash      string     // sessions.token_hash
	LastActivityAt time.Time  // sessions.last_activity_at
	RevokedAt      *time.Time // sessions.revoked_at (nullable)
	CreatedAt      time.Time  // sessions.created_at
}

// SessionDetail is a live session joined with its user and device, as
// attached to an authenticated request.
type SessionDetail struct {
	Session Session
	User    User
	Device  AuthorizedDevice
}
