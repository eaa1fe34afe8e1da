// Package queue defines message payloads exchanged over the message broker
// and the consumer that acts on them.
package queue

// PasswordResetQueue carries PasswordResetRequestedEvent messages.
const PasswordResetQueue = "password.reset.requested"

// Reset reasons.
const (
	ReasonSelfService  = "self_service"
	ReasonAdminSupport = "admin_support"
)

// PasswordResetRequestedEvent is published after a reset token is stored.
// It carries everything needed to deliver the email without touching the
// primary database.
type PasswordResetRequestedEvent struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	ResetLink   string `json:"reset_link"`
	Reason      string `json:"reason"`
	RequestedAt string `json:"requested_at"`
}
