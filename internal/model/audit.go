package model

import (
	"encoding/json"
	"time"
)

// Audit actions written by admin operations.
const (
	AuditPaymentApproved      = "PAYMENT_APPROVED"
	AuditPaymentRejected      = "PAYMENT_REJECTED"
	AuditShopActivated        = "SHOP_ACTIVATED"
	AuditShopTrialExtended    = "SHOP_TRIAL_EXTENDED"
	AuditShopSuspended        = "SHOP_SUSPENDED"
	AuditShopDeleted          = "DELETE_SHOP"
	AuditSupportPasswordReset = "SUPPORT_PASSWORD_RESET_TRIGGERED"
	AuditTrialsNormalized     = "UTIL_NORMALIZE_TRIALS_TO_7_DAYS"
)

// AdminAuditLog is an append-only record of an admin mutation.  Meta is
// free-form JSON describing the change.
type AdminAuditLog struct {
	ID          string          // admin_audit_logs.id
	AdminUserID string          // admin_audit_logs.admin_user_id
	Action      string          // admin_audit_logs.action
	TargetType  string          // admin_audit_logs.target_type
	TargetID    string          // admin_audit_logs.target_id
	Meta        json.RawMessage // admin_audit_logs.meta (nullable)
	CreatedAt   time.Time       // admin_audit_logs.created_at
}

// AuditEntry is an audit row joined with the acting admin for listings.
type AuditEntry struct {
	AdminAuditLog
	AdminName  string
	AdminEmail string
	AdminPhone string
}
