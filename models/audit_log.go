package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	AccountID    *uint           `gorm:"index:idx_audit_account_id" json:"account_id,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionRegister                 = "register"
	AuditActionLoginSuccess             = "login_success"
	AuditActionLoginFailed              = "login_failed"
	AuditActionPasswordChanged          = "password_changed"
	AuditActionPasswordResetRequested   = "password_reset_requested"
	AuditActionPasswordResetCompleted   = "password_reset_completed"
	AuditActionPasswordResetFailed      = "password_reset_failed"
	AuditActionProfileUpdated           = "profile_updated"
	AuditActionPasswordRotationAcked    = "onboarding_password_acknowledged"
	AuditActionTermsAccepted            = "terms_accepted"
	AuditActionLogoUploaded             = "logo_uploaded"
	AuditActionAccountPromoted          = "account_promoted"
	AuditActionAccountDeleted           = "account_deleted"
	AuditActionAccountInvited           = "account_invited"
	AuditActionDocumentGenerated        = "document_generated"
	AuditActionDocumentGenerationFailed = "document_generation_failed"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	AccountID     *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

func (a *AuditLog) IsSecurityEvent() bool {
	securityActions := map[string]bool{
		AuditActionLoginSuccess:           true,
		AuditActionLoginFailed:            true,
		AuditActionPasswordChanged:        true,
		AuditActionPasswordResetCompleted: true,
		AuditActionPasswordResetFailed:    true,
		AuditActionAccountPromoted:        true,
		AuditActionAccountDeleted:         true,
	}
	return securityActions[a.Action]
}
