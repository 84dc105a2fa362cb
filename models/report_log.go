package models

import (
	"time"
)

const (
	ReportTypeLeakDetection = "leak-detection"
	ReportTypeInvoiceDemand = "invoice-demand"
)

// ReportImage is an image reference as submitted by the client
type ReportImage struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// ReportLog is an immutable record of a generated report. AccountID has no
// cascading foreign key so entries outlive deleted accounts.
type ReportLog struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	AccountID  uint          `gorm:"not null;index:idx_report_logs_account_id" json:"account_id"`
	Account    *Account      `gorm:"foreignKey:AccountID;references:ID" json:"account,omitempty"`
	Type       string        `gorm:"size:32;not null;index:idx_report_logs_type" json:"type"`
	Prompt     string        `gorm:"type:text;not null" json:"prompt"`
	Images     []ReportImage `gorm:"type:jsonb;serializer:json;not null" json:"images"`
	PDFURL     string        `gorm:"column:pdf_url;size:512;not null" json:"pdf_url"`
	ArchiveKey *string       `gorm:"size:512" json:"archive_key,omitempty"`
	CreatedAt  time.Time     `gorm:"default:CURRENT_TIMESTAMP;index:idx_report_logs_created_at" json:"created_at"`
}

func (ReportLog) TableName() string {
	return "report_logs"
}

// ReportLogFilter represents filter criteria for report log queries
type ReportLogFilter struct {
	ID            *uint
	AccountID     *uint
	Type          *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
