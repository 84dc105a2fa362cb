// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client information used for audit logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func toAccountRef(a *models.Account) dto.AccountRef {
	return dto.AccountRef{ID: a.ID, Email: a.Email}
}

func toCompanyProfileDTO(a *models.Account) dto.CompanyProfileDTO {
	return dto.CompanyProfileDTO{
		CompanyName:    a.CompanyName,
		CompanyLogo:    a.CompanyLogo,
		CompanyAddress: a.CompanyAddress,
		CompanyPhone:   a.CompanyPhone,
		CompanyPhone2:  a.CompanyPhone2,
		CompanyEmail:   a.CompanyEmail,
		CompanyWebsite: a.CompanyWebsite,
		CompanyID:      a.CompanyID,
	}
}

// ToAccountDTO converts an account to the login projection
func ToAccountDTO(a *models.Account) dto.AccountDTO {
	return dto.AccountDTO{
		AccountRef:         toAccountRef(a),
		CompanyProfileDTO:  toCompanyProfileDTO(a),
		IsAdmin:            a.IsAdmin,
		HasChangedPassword: a.HasChangedPassword,
		HasAcceptedTerms:   a.HasAcceptedTerms,
	}
}

// ToAccountDetailsDTO converts an account to its full public projection
func ToAccountDetailsDTO(a *models.Account) dto.AccountDetailsDTO {
	return dto.AccountDetailsDTO{
		AccountDTO:      ToAccountDTO(a),
		InvoiceCounter:  a.InvoiceCounter,
		OnboardingState: a.OnboardingState(),
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToAdminAccountDTO converts an account to an admin list row
func ToAdminAccountDTO(a *models.Account) dto.AdminAccountDTO {
	return dto.AdminAccountDTO{
		ID:                 a.ID,
		Email:              a.Email,
		CompanyName:        a.CompanyName,
		IsAdmin:            a.IsAdmin,
		HasChangedPassword: a.HasChangedPassword,
		HasAcceptedTerms:   a.HasAcceptedTerms,
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toImageRefDTOs(images []models.ReportImage) []dto.ImageRefDTO {
	out := make([]dto.ImageRefDTO, 0, len(images))
	for _, img := range images {
		out = append(out, dto.ImageRefDTO{URL: img.URL, Description: img.Description})
	}
	return out
}

// ToReportDTO converts a report log entry. User is nil for orphaned entries.
func ToReportDTO(r *models.ReportLog) dto.ReportDTO {
	out := dto.ReportDTO{
		ID:        r.ID,
		Type:      r.Type,
		Prompt:    r.Prompt,
		Images:    toImageRefDTOs(r.Images),
		PDFURL:    r.PDFURL,
		Archived:  r.ArchiveKey != nil && *r.ArchiveKey != "",
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.Account != nil && r.Account.ID != 0 {
		ref := toAccountRef(r.Account)
		out.User = &ref
	}
	return out
}
