// Package models contains domain entities and business models for Kappa
package models

import (
	"time"
)

// Onboarding states, in traversal order
const (
	OnboardingStatePasswordTemporary = "password_temporary"
	OnboardingStateTermsPending      = "terms_pending"
	OnboardingStateProfileIncomplete = "profile_incomplete"
	OnboardingStateFullAccess        = "full_access"
)

type Account struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"size:255;not null;uniqueIndex:uk_accounts_email" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"` // Never serialize password hash

	// Company profile
	CompanyName    string `gorm:"size:255;not null;default:''" json:"company_name"`
	CompanyLogo    string `gorm:"size:512;not null;default:''" json:"company_logo"`
	CompanyAddress string `gorm:"size:512;not null;default:''" json:"company_address"`
	CompanyPhone   string `gorm:"size:64;not null;default:''" json:"company_phone"`
	CompanyPhone2  string `gorm:"size:64;not null;default:''" json:"company_phone2"`
	CompanyEmail   string `gorm:"size:255;not null;default:''" json:"company_email"`
	CompanyWebsite string `gorm:"size:255;not null;default:''" json:"company_website"`
	CompanyID      string `gorm:"column:company_id;size:64;not null;default:''" json:"company_id"`

	InvoiceCounter int64 `gorm:"not null;default:1" json:"invoice_counter"`

	// Flags only ever move false -> true
	HasChangedPassword bool `gorm:"not null;default:false" json:"has_changed_password"`
	HasAcceptedTerms   bool `gorm:"not null;default:false" json:"has_accepted_terms"`
	IsAdmin            bool `gorm:"not null;default:false;index:idx_accounts_is_admin" json:"is_admin"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_accounts_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	ID                 *uint
	Email              *string
	IsAdmin            *bool
	HasChangedPassword *bool
	HasAcceptedTerms   *bool
	CreatedAfter       *time.Time
	CreatedBefore      *time.Time
}

// ProfileUpdate carries a partial company profile. Nil fields are left untouched.
type ProfileUpdate struct {
	CompanyName    *string
	CompanyLogo    *string
	CompanyAddress *string
	CompanyPhone   *string
	CompanyPhone2  *string
	CompanyEmail   *string
	CompanyWebsite *string
	CompanyID      *string
}

// IsEmpty reports whether no profile field is present
func (p ProfileUpdate) IsEmpty() bool {
	return p.CompanyName == nil &&
		p.CompanyLogo == nil &&
		p.CompanyAddress == nil &&
		p.CompanyPhone == nil &&
		p.CompanyPhone2 == nil &&
		p.CompanyEmail == nil &&
		p.CompanyWebsite == nil &&
		p.CompanyID == nil
}

// Columns returns the column/value pairs of the present fields
func (p ProfileUpdate) Columns() map[string]any {
	cols := make(map[string]any)
	set := func(col string, v *string) {
		if v != nil {
			cols[col] = *v
		}
	}
	set("company_name", p.CompanyName)
	set("company_logo", p.CompanyLogo)
	set("company_address", p.CompanyAddress)
	set("company_phone", p.CompanyPhone)
	set("company_phone2", p.CompanyPhone2)
	set("company_email", p.CompanyEmail)
	set("company_website", p.CompanyWebsite)
	set("company_id", p.CompanyID)
	return cols
}

// Apply copies the present fields onto the account
func (p ProfileUpdate) Apply(a *Account) {
	if p.CompanyName != nil {
		a.CompanyName = *p.CompanyName
	}
	if p.CompanyLogo != nil {
		a.CompanyLogo = *p.CompanyLogo
	}
	if p.CompanyAddress != nil {
		a.CompanyAddress = *p.CompanyAddress
	}
	if p.CompanyPhone != nil {
		a.CompanyPhone = *p.CompanyPhone
	}
	if p.CompanyPhone2 != nil {
		a.CompanyPhone2 = *p.CompanyPhone2
	}
	if p.CompanyEmail != nil {
		a.CompanyEmail = *p.CompanyEmail
	}
	if p.CompanyWebsite != nil {
		a.CompanyWebsite = *p.CompanyWebsite
	}
	if p.CompanyID != nil {
		a.CompanyID = *p.CompanyID
	}
}

// CompletedOnboardingFlags reports whether both onboarding flags are set
func (a *Account) CompletedOnboardingFlags() bool {
	return a.HasChangedPassword && a.HasAcceptedTerms
}

// HasCompanyProfile reports whether the minimal company profile is present
func (a *Account) HasCompanyProfile() bool {
	return a.CompanyName != ""
}

// OnboardingState returns where the account sits in the onboarding sequence
func (a *Account) OnboardingState() string {
	switch {
	case !a.HasChangedPassword:
		return OnboardingStatePasswordTemporary
	case !a.HasAcceptedTerms:
		return OnboardingStateTermsPending
	case !a.HasCompanyProfile():
		return OnboardingStateProfileIncomplete
	default:
		return OnboardingStateFullAccess
	}
}

// CompanyFields returns the eight profile fields keyed by their document names
func (a *Account) CompanyFields() map[string]any {
	return map[string]any{
		"companyName":    a.CompanyName,
		"companyLogo":    a.CompanyLogo,
		"companyAddress": a.CompanyAddress,
		"companyPhone":   a.CompanyPhone,
		"companyPhone2":  a.CompanyPhone2,
		"companyEmail":   a.CompanyEmail,
		"companyWebsite": a.CompanyWebsite,
		"companyId":      a.CompanyID,
	}
}
