package dto

// RegisterRequest represents the request payload for account registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"owner@acme.co.il"`
	Password string `json:"password" validate:"required,min=6,max=128" example:"secret1"`
}

// LoginRequest represents the request payload for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"owner@acme.co.il"`
	Password string `json:"password" validate:"required" example:"secret1"`
}

// UpdatePasswordRequest changes the password of the signed in account
type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=128"`
}

// UpdateProfileRequest is a partial company profile. Absent fields are left untouched.
type UpdateProfileRequest struct {
	CompanyName    *string `json:"companyName,omitempty" validate:"omitempty,max=255"`
	CompanyLogo    *string `json:"companyLogo,omitempty" validate:"omitempty,max=512"`
	CompanyAddress *string `json:"companyAddress,omitempty" validate:"omitempty,max=512"`
	CompanyPhone   *string `json:"companyPhone,omitempty" validate:"omitempty,max=64"`
	CompanyPhone2  *string `json:"companyPhone2,omitempty" validate:"omitempty,max=64"`
	CompanyEmail   *string `json:"companyEmail,omitempty" validate:"omitempty,max=255"`
	CompanyWebsite *string `json:"companyWebsite,omitempty" validate:"omitempty,max=255"`
	CompanyID      *string `json:"companyId,omitempty" validate:"omitempty,max=64"`
}

// ForgotPasswordRequest starts a password reset. The captcha fields are
// only checked when captcha is enabled.
type ForgotPasswordRequest struct {
	Email       string   `json:"email" validate:"required,email,max=255"`
	ChallengeID string   `json:"challengeId,omitempty"`
	UserAngle   *float64 `json:"userAngle,omitempty"`
}

// ResetPasswordRequest completes a password reset
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AccountRef is the minimal account projection
type AccountRef struct {
	ID    uint   `json:"id" example:"1"`
	Email string `json:"email" example:"owner@acme.co.il"`
}

// CompanyProfileDTO holds the eight company profile fields
type CompanyProfileDTO struct {
	CompanyName    string `json:"companyName"`
	CompanyLogo    string `json:"companyLogo"`
	CompanyAddress string `json:"companyAddress"`
	CompanyPhone   string `json:"companyPhone"`
	CompanyPhone2  string `json:"companyPhone2"`
	CompanyEmail   string `json:"companyEmail"`
	CompanyWebsite string `json:"companyWebsite"`
	CompanyID      string `json:"companyId"`
}

// ProfileUserDTO is the account as returned after a profile update
type ProfileUserDTO struct {
	AccountRef
	CompanyProfileDTO
}

// AccountDTO is the account as returned on login
type AccountDTO struct {
	AccountRef
	CompanyProfileDTO
	IsAdmin            bool `json:"isAdmin"`
	HasChangedPassword bool `json:"hasChangedPassword"`
	HasAcceptedTerms   bool `json:"hasAcceptedTerms"`
}

// AccountDetailsDTO is the full public projection of the signed in account
type AccountDetailsDTO struct {
	AccountDTO
	InvoiceCounter  int64  `json:"invoiceCounter" example:"1"`
	OnboardingState string `json:"onboardingState" example:"full_access"`
	CreatedAt       string `json:"createdAt" example:"2024-01-15T10:30:00Z"`
}

// RegisterResponse is returned on successful registration
type RegisterResponse struct {
	Token string     `json:"token"`
	User  AccountRef `json:"user"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Token string     `json:"token"`
	User  AccountDTO `json:"user"`
}

// UpdateProfileResponse keeps the token slot for client compatibility; it is always null
type UpdateProfileResponse struct {
	Token *string        `json:"token"`
	User  ProfileUserDTO `json:"user"`
}

// CaptchaResponse carries a rotate challenge
type CaptchaResponse struct {
	ChallengeID string `json:"challengeId"`
	MasterImage string `json:"masterImage"`
	ThumbImage  string `json:"thumbImage"`
}
