package dto

// ListRequest carries optional pagination. Limit 0 means everything.
type ListRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

// AdminAccountDTO is one row of the admin user list
type AdminAccountDTO struct {
	ID                 uint   `json:"id"`
	Email              string `json:"email"`
	CompanyName        string `json:"companyName"`
	IsAdmin            bool   `json:"isAdmin"`
	HasChangedPassword bool   `json:"hasChangedPassword"`
	HasAcceptedTerms   bool   `json:"hasAcceptedTerms"`
	CreatedAt          string `json:"createdAt"`
}

// AdminAccountListResponse is the user list with its total size
type AdminAccountListResponse struct {
	Accounts []AdminAccountDTO
	Total    int64
}

// PromoteResponse is returned after a promotion
type PromoteResponse struct {
	Message string          `json:"message" example:"User promoted to admin"`
	User    AdminAccountDTO `json:"user"`
}

// InviteRequest invites a new account by email
type InviteRequest struct {
	Email string `json:"email"`
}

// ReportDTO is one report log entry with its owner, when the owner still exists
type ReportDTO struct {
	ID        uint          `json:"id"`
	Type      string        `json:"type"`
	Prompt    string        `json:"prompt"`
	Images    []ImageRefDTO `json:"images"`
	PDFURL    string        `json:"pdfUrl"`
	Archived  bool          `json:"archived"`
	CreatedAt string        `json:"createdAt"`
	User      *AccountRef   `json:"user"`
}

// ReportListResponse wraps the report list
type ReportListResponse struct {
	Reports []ReportDTO `json:"reports"`
}

// ReportExport is an xlsx workbook
type ReportExport struct {
	FileName string
	Content  []byte
}
