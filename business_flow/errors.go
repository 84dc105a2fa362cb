package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants. The text of each sentinel is the message
// shown to API clients.
var (
	// Account errors
	ErrAccountNotFound      = errors.New("User not found")
	ErrAccountAlreadyExists = errors.New("User already exists")
	ErrInvalidCredentials   = errors.New("Invalid email or password")
	ErrInvalidOldPassword   = errors.New("Invalid old password")
	ErrNoProfileFields      = errors.New("No profile fields provided for update")
	ErrInvalidEmailAddress  = errors.New("Invalid email address")
	ErrInvalidAccountID     = errors.New("Invalid user id")

	// Password reset errors
	ErrResetFieldsRequired = errors.New("Token and password are required")
	ErrInvalidResetToken   = errors.New("Invalid or expired reset token")
	ErrPasswordTooShort    = errors.New("Password too short")
	ErrInvalidCaptcha      = errors.New("Captcha validation failed")
	ErrCaptchaDisabled     = errors.New("Captcha is disabled")

	// Gate errors
	ErrOnboardingIncomplete = errors.New("User has not completed onboarding")
	ErrProfileIncomplete    = errors.New("Company profile is incomplete")
	ErrAdminRequired        = errors.New("Access denied. Admins only.")

	// Upload errors
	ErrUnsupportedMediaType = errors.New("Unsupported file type. Only PNG, JPG, and WEBP are allowed.")
	ErrNoFileUploaded       = errors.New("No file uploaded")
	ErrNoFilesUploaded      = errors.New("No files uploaded")
	ErrTooManyFiles         = errors.New("Too many files. At most 5 images are allowed.")
	ErrFileTooLarge         = errors.New("File too large")

	// Document pipeline errors
	ErrMissingPrompt = errors.New("Missing prompt")
	ErrUpstream      = errors.New("language model call failed")
	ErrRender        = errors.New("document render failed")

	// Report errors
	ErrReportNotFound = errors.New("Report not found")

	// Delivery errors
	ErrMailDelivery = errors.New("Failed to send email")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// ErrorCode returns the machine code of the outermost BusinessError in err
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsAccountAlreadyExists(err error) bool {
	return errors.Is(err, ErrAccountAlreadyExists)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsInvalidOldPassword(err error) bool {
	return errors.Is(err, ErrInvalidOldPassword)
}

func IsNoProfileFields(err error) bool {
	return errors.Is(err, ErrNoProfileFields)
}

func IsInvalidEmailAddress(err error) bool {
	return errors.Is(err, ErrInvalidEmailAddress)
}

func IsInvalidAccountID(err error) bool {
	return errors.Is(err, ErrInvalidAccountID)
}

func IsResetFieldsRequired(err error) bool {
	return errors.Is(err, ErrResetFieldsRequired)
}

func IsInvalidResetToken(err error) bool {
	return errors.Is(err, ErrInvalidResetToken)
}

func IsPasswordTooShort(err error) bool {
	return errors.Is(err, ErrPasswordTooShort)
}

func IsInvalidCaptcha(err error) bool {
	return errors.Is(err, ErrInvalidCaptcha)
}

func IsCaptchaDisabled(err error) bool {
	return errors.Is(err, ErrCaptchaDisabled)
}

func IsOnboardingIncomplete(err error) bool {
	return errors.Is(err, ErrOnboardingIncomplete)
}

func IsProfileIncomplete(err error) bool {
	return errors.Is(err, ErrProfileIncomplete)
}

func IsAdminRequired(err error) bool {
	return errors.Is(err, ErrAdminRequired)
}

func IsUnsupportedMediaType(err error) bool {
	return errors.Is(err, ErrUnsupportedMediaType)
}

func IsNoFileUploaded(err error) bool {
	return errors.Is(err, ErrNoFileUploaded)
}

func IsNoFilesUploaded(err error) bool {
	return errors.Is(err, ErrNoFilesUploaded)
}

func IsTooManyFiles(err error) bool {
	return errors.Is(err, ErrTooManyFiles)
}

func IsFileTooLarge(err error) bool {
	return errors.Is(err, ErrFileTooLarge)
}

func IsMissingPrompt(err error) bool {
	return errors.Is(err, ErrMissingPrompt)
}

func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

func IsRender(err error) bool {
	return errors.Is(err, ErrRender)
}

func IsReportNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound)
}

func IsMailDelivery(err error) bool {
	return errors.Is(err, ErrMailDelivery)
}
