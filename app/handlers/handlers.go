// Package handlers contains HTTP request handlers for the API endpoints
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/Kappa/app/dto"
	businessflow "github.com/amirphl/Kappa/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// AccountIDLocal is the fiber Locals key holding the authenticated account id
const AccountIDLocal = "account_id"

const (
	defaultRequestTimeout  = 30 * time.Second
	documentRequestTimeout = 3 * time.Minute
)

// validationMessages holds the client facing text per field and tag
var validationMessages = map[string]string{
	"RegisterRequest.Email":             "Invalid email",
	"RegisterRequest.Password":          "Password must be at least 6 characters long",
	"LoginRequest.Email":                "Invalid email",
	"LoginRequest.Password":             "Password is required",
	"UpdatePasswordRequest.OldPassword": "Old password is required",
	"UpdatePasswordRequest.NewPassword": "New password must be at least 6 characters long",
	"ForgotPasswordRequest.Email":       "Invalid email",
}

func getValidationErrorMessage(err validator.FieldError) string {
	if msg, ok := validationMessages[err.StructNamespace()]; ok {
		return msg
	}
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters long"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters long"
	default:
		return err.Field() + " is invalid"
	}
}

// firstValidationError returns the message of the first failing field
func firstValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return getValidationErrorMessage(verrs[0])
	}
	return "Validation failed"
}

// ErrorResponse writes the flat error body
func ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string) error {
	return c.Status(statusCode).JSON(dto.ErrorResponse{
		Error: message,
		Code:  errorCode,
	})
}

// businessErrorResponse answers with the message and code carried by err
func businessErrorResponse(c fiber.Ctx, statusCode int, err error, fallback string) error {
	code := businessflow.ErrorCode(err)
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Message != "" {
		return ErrorResponse(c, statusCode, be.Message, code)
	}
	return ErrorResponse(c, statusCode, fallback, code)
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	md := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if rid := requestid.FromContext(c); rid != "" {
		md.SetRequestID(rid)
	} else {
		md.SetRequestID(c.Get(businessflow.RequestIDKey))
	}
	return md
}

// accountID reads the id placed by the auth middleware
func accountID(c fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(AccountIDLocal).(uint)
	return id, ok && id != 0
}

// createRequestContext derives a bounded context from the request
func createRequestContext(c fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context(), timeout)
}
