package handlers

import (
	"log"

	"github.com/amirphl/Kappa/app/dto"
	businessflow "github.com/amirphl/Kappa/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AuthHandlerInterface defines the contract for credential and session handlers
type AuthHandlerInterface interface {
	Register(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	UpdatePassword(c fiber.Ctx) error
	UpdateProfile(c fiber.Ctx) error
	GetProfile(c fiber.Ctx) error
	ForgotPassword(c fiber.Ctx) error
	Captcha(c fiber.Ctx) error
	ResetPassword(c fiber.Ctx) error
}

// AuthHandler handles credential and session HTTP requests
type AuthHandler struct {
	authFlow  businessflow.AuthFlow
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authFlow businessflow.AuthFlow) AuthHandlerInterface {
	return &AuthHandler{
		authFlow:  authFlow,
		validator: validator.New(),
	}
}

// Register handles account registration
// @Summary Register
// @Description Create an account and return a session token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Credentials"
// @Success 201 {object} dto.RegisterResponse
// @Failure 400 {object} dto.ErrorResponse "Validation failed or user already exists"
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/register [post]
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
	}
	if err := h.validator.Struct(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, firstValidationError(err), "VALIDATION_ERROR")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.Register(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountAlreadyExists(err) {
			return businessErrorResponse(c, fiber.StatusBadRequest, err, "User already exists")
		}

		log.Println("Register failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "REGISTER_FAILED")
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// Login handles authentication
// @Summary Login
// @Description Authenticate with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid email or password"
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
	}
	if err := h.validator.Struct(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, firstValidationError(err), "VALIDATION_ERROR")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.Login(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidCredentials(err) {
			return businessErrorResponse(c, fiber.StatusBadRequest, err, "Invalid email or password")
		}

		log.Println("Login failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "LOGIN_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// UpdatePassword changes the password of the signed in account
// @Summary Update password
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdatePasswordRequest true "Old and new password"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/update-password [patch]
func (h *AuthHandler) UpdatePassword(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	var req dto.UpdatePasswordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
	}
	if err := h.validator.Struct(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, firstValidationError(err), "VALIDATION_ERROR")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.UpdatePassword(ctx, id, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}
		if businessflow.IsInvalidOldPassword(err) {
			return businessErrorResponse(c, fiber.StatusBadRequest, err, "Invalid old password")
		}

		log.Println("Update password failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "PASSWORD_UPDATE_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// UpdateProfile applies a partial company profile update
// @Summary Update company profile
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateProfileRequest true "Fields to change"
// @Success 200 {object} dto.UpdateProfileResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/update-profile [patch]
func (h *AuthHandler) UpdateProfile(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	var req dto.UpdateProfileRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
	}
	if err := h.validator.Struct(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, firstValidationError(err), "VALIDATION_ERROR")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.UpdateProfile(ctx, id, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsNoProfileFields(err) {
			return businessErrorResponse(c, fiber.StatusBadRequest, err, "No profile fields provided for update")
		}
		if businessflow.IsAccountNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}

		log.Println("Update profile failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "PROFILE_UPDATE_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// GetProfile returns the signed in account
// @Summary Get profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.AccountDetailsDTO
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/profile [get]
func (h *AuthHandler) GetProfile(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.GetProfile(ctx, id)
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}

		log.Println("Get profile failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "PROFILE_LOAD_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// ForgotPassword starts a password reset
// @Summary Forgot password
// @Description Email a 15 minute reset link. A rotate captcha answer is required when captcha is enabled.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "Email"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
	}
	if err := h.validator.Struct(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, firstValidationError(err), "VALIDATION_ERROR")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.ForgotPassword(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidCaptcha(err) {
			return businessErrorResponse(c, fiber.StatusBadRequest, err, "Captcha validation failed")
		}
		if businessflow.IsAccountNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}

		log.Println("Forgot password failed", err)
		if businessflow.IsMailDelivery(err) {
			return businessErrorResponse(c, fiber.StatusInternalServerError, err, "Failed to send email")
		}
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "FORGOT_PASSWORD_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// Captcha issues a rotate captcha challenge
// @Summary Captcha challenge
// @Tags Authentication
// @Produce json
// @Success 200 {object} dto.CaptchaResponse
// @Failure 404 {object} dto.ErrorResponse "Captcha disabled"
// @Router /api/captcha [get]
func (h *AuthHandler) Captcha(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.Captcha(ctx)
	if err != nil {
		if businessflow.IsCaptchaDisabled(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "Captcha is disabled")
		}

		log.Println("Captcha generation failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "CAPTCHA_GENERATION_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// ResetPassword completes a password reset
// @Summary Reset password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/reset-password [post]
func (h *AuthHandler) ResetPassword(c fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.ResetPassword(ctx, &req, clientMetadata(c))
	if err != nil {
		switch {
		case businessflow.IsResetFieldsRequired(err),
			businessflow.IsInvalidResetToken(err),
			businessflow.IsPasswordTooShort(err):
			return businessErrorResponse(c, fiber.StatusBadRequest, err, "Invalid or expired reset token")
		case businessflow.IsAccountNotFound(err):
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}

		log.Println("Reset password failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "RESET_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
