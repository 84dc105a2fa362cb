// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"log"
	"strings"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/app/handlers"
	"github.com/amirphl/Kappa/app/services"
	businessflow "github.com/amirphl/Kappa/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware handles session token validation and the onboarding gate
type AuthMiddleware struct {
	tokenService   services.TokenService
	onboardingFlow businessflow.OnboardingFlow
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, onboardingFlow businessflow.OnboardingFlow) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService:   tokenService,
		onboardingFlow: onboardingFlow,
	}
}

// Authenticate validates the Bearer session token and stores the account id
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: "No token",
				Code:  "MISSING_TOKEN",
			})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: "No token",
				Code:  "MISSING_TOKEN",
			})
		}

		claims, err := m.tokenService.ValidateSessionToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: "Invalid Token",
				Code:  "TOKEN_INVALID",
			})
		}

		c.Locals(handlers.AccountIDLocal, claims.AccountID)
		c.Locals("token_id", claims.TokenID)

		return c.Next()
	}
}

// RequireOnboarding blocks accounts that have not rotated their password and
// accepted the terms. With requireProfile the company name must be set too.
// Must run after Authenticate.
func (m *AuthMiddleware) RequireOnboarding(requireProfile bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, _ := c.Locals(handlers.AccountIDLocal).(uint)
		if _, err := m.onboardingFlow.Gate(c.Context(), id, requireProfile); err != nil {
			return gateError(c, err)
		}
		return c.Next()
	}
}

// RequireAdmin requires admin rights. Onboarding is not checked. Must run
// after Authenticate.
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c fiber.Ctx) error {
		id, _ := c.Locals(handlers.AccountIDLocal).(uint)
		if _, err := m.onboardingFlow.RequireAdmin(c.Context(), id); err != nil {
			return gateError(c, err)
		}
		return c.Next()
	}
}

func gateError(c fiber.Ctx, err error) error {
	switch {
	case businessflow.IsAccountNotFound(err):
		return handlers.ErrorResponse(c, fiber.StatusNotFound, "User not found", "ACCOUNT_NOT_FOUND")
	case businessflow.IsOnboardingIncomplete(err):
		return handlers.ErrorResponse(c, fiber.StatusForbidden, "User has not completed onboarding", "ONBOARDING_INCOMPLETE")
	case businessflow.IsProfileIncomplete(err):
		return handlers.ErrorResponse(c, fiber.StatusForbidden, "Company profile is incomplete", "PROFILE_INCOMPLETE")
	case businessflow.IsAdminRequired(err):
		return handlers.ErrorResponse(c, fiber.StatusForbidden, "Access denied. Admins only.", "ADMIN_REQUIRED")
	}

	log.Println("Onboarding gate failed", err)
	return handlers.ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "GATE_FAILED")
}
