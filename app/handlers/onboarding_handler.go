package handlers

import (
	"log"

	businessflow "github.com/amirphl/Kappa/business_flow"
	"github.com/gofiber/fiber/v3"
)

// OnboardingHandlerInterface defines the onboarding flag endpoints
type OnboardingHandlerInterface interface {
	ChangedPassword(c fiber.Ctx) error
	AcceptedTerms(c fiber.Ctx) error
}

// OnboardingHandler records onboarding progress
type OnboardingHandler struct {
	flow businessflow.OnboardingFlow
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(flow businessflow.OnboardingFlow) OnboardingHandlerInterface {
	return &OnboardingHandler{flow: flow}
}

// ChangedPassword marks the temporary password as rotated
// @Summary Acknowledge password change
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/changed-password [post]
func (h *OnboardingHandler) ChangedPassword(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.MarkPasswordChanged(ctx, id, clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}
		log.Println("Mark password changed failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "ONBOARDING_UPDATE_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// AcceptedTerms records terms acceptance
// @Summary Accept terms
// @Tags Onboarding
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/accepted-terms [post]
func (h *OnboardingHandler) AcceptedTerms(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.MarkTermsAccepted(ctx, id, clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}
		log.Println("Mark terms accepted failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Server error", "ONBOARDING_UPDATE_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
