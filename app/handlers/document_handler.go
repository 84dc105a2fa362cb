package handlers

import (
	"log"

	"github.com/amirphl/Kappa/app/dto"
	businessflow "github.com/amirphl/Kappa/business_flow"
	"github.com/gofiber/fiber/v3"
)

// DocumentHandlerInterface defines the document generation endpoints
type DocumentHandlerInterface interface {
	InvoiceDemand(c fiber.Ctx) error
	LeakDetection(c fiber.Ctx) error
}

// DocumentHandler streams generated PDFs
type DocumentHandler struct {
	flow businessflow.DocumentFlow
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(flow businessflow.DocumentFlow) DocumentHandlerInterface {
	return &DocumentHandler{flow: flow}
}

// InvoiceDemand generates an invoice-demand letter
// @Summary Generate invoice demand
// @Description Expands the prompt with the language model and renders a numbered invoice demand PDF
// @Tags Documents
// @Accept json
// @Produce application/pdf
// @Security BearerAuth
// @Param request body dto.InvoiceDemandRequest true "Prompt"
// @Success 200 {file} file "PDF document"
// @Failure 400 {object} dto.ErrorResponse "Missing prompt"
// @Failure 403 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse "Failed to generate invoice demand PDF"
// @Router /api/ai/invoice-demand [post]
func (h *DocumentHandler) InvoiceDemand(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	var req dto.InvoiceDemandRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Missing prompt", "MISSING_PROMPT")
	}

	ctx, cancel := createRequestContext(c, documentRequestTimeout)
	defer cancel()

	result, err := h.flow.GenerateInvoiceDemand(ctx, id, &req, clientMetadata(c))
	if err != nil {
		return documentError(c, err, "Failed to generate invoice demand PDF")
	}

	return sendPDF(c, result)
}

// LeakDetection generates a leak-detection report
// @Summary Generate leak detection report
// @Description Expands the prompt with the language model, inlines the images and renders a PDF. The report is kept in the report log.
// @Tags Documents
// @Accept json
// @Produce application/pdf
// @Security BearerAuth
// @Param request body dto.LeakDetectionRequest true "Prompt and image references"
// @Success 200 {file} file "PDF document"
// @Failure 400 {object} dto.ErrorResponse "Missing prompt"
// @Failure 403 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse "Failed to generate leak detection PDF"
// @Router /api/ai/leak-detection [post]
func (h *DocumentHandler) LeakDetection(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	var req dto.LeakDetectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Missing prompt", "MISSING_PROMPT")
	}

	ctx, cancel := createRequestContext(c, documentRequestTimeout)
	defer cancel()

	result, err := h.flow.GenerateLeakDetection(ctx, id, &req, clientMetadata(c))
	if err != nil {
		return documentError(c, err, "Failed to generate leak detection PDF")
	}

	return sendPDF(c, result)
}

func documentError(c fiber.Ctx, err error, message string) error {
	if businessflow.IsMissingPrompt(err) {
		return businessErrorResponse(c, fiber.StatusBadRequest, err, "Missing prompt")
	}
	if businessflow.IsAccountNotFound(err) {
		return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
	}

	log.Println("Document generation failed", err)
	return ErrorResponse(c, fiber.StatusInternalServerError, message, businessflow.ErrorCode(err))
}

func sendPDF(c fiber.Ctx, result *dto.DocumentResult) error {
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, "inline; filename="+result.FileName)
	return c.Status(fiber.StatusOK).Send(result.PDF)
}
