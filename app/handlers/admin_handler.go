package handlers

import (
	"log"
	"strconv"

	"github.com/amirphl/Kappa/app/dto"
	businessflow "github.com/amirphl/Kappa/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AdminHandlerInterface defines the admin endpoints
type AdminHandlerInterface interface {
	ListUsers(c fiber.Ctx) error
	PromoteUser(c fiber.Ctx) error
	DeleteUser(c fiber.Ctx) error
	InviteUser(c fiber.Ctx) error
	ListReports(c fiber.Ctx) error
	ExportReports(c fiber.Ctx) error
	DownloadReport(c fiber.Ctx) error
}

// AdminHandler handles administration requests
type AdminHandler struct {
	flow      businessflow.AdminFlow
	validator *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(flow businessflow.AdminFlow) AdminHandlerInterface {
	return &AdminHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *AdminHandler) listRequest(c fiber.Ctx) (*dto.ListRequest, error) {
	var req dto.ListRequest
	if err := c.Bind().Query(&req); err != nil {
		return nil, err
	}
	if err := h.validator.Struct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func pathID(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ListUsers lists accounts
// @Summary List users
// @Description Accounts in creation order. Without limit the full list is returned. The total is sent in X-Total-Count.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} dto.AdminAccountDTO
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/admin/users [get]
func (h *AdminHandler) ListUsers(c fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "VALIDATION_ERROR")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.ListAccounts(ctx, req)
	if err != nil {
		log.Println("List users failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load users", "ACCOUNT_LIST_FAILED")
	}

	c.Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	return c.Status(fiber.StatusOK).JSON(result.Accounts)
}

// PromoteUser grants admin rights
// @Summary Promote user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User id"
// @Success 200 {object} dto.PromoteResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid user id"
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/admin/users/{id}/promote [patch]
func (h *AdminHandler) PromoteUser(c fiber.Ctx) error {
	actorID, _ := accountID(c)
	target, ok := pathID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid user id", "INVALID_USER_ID")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.Promote(ctx, actorID, target, clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}
		log.Println("Promote user failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to promote user", "PROMOTE_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// DeleteUser removes an account
// @Summary Delete user
// @Description Hard delete. Report log entries of the account are kept without an owner.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User id"
// @Success 200 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid user id"
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c fiber.Ctx) error {
	actorID, _ := accountID(c)
	target, ok := pathID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid user id", "INVALID_USER_ID")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.Delete(ctx, actorID, target, clientMetadata(c))
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
		}
		log.Println("Delete user failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete user", "DELETE_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// InviteUser creates an account with a temporary password and emails it
// @Summary Invite user
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.InviteRequest true "Email"
// @Success 201 {object} dto.MessageResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid email address"
// @Failure 409 {object} dto.ErrorResponse "User already exists"
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/admin/users/invite [post]
func (h *AdminHandler) InviteUser(c fiber.Ctx) error {
	actorID, _ := accountID(c)

	var req dto.InviteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", "INVALID_EMAIL_ADDRESS")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.Invite(ctx, actorID, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsInvalidEmailAddress(err) {
			return businessErrorResponse(c, fiber.StatusBadRequest, err, "Invalid email address")
		}
		if businessflow.IsAccountAlreadyExists(err) {
			return businessErrorResponse(c, fiber.StatusConflict, err, "User already exists")
		}

		log.Println("Invite user failed", err)
		if businessflow.IsMailDelivery(err) {
			return businessErrorResponse(c, fiber.StatusInternalServerError, err, "Failed to send email")
		}
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to invite user", "INVITE_FAILED")
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// ListReports lists the report log
// @Summary List reports
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.ReportListResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/admin/reports [get]
func (h *AdminHandler) ListReports(c fiber.Ctx) error {
	req, err := h.listRequest(c)
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "VALIDATION_ERROR")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.ListReports(ctx, req)
	if err != nil {
		log.Println("List reports failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load reports", "REPORT_LIST_FAILED")
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// ExportReports downloads the report log as a spreadsheet
// @Summary Export reports
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "reports.xlsx"
// @Router /api/admin/reports/export [get]
func (h *AdminHandler) ExportReports(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.ExportReports(ctx)
	if err != nil {
		log.Println("Export reports failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export reports", "REPORT_EXPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+result.FileName)
	return c.Status(fiber.StatusOK).Send(result.Content)
}

// DownloadReport redirects to the stored PDF of a report
// @Summary Download report PDF
// @Description Archived reports redirect to a presigned object storage URL, others to the local file
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "Report id"
// @Success 302
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/admin/reports/{id}/download [get]
func (h *AdminHandler) DownloadReport(c fiber.Ctx) error {
	reportID, ok := pathID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid report id", "INVALID_REPORT_ID")
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	url, err := h.flow.ReportDownloadURL(ctx, reportID)
	if err != nil {
		if businessflow.IsReportNotFound(err) {
			return businessErrorResponse(c, fiber.StatusNotFound, err, "Report not found")
		}
		log.Println("Report download failed", err)
		return ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load report", "REPORT_LOOKUP_FAILED")
	}

	return c.Redirect().Status(fiber.StatusFound).To(url)
}
