package handlers

import (
	"io"
	"log"
	"mime/multipart"

	"github.com/amirphl/Kappa/app/dto"
	businessflow "github.com/amirphl/Kappa/business_flow"
	"github.com/gofiber/fiber/v3"
)

// UploadHandlerInterface defines the asset intake endpoints
type UploadHandlerInterface interface {
	UploadLogo(c fiber.Ctx) error
	UploadImages(c fiber.Ctx) error
}

// UploadHandler handles logo and image uploads
type UploadHandler struct {
	flow businessflow.UploadFlow
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(flow businessflow.UploadFlow) UploadHandlerInterface {
	return &UploadHandler{flow: flow}
}

func toUploadedFile(fh *multipart.FileHeader) *dto.UploadedFile {
	return &dto.UploadedFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// UploadLogo stores the company logo
// @Summary Upload company logo
// @Description PNG, JPG or WEBP. Large PNG/JPG logos are downscaled.
// @Tags Uploads
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param logo formData file true "Logo image"
// @Success 201 {object} dto.UploadLogoResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 415 {object} dto.ErrorResponse
// @Router /api/uploads/logo [post]
func (h *UploadHandler) UploadLogo(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	req := dto.UploadLogoRequest{AccountID: id}
	if fh, err := c.FormFile("logo"); err == nil && fh != nil {
		req.File = toUploadedFile(fh)
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.UploadLogo(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.uploadError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// UploadImages stores up to five job images
// @Summary Upload images
// @Description Up to 5 PNG, JPG or WEBP images with an optional JSON array of descriptions
// @Tags Uploads
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param images formData file true "Images"
// @Param descriptions formData string false "JSON encoded array of captions"
// @Success 201 {object} dto.UploadImagesResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 415 {object} dto.ErrorResponse
// @Router /api/uploads/images [post]
func (h *UploadHandler) UploadImages(c fiber.Ctx) error {
	id, ok := accountID(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Invalid Token", "UNAUTHORIZED")
	}

	req := dto.UploadImagesRequest{AccountID: id}
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, field := range []string{"images", "images[]"} {
			for _, fh := range form.File[field] {
				req.Files = append(req.Files, toUploadedFile(fh))
			}
		}
		if values := form.Value["descriptions"]; len(values) > 0 {
			req.Descriptions = values[0]
		}
	}

	ctx, cancel := createRequestContext(c, defaultRequestTimeout)
	defer cancel()

	result, err := h.flow.UploadImages(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.uploadError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *UploadHandler) uploadError(c fiber.Ctx, err error) error {
	switch {
	case businessflow.IsUnsupportedMediaType(err):
		return businessErrorResponse(c, fiber.StatusUnsupportedMediaType, err, "Unsupported file type. Only PNG, JPG, and WEBP are allowed.")
	case businessflow.IsNoFileUploaded(err),
		businessflow.IsNoFilesUploaded(err),
		businessflow.IsTooManyFiles(err),
		businessflow.IsFileTooLarge(err):
		return businessErrorResponse(c, fiber.StatusBadRequest, err, "Invalid upload")
	case businessflow.IsAccountNotFound(err):
		return businessErrorResponse(c, fiber.StatusNotFound, err, "User not found")
	}

	log.Println("Upload failed", err)
	return ErrorResponse(c, fiber.StatusInternalServerError, "Upload failed", "UPLOAD_FAILED")
}
