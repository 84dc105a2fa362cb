package businessflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/app/services"
	"github.com/amirphl/Kappa/models"
	"github.com/amirphl/Kappa/repository"
	"github.com/amirphl/Kappa/utils"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// imageExtensions lists the original file extensions kept for each type
var imageExtensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/webp": {".webp"},
}

// UploadPolicy bounds accepted uploads
type UploadPolicy struct {
	MaxFileSize      int64
	LogoMaxDimension int
}

// UploadFlow stores company logos and report images
type UploadFlow interface {
	UploadLogo(ctx context.Context, req *dto.UploadLogoRequest, metadata *ClientMetadata) (*dto.UploadLogoResponse, error)
	UploadImages(ctx context.Context, req *dto.UploadImagesRequest, metadata *ClientMetadata) (*dto.UploadImagesResponse, error)
}

// UploadFlowImpl implements UploadFlow
type UploadFlowImpl struct {
	accountRepo repository.AccountRepository
	store       services.FileStore
	audit       auditTrail
	policy      UploadPolicy
}

// NewUploadFlow creates a new upload flow instance
func NewUploadFlow(accountRepo repository.AccountRepository, auditRepo repository.AuditLogRepository, store services.FileStore, policy UploadPolicy) UploadFlow {
	if policy.MaxFileSize <= 0 {
		policy.MaxFileSize = utils.DefaultMaxUploadSize
	}
	return &UploadFlowImpl{
		accountRepo: accountRepo,
		store:       store,
		audit:       newAuditTrail(auditRepo),
		policy:      policy,
	}
}

// validatedImage is an upload that passed type, size and decode checks
type validatedImage struct {
	data     []byte
	mimeType string
	ext      string
	config   image.Config
}

// UploadLogo stores the logo and points company_logo at it
func (f *UploadFlowImpl) UploadLogo(ctx context.Context, req *dto.UploadLogoRequest, metadata *ClientMetadata) (*dto.UploadLogoResponse, error) {
	if req.File == nil {
		return nil, NewBusinessError("NO_FILE_UPLOADED", "No file uploaded", ErrNoFileUploaded)
	}

	img, err := f.validate(req.File)
	if err != nil {
		return nil, err
	}

	data, err := downscale(img, f.policy.LogoMaxDimension)
	if err != nil {
		return nil, NewBusinessError("LOGO_RESIZE_FAILED", "Failed to process logo", err)
	}

	url, err := f.store.Save(utils.LogosDir, uploadName("logo", img.ext), data)
	if err != nil {
		return nil, NewBusinessError("UPLOAD_FAILED", "Failed to store file", err)
	}

	if err := f.accountRepo.UpdateProfile(ctx, req.AccountID, models.ProfileUpdate{CompanyLogo: &url}); err != nil {
		if rmErr := f.store.Remove(url); rmErr != nil {
			log.Printf("failed to remove orphaned logo %s: %v", url, rmErr)
		}
		if repository.IsNotFound(err) {
			return nil, NewBusinessError("ACCOUNT_NOT_FOUND", "User not found", ErrAccountNotFound)
		}
		return nil, NewBusinessError("LOGO_UPDATE_FAILED", "Failed to update logo", err)
	}

	f.audit.record(ctx, &req.AccountID, models.AuditActionLogoUploaded,
		"Company logo uploaded", true, nil, metadata, map[string]any{"url": url})

	return &dto.UploadLogoResponse{URL: url}, nil
}

// UploadImages validates every file before writing any of them
func (f *UploadFlowImpl) UploadImages(ctx context.Context, req *dto.UploadImagesRequest, metadata *ClientMetadata) (*dto.UploadImagesResponse, error) {
	if len(req.Files) == 0 {
		return nil, NewBusinessError("NO_FILES_UPLOADED", "No files uploaded", ErrNoFilesUploaded)
	}
	if len(req.Files) > utils.MaxImagesPerUpload {
		return nil, NewBusinessError("TOO_MANY_FILES", "Too many files. At most 5 images are allowed.", ErrTooManyFiles)
	}

	images := make([]*validatedImage, 0, len(req.Files))
	for _, file := range req.Files {
		img, err := f.validate(file)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	descriptions := parseDescriptions(req.Descriptions)

	out := make([]dto.ImageRefDTO, 0, len(images))
	for i, img := range images {
		url, err := f.store.Save(utils.ImagesDir, uploadName("images", img.ext), img.data)
		if err != nil {
			return nil, NewBusinessError("UPLOAD_FAILED", "Failed to store file", err)
		}
		desc := ""
		if i < len(descriptions) {
			desc = descriptions[i]
		}
		out = append(out, dto.ImageRefDTO{URL: url, Description: desc})
	}

	return &dto.UploadImagesResponse{Images: out}, nil
}

func (f *UploadFlowImpl) validate(file *dto.UploadedFile) (*validatedImage, error) {
	if file == nil || file.Open == nil {
		return nil, NewBusinessError("NO_FILE_UPLOADED", "No file uploaded", ErrNoFileUploaded)
	}

	declared := normalizeMediaType(file.ContentType)
	ext, ok := allowedImageTypes[declared]
	if !ok {
		return nil, unsupportedMediaType(file.Filename, declared)
	}
	if file.Size > f.policy.MaxFileSize {
		return nil, NewBusinessError("FILE_TOO_LARGE", "File too large", ErrFileTooLarge)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, NewBusinessError("UPLOAD_READ_FAILED", "Failed to read upload", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, f.policy.MaxFileSize+1))
	if err != nil {
		return nil, NewBusinessError("UPLOAD_READ_FAILED", "Failed to read upload", err)
	}
	if int64(len(data)) > f.policy.MaxFileSize {
		return nil, NewBusinessError("FILE_TOO_LARGE", "File too large", ErrFileTooLarge)
	}

	if detected := http.DetectContentType(data); detected != declared {
		return nil, unsupportedMediaType(file.Filename, detected)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, unsupportedMediaType(file.Filename, declared)
	}

	return &validatedImage{data: data, mimeType: declared, ext: storedExtension(file.Filename, declared, ext), config: cfg}, nil
}

// storedExtension keeps the original extension when it matches the type and
// falls back to the canonical one otherwise
func storedExtension(filename, mediaType, fallback string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if slices.Contains(imageExtensions[mediaType], ext) {
		return ext
	}
	return fallback
}

func unsupportedMediaType(filename, mediaType string) error {
	return NewBusinessError("UNSUPPORTED_MEDIA_TYPE", "Unsupported file type. Only PNG, JPG, and WEBP are allowed.",
		fmt.Errorf("%w: %s (%s)", ErrUnsupportedMediaType, filename, mediaType))
}

func normalizeMediaType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

func uploadName(role, ext string) string {
	return fmt.Sprintf("%s-%d-%s%s", role, utils.UTCNow().UnixMilli(), uuid.New().String(), ext)
}

// parseDescriptions decodes a JSON string array. Anything else yields none.
func parseDescriptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			out[i] = s
		}
	}
	return out
}

// downscale shrinks PNG and JPEG images whose longer side exceeds maxDim.
// WEBP has no encoder and is stored as uploaded.
func downscale(img *validatedImage, maxDim int) ([]byte, error) {
	if maxDim <= 0 || img.mimeType == "image/webp" {
		return img.data, nil
	}
	if img.config.Width <= maxDim && img.config.Height <= maxDim {
		return img.data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(img.data))
	if err != nil {
		return nil, err
	}

	dst := resizeImage(src, maxDim)
	buf := &bytes.Buffer{}
	switch img.mimeType {
	case "image/png":
		err = png.Encode(buf, dst)
	default:
		err = jpeg.Encode(buf, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resizeImage(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, int(float64(h)*float64(maxDim)/float64(w)))
	} else {
		nh = maxDim
		nw = max(1, int(float64(w)*float64(maxDim)/float64(h)))
	}

	// Src keeps the alpha channel of transparent logos
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
