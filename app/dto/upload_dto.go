package dto

import "io"

// UploadedFile is one multipart file handed to the upload flow
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadLogoRequest represents a logo upload
type UploadLogoRequest struct {
	AccountID uint
	File      *UploadedFile
}

// UploadImagesRequest represents a batch image upload. Descriptions is the
// raw JSON-encoded string array sent by the client.
type UploadImagesRequest struct {
	AccountID    uint
	Files        []*UploadedFile
	Descriptions string
}

// UploadLogoResponse is returned after a logo upload
type UploadLogoResponse struct {
	URL string `json:"url" example:"/uploads/logos/logo-1700000000000-3f1c.png"`
}

// ImageRefDTO pairs an image reference with its caption
type ImageRefDTO struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// UploadImagesResponse lists stored images in submitted order
type UploadImagesResponse struct {
	Images []ImageRefDTO `json:"images"`
}
