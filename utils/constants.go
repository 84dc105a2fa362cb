package utils

import (
	"time"
)

// Token lifetimes
const (
	// SessionTokenTTL is the default lifetime of a session token (1 hour)
	SessionTokenTTL = time.Hour

	// ResetTokenTTL is the default lifetime of a password reset token (15 minutes)
	ResetTokenTTL = 15 * time.Minute
)

// Password policy
const (
	// MinResetPasswordLength applies to the reset-password path only
	MinResetPasswordLength = 8

	// DefaultBcryptCost is the bcrypt work factor used when none is configured
	DefaultBcryptCost = 10
)

// Upload constants
const (
	LogosDir  = "logos"
	ImagesDir = "images"

	// MaxImagesPerUpload caps a single images upload request
	MaxImagesPerUpload = 5

	// DefaultMaxUploadSize is the per-file upload limit (10MB)
	DefaultMaxUploadSize = int64(10 * 1024 * 1024)

	// PublicUploadsPrefix is the URL prefix stored uploads are served under
	PublicUploadsPrefix = "/uploads/"
)

// Document types
const (
	DocTypeInvoiceDemand = "invoiceDemand"
	DocTypeLeakDetection = "leakDetection"
)

// Redis key fragments
const (
	InvoiceLockKeyPrefix   = "invoice"
	ConsumedResetKeyPrefix = "reset_consumed"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
