// Package utils provides utility functions for the application.
package utils

import (
	"strings"
)

func ToPtr[T any](v T) *T {
	return &v
}

// NormalizeEmail trims surrounding whitespace. Matching stays exact otherwise.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
