// Package dto contains Data Transfer Objects for API request and response structures
package dto

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error" example:"User not found"`
	Code  string `json:"code,omitempty" example:"ACCOUNT_NOT_FOUND"`
}

// MessageResponse is a bare acknowledgement
type MessageResponse struct {
	Message string `json:"message" example:"Terms accepted"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status string  `json:"status" example:"ok"`
	Uptime float64 `json:"uptime" example:"12.5"`
}
