package types

import "github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"

// AnalyzeRequest represents the request structure for the analyze endpoint
type AnalyzeRequest struct {
	ProfileURL string `json:"profile_url" binding:"required"`
}

// AnalyzeResponse pairs the submitted URL with its report
type AnalyzeResponse struct {
	ProfileURL string          `json:"profile_url"`
	Report     analysis.Report `json:"report"`
}

// ValidateRequest represents the request structure for the validate endpoint
type ValidateRequest struct {
	ProfileURL string `json:"profile_url"`
}

// ValidateResponse reports whether a URL passes the gate
type ValidateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Redis     string `json:"redis"`
	Uptime    string `json:"uptime"`
}

// ErrorResponse documents the structured error body
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Category  string            `json:"category"`
	Details   map[string]string `json:"details,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp string            `json:"timestamp"`
}
