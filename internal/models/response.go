// Package models - API response types and error handling.
// All endpoints share the same ErrorResponse envelope with machine-readable
// codes; successful responses are per-endpoint structs with omitempty on
// optional fields.
package models

import (
	"time"
)

// Error code constants for machine-readable error handling.
const (
	ErrorCodeInvalidRequest = "INVALID_REQUEST"
	ErrorCodeUnauthorized   = "UNAUTHORIZED"
	ErrorCodeForbidden      = "FORBIDDEN"
	ErrorCodeNotFound       = "NOT_FOUND"
	ErrorCodeConflict       = "CONFLICT"
	ErrorCodeInternalError  = "INTERNAL_ERROR"
)

// ErrorResponse provides structured error information with debugging context.
type ErrorResponse struct {
	Error     string            `json:"error"`             // Error type (always "error")
	Message   string            `json:"message"`           // Human-readable error description
	Code      string            `json:"code,omitempty"`    // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"` // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`         // Error occurrence time
}

// NewErrorResponse creates an ErrorResponse with the current timestamp.
func NewErrorResponse(message, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}

// TokenResponse returns a freshly issued API key. The raw key is shown
// exactly once; only its hash is stored.
type TokenResponse struct {
	UserID    string    `json:"user_id"`
	APIKey    string    `json:"api_key"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserResponse is the public projection of a user account.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse projects a User into its API representation.
func NewUserResponse(u *User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type ListUsersResponse struct {
	Users      []*UserResponse `json:"users"`
	TotalCount int             `json:"total_count"`
}

type SearchResponse struct {
	Query      string          `json:"query"`
	Results    []*UserResponse `json:"results"`
	TotalCount int             `json:"total_count"`
}

type UploadResponse struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded"`
}

type ExportResponse struct {
	ID          string    `json:"id"`
	RecordCount int       `json:"record_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

type SettingsResponse struct {
	Settings  map[string]string `json:"settings"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type AuditLogResponse struct {
	Entries    []*AuditEntry `json:"entries"`
	TotalCount int           `json:"total_count"`
}

type ReportResponse struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Counts      map[string]int `json:"counts"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
