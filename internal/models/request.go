// Package models - API request types and input validation.
// Validation happens at the model boundary so handlers stay thin: a request
// that passes Validate is safe to hand to the service layer.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// RegisterRequest creates a new account and issues its first API key.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r *RegisterRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if len(r.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// LoginRequest exchanges credentials for a fresh API key.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// UpdateProfileRequest modifies the caller's own account.
type UpdateProfileRequest struct {
	Name string `json:"name"`
}

func (r *UpdateProfileRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// UpdateUserRequest is the admin-surface account mutation.
type UpdateUserRequest struct {
	Name    *string `json:"name,omitempty"`
	Role    *string `json:"role,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

func (r *UpdateUserRequest) Validate() error {
	if r.Name == nil && r.Role == nil && r.Enabled == nil {
		return errors.New("at least one field must be provided")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if r.Role != nil && !validRoleName(*r.Role) {
		return fmt.Errorf("unknown role: %s", *r.Role)
	}
	return nil
}

// CreateUserRequest is the admin-surface account creation, which unlike
// self-registration may assign any role up front.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (r *CreateUserRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if len(r.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if r.Role != "" && !validRoleName(r.Role) {
		return fmt.Errorf("unknown role: %s", r.Role)
	}
	return nil
}

// UpdateSettingsRequest replaces the named settings with the given values.
type UpdateSettingsRequest struct {
	Settings map[string]string `json:"settings"`
}

func (r *UpdateSettingsRequest) Validate() error {
	if len(r.Settings) == 0 {
		return errors.New("settings cannot be empty")
	}
	for k := range r.Settings {
		if strings.TrimSpace(k) == "" {
			return errors.New("setting keys cannot be empty")
		}
	}
	return nil
}

// GenerateReportRequest kicks off an admin report build.
type GenerateReportRequest struct {
	Kind string `json:"kind"`
}

func (r *GenerateReportRequest) Validate() error {
	switch r.Kind {
	case "users", "activity":
		return nil
	default:
		return fmt.Errorf("unknown report kind: %s", r.Kind)
	}
}

// validateEmail enforces the minimal shape local@domain. Deliverability is
// the mail system's problem, not an input-validation concern.
func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return nil
}
