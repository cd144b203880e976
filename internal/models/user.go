package models

import (
	"time"

	"github.com/google/uuid"
)

// Role names assignable to principals. Unknown values are treated as
// "standard" by the admission layer so a bad role can never widen a quota.
const (
	RoleStandard = "standard"
	RolePremium  = "premium"
	RoleAdmin    = "admin"
)

// User is a registered account. The bcrypt password hash is never serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates an enabled user with the standard role and fresh timestamps.
func NewUser(email, name, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		Role:         RoleStandard,
		PasswordHash: passwordHash,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AuditEntry records one admin-surface mutation for the logs endpoint.
type AuditEntry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAuditEntry creates an audit record with a fresh ID and timestamp.
func NewAuditEntry(actor, action, resource, detail string) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.New().String(),
		Actor:     actor,
		Action:    action,
		Resource:  resource,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}
