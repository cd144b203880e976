package storage

import (
	"context"

	"apigate/internal/models"
)

// Storage defines the interface for account, API key, settings and audit
// persistence. It provides a clean abstraction that can be implemented by
// different backends such as in-memory maps or databases.
type Storage interface {
	// CreateUser stores a new user. Fails with ErrDuplicateEmail when the
	// email is already registered.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*models.User, error)

	// GetUserByEmail retrieves a user by email address.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// ListUsers returns all users ordered by creation time.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// SearchUsers returns users whose name or email contains the query,
	// case-insensitively.
	SearchUsers(ctx context.Context, query string) ([]*models.User, error)

	// UpdateUser stores modified user fields.
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser removes a user and their API keys.
	DeleteUser(ctx context.Context, id string) error

	// CreateAPIKey stores a new API key.
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	// GetAPIKeyByHash retrieves an API key by its SHA-256 hash.
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)

	// Settings returns all service settings.
	Settings(ctx context.Context) (map[string]string, error)

	// PutSetting stores one setting.
	PutSetting(ctx context.Context, key, value string) error

	// AppendAudit records an admin-surface mutation.
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error

	// AuditEntries returns the most recent audit records, newest first.
	AuditEntries(ctx context.Context, limit int) ([]*models.AuditEntry, error)

	// Close closes the storage connection and cleans up resources.
	Close() error
}

// Config holds configuration for storage backends.
type Config struct {
	// Type specifies the storage backend type (memory, sqlite, postgres).
	Type string `json:"type" yaml:"type"`

	// ConnectionString is used for database backends.
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// MaxOpenConns bounds the database connection pool.
	MaxOpenConns int `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
}
