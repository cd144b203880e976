package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"apigate/internal/models"
)

// PostgresStorage implements the Storage interface using PostgreSQL via pgx.
// The schema is created on startup; unique-violation errors on the users
// email index surface as ErrDuplicateEmail.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	enabled       BOOLEAN NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS api_keys (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	key_hash   TEXT NOT NULL UNIQUE,
	prefix     TEXT NOT NULL,
	role       TEXT NOT NULL,
	enabled    BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	actor      TEXT NOT NULL,
	action     TEXT NOT NULL,
	resource   TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStorage creates a connection pool, verifies connectivity and
// ensures the schema exists.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolCfg, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(config.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// CreateUser stores a new user.
func (ps *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, role, password_hash, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.Name, user.Role, user.PasswordHash,
		user.Enabled, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (ps *PostgresStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, email, name, role, password_hash, enabled, created_at, updated_at
		 FROM users WHERE id = $1`, id)
	return pgScanUser(row)
}

// GetUserByEmail retrieves a user by email address.
func (ps *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := ps.pool.QueryRow(ctx,
		`SELECT id, email, name, role, password_hash, enabled, created_at, updated_at
		 FROM users WHERE lower(email) = lower($1)`, email)
	return pgScanUser(row)
}

// ListUsers returns all users ordered by creation time.
func (ps *PostgresStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, email, name, role, password_hash, enabled, created_at, updated_at
		 FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	return pgScanUsers(rows)
}

// SearchUsers returns users whose name or email contains the query.
func (ps *PostgresStorage) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	pattern := "%" + query + "%"
	rows, err := ps.pool.Query(ctx,
		`SELECT id, email, name, role, password_hash, enabled, created_at, updated_at
		 FROM users WHERE name ILIKE $1 OR email ILIKE $1 ORDER BY created_at`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()
	return pgScanUsers(rows)
}

// UpdateUser stores modified user fields.
func (ps *PostgresStorage) UpdateUser(ctx context.Context, user *models.User) error {
	tag, err := ps.pool.Exec(ctx,
		`UPDATE users SET email = $1, name = $2, role = $3, password_hash = $4, enabled = $5, updated_at = $6
		 WHERE id = $7`,
		user.Email, user.Name, user.Role, user.PasswordHash, user.Enabled,
		time.Now().UTC(), user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user; api_keys cascade.
func (ps *PostgresStorage) DeleteUser(ctx context.Context, id string) error {
	tag, err := ps.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAPIKey stores a new API key.
func (ps *PostgresStorage) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, prefix, role, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.Prefix, key.Role,
		key.Enabled, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash retrieves an API key by its SHA-256 hash.
func (ps *PostgresStorage) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	err := ps.pool.QueryRow(ctx,
		`SELECT id, user_id, name, key_hash, prefix, role, enabled, created_at, updated_at
		 FROM api_keys WHERE key_hash = $1`, hash).
		Scan(&key.ID, &key.UserID, &key.Name, &key.KeyHash, &key.Prefix, &key.Role,
			&key.Enabled, &key.CreatedAt, &key.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &key, nil
}

// Settings returns all service settings.
func (ps *PostgresStorage) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := ps.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// PutSetting stores one setting.
func (ps *PostgresStorage) PutSetting(ctx context.Context, key, value string) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to put setting: %w", err)
	}
	return nil
}

// AppendAudit records an admin-surface mutation.
func (ps *PostgresStorage) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO audit_log (id, actor, action, resource, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Actor, entry.Action, entry.Resource, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// AuditEntries returns the most recent audit records, newest first.
func (ps *PostgresStorage) AuditEntries(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, actor, action, resource, detail, created_at
		 FROM audit_log ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0, limit)
	for rows.Next() {
		var entry models.AuditEntry
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.Resource,
			&entry.Detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Close releases the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

func pgScanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.PasswordHash,
		&user.Enabled, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func pgScanUsers(rows pgx.Rows) ([]*models.User, error) {
	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := pgScanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
