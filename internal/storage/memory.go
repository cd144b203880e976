package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"apigate/internal/models"
)

// MemoryStorage implements the Storage interface using in-memory data
// structures. This provider is ideal for development and testing; data is
// lost on restart.
type MemoryStorage struct {
	mu           sync.RWMutex
	users        map[string]*models.User   // keyed by ID
	usersByEmail map[string]string         // lowercased email -> ID
	apiKeys      map[string]*models.APIKey // keyed by ID
	apiKeyHashes map[string]string         // hash -> ID
	settings     map[string]string
	audit        []*models.AuditEntry
}

// NewMemoryStorage creates a new memory-based storage instance.
func NewMemoryStorage(_ Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		users:        make(map[string]*models.User),
		usersByEmail: make(map[string]string),
		apiKeys:      make(map[string]*models.APIKey),
		apiKeyHashes: make(map[string]string),
		settings:     make(map[string]string),
	}, nil
}

// CreateUser stores a new user.
func (m *MemoryStorage) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := m.usersByEmail[email]; exists {
		return ErrDuplicateEmail
	}

	userCopy := *user
	m.users[user.ID] = &userCopy
	m.usersByEmail[email] = user.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MemoryStorage) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, ErrNotFound
	}

	// Return a copy to prevent external modification
	userCopy := *user
	return &userCopy, nil
}

// GetUserByEmail retrieves a user by email address.
func (m *MemoryStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.usersByEmail[strings.ToLower(email)]
	if !exists {
		return nil, ErrNotFound
	}

	userCopy := *m.users[id]
	return &userCopy, nil
}

// ListUsers returns all users ordered by creation time.
func (m *MemoryStorage) ListUsers(_ context.Context) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*models.User, 0, len(m.users))
	for _, user := range m.users {
		userCopy := *user
		users = append(users, &userCopy)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// SearchUsers returns users whose name or email contains the query.
func (m *MemoryStorage) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	users, err := m.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	matches := make([]*models.User, 0)
	for _, user := range users {
		if strings.Contains(strings.ToLower(user.Name), q) ||
			strings.Contains(strings.ToLower(user.Email), q) {
			matches = append(matches, user)
		}
	}
	return matches, nil
}

// UpdateUser stores modified user fields.
func (m *MemoryStorage) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.users[user.ID]
	if !exists {
		return ErrNotFound
	}

	delete(m.usersByEmail, strings.ToLower(existing.Email))
	userCopy := *user
	userCopy.UpdatedAt = time.Now().UTC()
	m.users[user.ID] = &userCopy
	m.usersByEmail[strings.ToLower(user.Email)] = user.ID
	return nil
}

// DeleteUser removes a user and their API keys.
func (m *MemoryStorage) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[id]
	if !exists {
		return ErrNotFound
	}

	delete(m.usersByEmail, strings.ToLower(user.Email))
	delete(m.users, id)

	for keyID, key := range m.apiKeys {
		if key.UserID == id {
			delete(m.apiKeyHashes, key.KeyHash)
			delete(m.apiKeys, keyID)
		}
	}
	return nil
}

// CreateAPIKey stores a new API key.
func (m *MemoryStorage) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keyCopy := *key
	m.apiKeys[key.ID] = &keyCopy
	m.apiKeyHashes[key.KeyHash] = key.ID
	return nil
}

// GetAPIKeyByHash retrieves an API key by its SHA-256 hash.
func (m *MemoryStorage) GetAPIKeyByHash(_ context.Context, hash string) (*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.apiKeyHashes[hash]
	if !exists {
		return nil, ErrNotFound
	}

	keyCopy := *m.apiKeys[id]
	return &keyCopy, nil
}

// Settings returns all service settings.
func (m *MemoryStorage) Settings(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	settings := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		settings[k] = v
	}
	return settings, nil
}

// PutSetting stores one setting.
func (m *MemoryStorage) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

// AppendAudit records an admin-surface mutation.
func (m *MemoryStorage) AppendAudit(_ context.Context, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entryCopy := *entry
	m.audit = append(m.audit, &entryCopy)
	return nil
}

// AuditEntries returns the most recent audit records, newest first.
func (m *MemoryStorage) AuditEntries(_ context.Context, limit int) ([]*models.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*models.AuditEntry, 0, limit)
	for i := len(m.audit) - 1; i >= 0 && len(entries) < limit; i-- {
		entryCopy := *m.audit[i]
		entries = append(entries, &entryCopy)
	}
	return entries, nil
}

// Close is a no-op for memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}
