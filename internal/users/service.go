// Package users implements the account service: registration, credential
// verification and account management on top of the storage layer. Passwords
// are hashed with bcrypt; authentication tokens are API keys whose role
// mirrors the owning user's role at issuance time.
package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"apigate/internal/models"
	"apigate/internal/storage"
)

// ErrInvalidCredentials is returned by Login for a wrong email/password pair.
// It deliberately does not distinguish an unknown email from a bad password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ServiceInterface defines the account operations exposed to handlers.
type ServiceInterface interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error)
	Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Search(ctx context.Context, query string) ([]*models.User, error)
	Update(ctx context.Context, id string, req *models.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// Service implements ServiceInterface.
type Service struct {
	store storage.Storage
}

var _ ServiceInterface = (*Service)(nil)

// NewService creates a new account service.
func NewService(store storage.Storage) *Service {
	return &Service{store: store}
}

// Register creates a new account with the standard role and issues its first
// API key. The raw key is returned exactly once.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(req.Email, req.Name, string(hash))
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	rawKey, err := s.issueKey(ctx, user, "registration")
	if err != nil {
		return nil, "", err
	}
	return user, rawKey, nil
}

// Login verifies credentials and issues a fresh API key.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.Enabled {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	rawKey, err := s.issueKey(ctx, user, "login")
	if err != nil {
		return nil, "", err
	}
	return user, rawKey, nil
}

// Create provisions an account from the admin surface. Unlike Register it may
// assign any role and does not issue an API key; the account holder logs in
// for that.
func (s *Service) Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.NewUser(req.Email, req.Name, string(hash))
	if req.Role != "" {
		user.Role = req.Role
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Get retrieves one account.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateProfile applies a self-service profile change.
func (s *Service) UpdateProfile(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = req.Name
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.store.GetUser(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.store.ListUsers(ctx)
}

// Search returns accounts matching the query by name or email.
func (s *Service) Search(ctx context.Context, query string) ([]*models.User, error) {
	return s.store.SearchUsers(ctx, query)
}

// Update applies an admin-surface account mutation. Role changes take effect
// for quota purposes on the next key issuance; existing keys keep the role
// they were minted with.
func (s *Service) Update(ctx context.Context, id string, req *models.UpdateUserRequest) (*models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Enabled != nil {
		user.Enabled = *req.Enabled
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.store.GetUser(ctx, id)
}

// Delete removes an account and its API keys.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteUser(ctx, id)
}

func (s *Service) issueKey(ctx context.Context, user *models.User, name string) (string, error) {
	rawKey, err := models.GenerateAPIKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}

	key := models.NewAPIKey(models.NewKeyID(), user.ID, name, rawKey, user.Role)
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return "", fmt.Errorf("failed to store api key: %w", err)
	}
	return rawKey, nil
}
