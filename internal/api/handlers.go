// Package api contains the HTTP surface of the gateway: handlers, the route
// table with its admission scopes, and the auth/logging/recovery middleware
// chain.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"apigate/internal/models"
	"apigate/internal/storage"
	"apigate/internal/users"
	"apigate/internal/version"
)

// maxUploadBytes caps upload request bodies.
const maxUploadBytes = 32 << 20

// Handlers contains the HTTP handlers for the gateway API.
type Handlers struct {
	users   users.ServiceInterface
	storage storage.Storage
}

// NewHandlers creates a new handlers instance.
func NewHandlers(userService users.ServiceInterface, store storage.Storage) *Handlers {
	return &Handlers{
		users:   userService,
		storage: store,
	}
}

// HealthCheck handles health check requests
// GET /health, GET /api/v1/health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	response := &models.HealthCheckResponse{
		Status:     "healthy",
		Timestamp:  now,
		Version:    version.GetInfo().Version,
		Components: make(map[string]models.ComponentHealth),
	}

	// A cheap read proves the storage backend is reachable.
	storageHealth := models.ComponentHealth{Status: "healthy", Timestamp: now}
	if _, err := h.storage.Settings(r.Context()); err != nil {
		storageHealth.Status = "unhealthy"
		storageHealth.Message = err.Error()
		response.Status = "degraded"
	}
	response.Components["storage"] = storageHealth
	response.Components["api"] = models.ComponentHealth{Status: "healthy", Timestamp: now}

	writeJSON(w, http.StatusOK, response)
}

// VersionInfo handles build metadata requests
// GET /api/v1/version
func (h *Handlers) VersionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

// Register handles account creation
// POST /api/v1/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	user, rawKey, err := h.users.Register(r.Context(), &req)
	if errors.Is(err, storage.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, models.ErrorCodeConflict, "Email address is already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, &models.TokenResponse{
		UserID:    user.ID,
		APIKey:    rawKey,
		Role:      user.Role,
		CreatedAt: time.Now().UTC(),
	})
}

// Login handles credential exchange
// POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	user, rawKey, err := h.users.Login(r.Context(), &req)
	if errors.Is(err, users.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, &models.TokenResponse{
		UserID:    user.ID,
		APIKey:    rawKey,
		Role:      user.Role,
		CreatedAt: time.Now().UTC(),
	})
}

// GetProfile returns the caller's own account
// GET /api/v1/users/me
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	key := GetAPIKey(r)
	if key == nil {
		writeError(w, http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Authorization required")
		return
	}

	user, err := h.users.Get(r.Context(), key.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, models.ErrorCodeNotFound, "Account not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, models.NewUserResponse(user))
}

// UpdateProfile applies a self-service profile change
// PUT /api/v1/users/me
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	key := GetAPIKey(r)
	if key == nil {
		writeError(w, http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Authorization required")
		return
	}

	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, err.Error())
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), key.UserID, &req)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, models.ErrorCodeNotFound, "Account not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to update account")
		return
	}

	writeJSON(w, http.StatusOK, models.NewUserResponse(user))
}

// Search finds accounts by name or email
// GET /api/v1/search?q=...
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Query parameter 'q' is required")
		return
	}

	matches, err := h.users.Search(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Search failed")
		return
	}

	results := make([]*models.UserResponse, 0, len(matches))
	for _, user := range matches {
		results = append(results, models.NewUserResponse(user))
	}

	writeJSON(w, http.StatusOK, &models.SearchResponse{
		Query:      query,
		Results:    results,
		TotalCount: len(results),
	})
}

// Upload accepts a file body
// POST /api/v1/uploads
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	size, err := io.Copy(io.Discard, r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, models.ErrorCodeInvalidRequest, "Upload exceeds size limit")
		return
	}
	if size == 0 {
		writeError(w, http.StatusBadRequest, models.ErrorCodeInvalidRequest, "Upload body is empty")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "upload.bin"
	}

	writeJSON(w, http.StatusCreated, &models.UploadResponse{
		ID:       uuid.New().String(),
		Filename: filename,
		Size:     size,
		Uploaded: time.Now().UTC(),
	})
}

// Export produces a data export for the caller's account
// POST /api/v1/export
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	key := GetAPIKey(r)
	if key == nil {
		writeError(w, http.StatusUnauthorized, models.ErrorCodeUnauthorized, "Authorization required")
		return
	}

	if _, err := h.users.Get(r.Context(), key.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Failed to build export")
		return
	}

	writeJSON(w, http.StatusCreated, &models.ExportResponse{
		ID:          uuid.New().String(),
		RecordCount: 1,
		GeneratedAt: time.Now().UTC(),
	})
}
