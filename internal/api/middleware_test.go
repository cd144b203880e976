package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apigate/internal/models"
	"apigate/internal/storage"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func seedKey(t *testing.T, store storage.Storage, role string, enabled bool) (string, *models.APIKey) {
	t.Helper()

	user := models.NewUser(role+"@example.com", role, "hash")
	user.Role = role
	require.NoError(t, store.CreateUser(context.Background(), user))

	raw, err := models.GenerateAPIKey()
	require.NoError(t, err)
	key := models.NewAPIKey(models.NewKeyID(), user.ID, "test", raw, role)
	key.Enabled = enabled
	require.NoError(t, store.CreateAPIKey(context.Background(), key))
	return raw, key
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	store, _ := storage.NewMemoryStorage(storage.Config{})
	handler := authMiddleware(store)(okHandler())

	r := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidFormat(t *testing.T) {
	store, _ := storage.NewMemoryStorage(storage.Config{})
	handler := authMiddleware(store)(okHandler())

	r := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_UnknownKey(t *testing.T) {
	store, _ := storage.NewMemoryStorage(storage.Config{})
	handler := authMiddleware(store)(okHandler())

	r := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	r.Header.Set("Authorization", "Bearer agk_never_issued")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_DisabledKey(t *testing.T) {
	store, _ := storage.NewMemoryStorage(storage.Config{})
	raw, _ := seedKey(t, store, models.RoleStandard, false)

	handler := authMiddleware(store)(okHandler())

	r := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidKeySetsContext(t *testing.T) {
	store, _ := storage.NewMemoryStorage(storage.Config{})
	raw, seeded := seedKey(t, store, models.RolePremium, true)

	var got *models.APIKey
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAPIKey(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := authMiddleware(store)(inner)

	r := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, seeded.ID, got.ID)
	assert.Equal(t, models.RolePremium, got.Role)
}

func TestRequireAdmin_NonAdminForbidden(t *testing.T) {
	handler := requireAdmin(okHandler())

	key := &models.APIKey{Role: models.RolePremium, Enabled: true}
	r := httptest.NewRequest("GET", "/api/v1/admin/users", nil)
	r = r.WithContext(context.WithValue(r.Context(), "api_key", key))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin_NoKeyForbidden(t *testing.T) {
	handler := requireAdmin(okHandler())

	r := httptest.NewRequest("GET", "/api/v1/admin/users", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin_DisabledAdminForbidden(t *testing.T) {
	handler := requireAdmin(okHandler())

	key := &models.APIKey{Role: models.RoleAdmin, Enabled: false}
	r := httptest.NewRequest("GET", "/api/v1/admin/users", nil)
	r = r.WithContext(context.WithValue(r.Context(), "api_key", key))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireAdmin_AdminPasses(t *testing.T) {
	handler := requireAdmin(okHandler())

	key := &models.APIKey{Role: models.RoleAdmin, Enabled: true}
	r := httptest.NewRequest("GET", "/api/v1/admin/users", nil)
	r = r.WithContext(context.WithValue(r.Context(), "api_key", key))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}
