package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apigate/internal/models"
)

// runStorageSuite exercises the full Storage contract against any backend.
// Backend-specific tests live in their own files; everything here must hold
// for memory, SQLite and PostgreSQL alike.
func runStorageSuite(t *testing.T, store Storage) {
	ctx := context.Background()

	t.Run("CreateAndGetUser", func(t *testing.T) {
		user := models.NewUser("alice@example.com", "Alice", "hash-a")
		require.NoError(t, store.CreateUser(ctx, user))

		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
		assert.Equal(t, user.Name, got.Name)
		assert.Equal(t, models.RoleStandard, got.Role)
		assert.True(t, got.Enabled)
	})

	t.Run("GetUserNotFound", func(t *testing.T) {
		_, err := store.GetUser(ctx, "no-such-id")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		user := models.NewUser("dup@example.com", "First", "hash")
		require.NoError(t, store.CreateUser(ctx, user))

		again := models.NewUser("dup@example.com", "Second", "hash")
		assert.ErrorIs(t, store.CreateUser(ctx, again), ErrDuplicateEmail)
	})

	t.Run("GetUserByEmailCaseInsensitive", func(t *testing.T) {
		user := models.NewUser("Case@Example.com", "Casey", "hash")
		require.NoError(t, store.CreateUser(ctx, user))

		got, err := store.GetUserByEmail(ctx, "case@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("UpdateUser", func(t *testing.T) {
		user := models.NewUser("update@example.com", "Before", "hash")
		require.NoError(t, store.CreateUser(ctx, user))

		user.Name = "After"
		user.Role = models.RolePremium
		user.Enabled = false
		require.NoError(t, store.UpdateUser(ctx, user))

		got, err := store.GetUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "After", got.Name)
		assert.Equal(t, models.RolePremium, got.Role)
		assert.False(t, got.Enabled)
	})

	t.Run("UpdateUserNotFound", func(t *testing.T) {
		ghost := models.NewUser("ghost@example.com", "Ghost", "hash")
		assert.ErrorIs(t, store.UpdateUser(ctx, ghost), ErrNotFound)
	})

	t.Run("SearchUsers", func(t *testing.T) {
		user := models.NewUser("findme@example.com", "Findable Person", "hash")
		require.NoError(t, store.CreateUser(ctx, user))

		byName, err := store.SearchUsers(ctx, "findable")
		require.NoError(t, err)
		require.Len(t, byName, 1)
		assert.Equal(t, user.ID, byName[0].ID)

		byEmail, err := store.SearchUsers(ctx, "findme@")
		require.NoError(t, err)
		require.Len(t, byEmail, 1)

		none, err := store.SearchUsers(ctx, "zzz-no-match")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("DeleteUserCascadesKeys", func(t *testing.T) {
		user := models.NewUser("delete@example.com", "Doomed", "hash")
		require.NoError(t, store.CreateUser(ctx, user))

		raw, err := models.GenerateAPIKey()
		require.NoError(t, err)
		key := models.NewAPIKey(models.NewKeyID(), user.ID, "login", raw, user.Role)
		require.NoError(t, store.CreateAPIKey(ctx, key))

		require.NoError(t, store.DeleteUser(ctx, user.ID))

		_, err = store.GetUser(ctx, user.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.GetAPIKeyByHash(ctx, key.KeyHash)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteUserNotFound", func(t *testing.T) {
		assert.ErrorIs(t, store.DeleteUser(ctx, "no-such-id"), ErrNotFound)
	})

	t.Run("APIKeyRoundTrip", func(t *testing.T) {
		user := models.NewUser("keys@example.com", "Keyed", "hash")
		require.NoError(t, store.CreateUser(ctx, user))

		raw, err := models.GenerateAPIKey()
		require.NoError(t, err)
		key := models.NewAPIKey(models.NewKeyID(), user.ID, "login", raw, models.RolePremium)
		require.NoError(t, store.CreateAPIKey(ctx, key))

		got, err := store.GetAPIKeyByHash(ctx, models.HashAPIKey(raw))
		require.NoError(t, err)
		assert.Equal(t, key.ID, got.ID)
		assert.Equal(t, user.ID, got.UserID)
		assert.Equal(t, models.RolePremium, got.Role)
		assert.True(t, got.Enabled)
	})

	t.Run("APIKeyNotFound", func(t *testing.T) {
		_, err := store.GetAPIKeyByHash(ctx, models.HashAPIKey("agk_never_issued"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Settings", func(t *testing.T) {
		require.NoError(t, store.PutSetting(ctx, "maintenance", "off"))
		require.NoError(t, store.PutSetting(ctx, "maintenance", "on")) // upsert
		require.NoError(t, store.PutSetting(ctx, "banner", "hello"))

		settings, err := store.Settings(ctx)
		require.NoError(t, err)
		assert.Equal(t, "on", settings["maintenance"])
		assert.Equal(t, "hello", settings["banner"])
	})

	t.Run("AuditLog", func(t *testing.T) {
		first := models.NewAuditEntry("admin-1", "user.create", "users/u-1", "")
		second := models.NewAuditEntry("admin-1", "user.delete", "users/u-1", "cleanup")
		require.NoError(t, store.AppendAudit(ctx, first))
		require.NoError(t, store.AppendAudit(ctx, second))

		entries, err := store.AuditEntries(ctx, 10)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(entries), 2)
		// Newest first.
		assert.Equal(t, second.ID, entries[0].ID)
		assert.Equal(t, first.ID, entries[1].ID)

		limited, err := store.AuditEntries(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}
