package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey_Format(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "agk_"))
	assert.Len(t, key, 4+44)
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	k1, err := GenerateAPIKey()
	require.NoError(t, err)
	k2, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}

func TestHashAPIKey_Deterministic(t *testing.T) {
	h1 := HashAPIKey("agk_test")
	h2 := HashAPIKey("agk_test")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashAPIKey("agk_other"))
}

func TestNewAPIKey(t *testing.T) {
	raw, err := GenerateAPIKey()
	require.NoError(t, err)

	key := NewAPIKey(NewKeyID(), "user-1", "login", raw, RolePremium)

	assert.Equal(t, "user-1", key.UserID)
	assert.Equal(t, HashAPIKey(raw), key.KeyHash)
	assert.Equal(t, raw[:8], key.Prefix)
	assert.Equal(t, RolePremium, key.Role)
	assert.True(t, key.Enabled)
}

func TestAPIKey_IsAdmin(t *testing.T) {
	key := &APIKey{Role: RoleAdmin, Enabled: true}
	assert.True(t, key.IsAdmin())

	key.Enabled = false
	assert.False(t, key.IsAdmin(), "disabled keys carry no privileges")

	key = &APIKey{Role: RolePremium, Enabled: true}
	assert.False(t, key.IsAdmin())
}

func TestNewUser_Defaults(t *testing.T) {
	user := NewUser("a@example.com", "Alice", "hash")

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, RoleStandard, user.Role)
	assert.True(t, user.Enabled)
	assert.False(t, user.CreatedAt.IsZero())
}
