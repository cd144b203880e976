package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apigate/internal/models"
)

func TestMemoryStorage_Suite(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	runStorageSuite(t, store)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	user := models.NewUser("copy@example.com", "Original", "hash")
	require.NoError(t, store.CreateUser(ctx, user))

	got, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	got.Name = "Mutated"

	again, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Name, "callers must not mutate stored state")
}

func TestMemoryStorage_ListUsersOrderedByCreation(t *testing.T) {
	store, err := NewMemoryStorage(Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	emails := []string{"one@example.com", "two@example.com", "three@example.com"}
	for _, email := range emails {
		require.NoError(t, store.CreateUser(ctx, models.NewUser(email, email, "hash")))
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i, email := range emails {
		assert.Equal(t, email, users[i].Email)
	}
}
