package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UnderLimit(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	res, err := store.IncrementAndCheck(context.Background(), "key", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Count)
	assert.False(t, res.ResetAt.IsZero())
}

func TestMemoryStore_ExceedsLimit(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	key := "rl:ip:192.168.1.1:public:auth:POST"

	for i := 0; i < 5; i++ {
		res, err := store.IncrementAndCheck(context.Background(), key, 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
	}

	res, err := store.IncrementAndCheck(context.Background(), key, 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(6), res.Count)
}

func TestMemoryStore_WindowReset(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	key := "key"
	window := 50 * time.Millisecond

	for i := 0; i < 3; i++ {
		store.IncrementAndCheck(context.Background(), key, 2, window)
	}
	res, err := store.IncrementAndCheck(context.Background(), key, 2, window)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	time.Sleep(window + 20*time.Millisecond)

	// First request after expiry starts a fresh window with count=1.
	res, err = store.IncrementAndCheck(context.Background(), key, 2, window)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Count)
}

func TestMemoryStore_KeyIsolation(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	for i := 0; i < 3; i++ {
		store.IncrementAndCheck(context.Background(), "key1", 2, time.Minute)
	}
	res1, _ := store.IncrementAndCheck(context.Background(), "key1", 2, time.Minute)
	assert.False(t, res1.Allowed, "key1 should be denied")

	res2, err := store.IncrementAndCheck(context.Background(), "key2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res2.Allowed, "key2 should be allowed")
	assert.Equal(t, int64(1), res2.Count)
}

func TestMemoryStore_ResetAtStableWithinWindow(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	res1, _ := store.IncrementAndCheck(context.Background(), "key", 10, time.Minute)
	res2, _ := store.IncrementAndCheck(context.Background(), "key", 10, time.Minute)

	// The window is aligned to its first request, not sliding.
	assert.Equal(t, res1.ResetAt, res2.ResetAt)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	defer store.Close()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				key := fmt.Sprintf("key-%d", n%5)
				_, err := store.IncrementAndCheck(context.Background(), key, 1000, time.Minute)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	// Each of the 5 keys was hit exactly 10*20 times; no increments lost.
	res, err := store.IncrementAndCheck(context.Background(), "key-0", 1000, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(10*perGoroutine+1), res.Count)
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestMemoryStore_EvictsExpiredWindows(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	defer store.Close()

	store.IncrementAndCheck(context.Background(), "stale", 5, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		_, ok := store.windows["stale"]
		return !ok
	}, time.Second, 10*time.Millisecond)
}
