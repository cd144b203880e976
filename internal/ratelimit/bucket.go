package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucketEntry holds a token bucket and its last access time for cleanup.
type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BucketStore implements the counter store contract on golang.org/x/time/rate
// token buckets. It trades the fixed-window semantics of MemoryStore for
// smooth admission without window-edge bursts; the reported count and reset
// time are derived from the bucket's token level. Deployments that prefer
// strict window accounting should use the memory or redis stores.
type BucketStore struct {
	cleanupInterval time.Duration

	mu      sync.Mutex
	entries map[string]*bucketEntry
	done    chan struct{}
	closed  bool
}

var _ CounterStore = (*BucketStore)(nil)

// NewBucketStore creates a token bucket store and starts a background
// goroutine that evicts entries not accessed within 2x the cleanup interval.
func NewBucketStore(cleanupInterval time.Duration) *BucketStore {
	b := &BucketStore{
		cleanupInterval: cleanupInterval,
		entries:         make(map[string]*bucketEntry),
		done:            make(chan struct{}),
	}
	go b.cleanup()
	return b
}

// IncrementAndCheck draws one token from the key's bucket. The bucket refills
// at limit tokens per decay window with burst equal to the limit, so the
// sustained admission rate matches the configured quota.
func (b *BucketStore) IncrementAndCheck(_ context.Context, key string, limit int, decay time.Duration) (Result, error) {
	refill := rate.Every(decay / time.Duration(limit))

	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok {
		e = &bucketEntry{limiter: rate.NewLimiter(refill, limit)}
		b.entries[key] = e
	}
	e.lastSeen = time.Now()
	b.mu.Unlock()

	allowed := e.limiter.Allow()

	now := time.Now()
	tokens := e.limiter.TokensAt(now)
	used := int64(math.Ceil(float64(limit) - tokens))
	if used < 0 {
		used = 0
	}

	// Reset time: how long until the bucket is full again.
	resetAt := now
	if tokensNeeded := float64(limit) - tokens; tokensNeeded > 0 {
		resetAt = now.Add(time.Duration(tokensNeeded / float64(refill) * float64(time.Second)))
	}

	return Result{
		Count:   used,
		Allowed: allowed,
		ResetAt: resetAt,
	}, nil
}

// Close stops the background cleanup goroutine.
func (b *BucketStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

// cleanup periodically evicts entries not accessed within 2x the cleanup interval.
func (b *BucketStore) cleanup() {
	ticker := time.NewTicker(b.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.evictStale()
		}
	}
}

func (b *BucketStore) evictStale() {
	cutoff := time.Now().Add(-2 * b.cleanupInterval)
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, e := range b.entries {
		if e.lastSeen.Before(cutoff) {
			delete(b.entries, key)
		}
	}
}
