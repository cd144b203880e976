package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window holds one fixed-window counter.
type window struct {
	count   int64
	started time.Time
	expires time.Time
}

// MemoryStore is an in-process fixed-window counter store. Each key gets its
// own window; the increment-and-check sequence runs under a single mutex so
// racing requests on the same key are serialized. A background goroutine
// periodically evicts windows that expired more than one cleanup interval ago.
type MemoryStore struct {
	cleanupInterval time.Duration

	mu      sync.Mutex
	windows map[string]*window
	done    chan struct{}
	closed  bool
}

// NewMemoryStore creates a memory-backed counter store and starts its
// eviction goroutine.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		cleanupInterval: cleanupInterval,
		windows:         make(map[string]*window),
		done:            make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// IncrementAndCheck records one request for key. An expired window is reset
// in place, so the first request after expiry starts a fresh window with
// count=1.
func (m *MemoryStore) IncrementAndCheck(_ context.Context, key string, limit int, decay time.Duration) (Result, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &window{started: now, expires: now.Add(decay)}
		m.windows[key] = w
	}
	w.count++

	return Result{
		Count:   w.count,
		Allowed: w.count <= int64(limit),
		ResetAt: w.expires,
	}, nil
}

// Close stops the background eviction goroutine.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// cleanup periodically evicts windows that expired more than one cleanup
// interval ago. Expired windows are also reset lazily on access; eviction
// only bounds memory for keys that never return.
func (m *MemoryStore) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryStore) evictExpired() {
	cutoff := time.Now().Add(-m.cleanupInterval)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, w := range m.windows {
		if w.expires.Before(cutoff) {
			delete(m.windows, key)
		}
	}
}
