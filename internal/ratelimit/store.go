package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one counter increment.
type Result struct {
	Count   int64     // Requests observed in the current window, including this one
	Allowed bool      // Whether this request fits within the limit
	ResetAt time.Time // When the current window expires
}

// CounterStore is the shared mutable state of the admission layer: a
// key-scoped counter with atomic increment-and-check semantics. The
// increment and the comparison against the limit must be linearizable per
// key; two racing requests on the same key must never both observe count=0.
// Implementations must be safe for concurrent use.
type CounterStore interface {
	// IncrementAndCheck records one request for key and reports whether it
	// fits within limit for the current decay window. The first write in a
	// window starts it; the window expires after the decay interval and the
	// next request starts a fresh one with count=1.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (Result, error)

	// Close stops background goroutines and releases resources.
	Close() error
}
