package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Decision is the per-request admission outcome. It carries everything the
// middleware needs for headers and violation reporting; all durable state
// lives in the counter store.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Count     int64
	ResetAt   time.Time
	Key       string
}

// Enforcer orchestrates policy lookup and the counter store. It is stateless
// per call and free of HTTP types so it can be tested with a fake store.
type Enforcer struct {
	policy   *Policy
	store    CounterStore
	failOpen bool
}

// NewEnforcer creates an enforcer. failOpen selects the behavior when the
// counter store is unreachable: admit with a warning (true, the default
// deployment choice) or deny (false, for stricter postures). Either way the
// choice is explicit and uniform, never an accident of error handling.
func NewEnforcer(policy *Policy, store CounterStore, failOpen bool) *Enforcer {
	return &Enforcer{
		policy:   policy,
		store:    store,
		failOpen: failOpen,
	}
}

// Enforce admits or denies one classified request.
//
// A missing policy entry should have been caught by Policy.Validate at
// startup; if one is hit anyway the request is denied with a loud log,
// never admitted unlimited.
func (e *Enforcer) Enforce(ctx context.Context, c Classification) Decision {
	limit, err := e.policy.LimitFor(c.Tier, c.Category, c.Role, c.Method)
	if err != nil {
		slog.Error("Rate limit policy lookup failed, denying request",
			"error", err,
			"tier", c.Tier,
			"category", c.Category,
			"method", c.Method,
		)
		return Decision{Allowed: false, ResetAt: time.Now().Add(e.policy.Window())}
	}

	key := counterKey(c)

	res, err := e.store.IncrementAndCheck(ctx, key, limit, e.policy.Window())
	if err != nil {
		slog.Warn("Counter store unavailable",
			"error", err,
			"key", key,
			"fail_open", e.failOpen,
		)
		return Decision{
			Allowed:   e.failOpen,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   time.Now().Add(e.policy.Window()),
			Key:       key,
		}
	}

	remaining := limit - int(res.Count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   res.Allowed,
		Limit:     limit,
		Remaining: remaining,
		Count:     res.Count,
		ResetAt:   res.ResetAt,
		Key:       key,
	}
}

// counterKey builds the composite counter key. Identity, tier, category and
// method each get their own counter so quotas never bleed across axes.
func counterKey(c Classification) string {
	return fmt.Sprintf("rl:%s:%s:%s:%s", c.Identity, c.Tier, c.Category, c.Method)
}
