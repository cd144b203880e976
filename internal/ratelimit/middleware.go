package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// deniedBody is the exact 429 response contract.
type deniedBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Middleware returns HTTP middleware enforcing the quota for one route group.
// Tier and category are fixed per mount point; the enforcer classifies each
// request for role and identity. When addHeaders is set, X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset are attached to every response.
// Denials short-circuit with a 429 and are reported once through reporter
// (pass nil to disable violation logging).
func Middleware(enforcer *Enforcer, reporter Reporter, tier Tier, category string, addHeaders bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := Classify(r, tier, category)
			decision := enforcer.Enforce(r.Context(), c)

			if addHeaders && decision.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))
			}

			if !decision.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(deniedBody{
					Message: "Too Many Requests",
					Error:   "Rate limit exceeded for this endpoint",
				})

				if reporter != nil {
					reporter.Report(r.Context(), Violation{
						Identity: c.Identity,
						Tier:     c.Tier,
						Category: c.Category,
						Role:     c.Role,
						Method:   c.Method,
						Path:     c.Path,
						Count:    decision.Count,
						Limit:    decision.Limit,
					})
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
