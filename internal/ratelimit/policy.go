// Package ratelimit implements role-aware, category-scoped admission control
// for HTTP requests. Every route group is classified by (tier, category); the
// enforcer combines that with the principal's role and the HTTP method to
// look up a fixed-window quota and consult a shared counter store. The
// package includes HTTP middleware that sets standard rate limit response
// headers and emits one structured violation record per denial.
package ratelimit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"apigate/internal/models"
)

// Tier is the visibility/trust classification of a route group.
type Tier string

const (
	TierPublic        Tier = "public"
	TierAuthenticated Tier = "authenticated"
	TierAdmin         Tier = "admin"
)

// Role is the trust level of an authenticated principal.
type Role string

const (
	RoleStandard Role = "standard"
	RolePremium  Role = "premium"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a stored role name to a Role. Unknown or empty values
// resolve to RoleStandard so an authentication bug can never widen a quota.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RolePremium):
		return RolePremium
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleStandard
	}
}

// PolicyKey identifies one quota entry.
type PolicyKey struct {
	Tier     Tier
	Category string
	Role     Role
	Method   string
}

// ErrNoPolicy is returned by LimitFor when no quota is configured for a
// lookup key. At request time the enforcer treats this as deny, never as
// unlimited; at startup Validate turns it into a fatal configuration error.
var ErrNoPolicy = errors.New("no rate limit policy for key")

// Policy is the immutable quota table loaded once at startup.
type Policy struct {
	limits map[PolicyKey]int
	window time.Duration
}

// NewPolicy builds the lookup table from the configured policy tables. The
// tables are assumed shape-valid (models.PolicyTables.Validate ran during
// config load); completeness against the route table is checked separately
// by Validate.
func NewPolicy(tables models.PolicyTables, window time.Duration) (*Policy, error) {
	if window <= 0 {
		return nil, fmt.Errorf("decay window must be positive, got %v", window)
	}

	limits := make(map[PolicyKey]int)

	for category, methods := range tables.Public {
		for method, limit := range methods {
			limits[PolicyKey{TierPublic, category, RoleStandard, method}] = limit
		}
	}

	for category, roles := range tables.Authenticated {
		for role, methods := range roles {
			for method, limit := range methods {
				limits[PolicyKey{TierAuthenticated, category, Role(role), method}] = limit
			}
		}
	}

	for category, methods := range tables.Admin {
		for method, limit := range methods {
			limits[PolicyKey{TierAdmin, category, RoleAdmin, method}] = limit
		}
	}

	if len(limits) == 0 {
		return nil, errors.New("policy tables are empty")
	}

	return &Policy{limits: limits, window: window}, nil
}

// Window returns the global decay window for the policy set.
func (p *Policy) Window() time.Duration {
	return p.window
}

// LimitFor resolves the quota for a (tier, category, role, method) tuple.
// The role axis is normalized per tier: public traffic is always standard
// and the admin tier is keyed by the admin role alone.
func (p *Policy) LimitFor(tier Tier, category string, role Role, method string) (int, error) {
	key := PolicyKey{
		Tier:     tier,
		Category: category,
		Role:     normalizeRole(tier, role),
		Method:   strings.ToUpper(method),
	}
	limit, ok := p.limits[key]
	if !ok {
		return 0, fmt.Errorf("%w: tier=%s category=%s role=%s method=%s",
			ErrNoPolicy, key.Tier, key.Category, key.Role, key.Method)
	}
	return limit, nil
}

// RouteScope declares the admission scope of one route group: the tier and
// category it is mounted under and the HTTP methods it serves. The route
// table exports its scopes so policy completeness can be proven at startup.
type RouteScope struct {
	Tier     Tier
	Category string
	Methods  []string
}

// Validate checks that every (tier, category, method) a route declares
// resolves to a quota for every role valid in that tier. A miss is a
// configuration error that must prevent startup.
func (p *Policy) Validate(routes []RouteScope) error {
	for _, route := range routes {
		for _, method := range route.Methods {
			for _, role := range rolesFor(route.Tier) {
				if _, err := p.LimitFor(route.Tier, route.Category, role, method); err != nil {
					return fmt.Errorf("route table references an unconfigured policy: %w", err)
				}
			}
		}
	}
	return nil
}

// rolesFor returns the roles that can reach a tier. Authenticated routes are
// reachable by every role; public and admin routes have a single effective role.
func rolesFor(tier Tier) []Role {
	if tier == TierAuthenticated {
		return []Role{RoleStandard, RolePremium, RoleAdmin}
	}
	return []Role{normalizeRole(tier, RoleStandard)}
}

func normalizeRole(tier Tier, role Role) Role {
	switch tier {
	case TierPublic:
		return RoleStandard
	case TierAdmin:
		return RoleAdmin
	default:
		return role
	}
}
