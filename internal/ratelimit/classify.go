package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"apigate/internal/models"
)

// Classification is the tuple the enforcer needs to pick a quota and build a
// counter key. It is derived once per request and carries no framework types
// beyond what Classify consumed.
type Classification struct {
	Tier     Tier
	Category string
	Role     Role
	Method   string
	Identity string
	Path     string
}

// Classify derives the classification for an inbound request. Tier and
// category are route-mount decisions passed in by the middleware; the role is
// resolved from the authenticated principal in the request context (set by
// the auth middleware), defaulting to standard when absent or unknown.
// Identity is the authenticated key's user when available, else the client IP.
func Classify(r *http.Request, tier Tier, category string) Classification {
	c := Classification{
		Tier:     tier,
		Category: category,
		Role:     RoleStandard,
		Method:   strings.ToUpper(r.Method),
		Path:     r.URL.Path,
	}

	if apiKey, ok := r.Context().Value("api_key").(*models.APIKey); ok && apiKey != nil {
		c.Identity = "user:" + apiKey.UserID
		if tier != TierPublic {
			c.Role = ParseRole(apiKey.Role)
		}
		return c
	}

	c.Identity = "ip:" + getClientIP(r)
	return c
}

// getClientIP extracts the client IP from the request, checking proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
