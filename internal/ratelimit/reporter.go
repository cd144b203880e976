package ratelimit

import (
	"context"
	"log/slog"
	"strings"
)

// Violation describes one denied request for structured logging.
type Violation struct {
	Identity string
	Tier     Tier
	Category string
	Role     Role
	Method   string
	Path     string
	Count    int64
	Limit    int
}

// Reporter receives exactly one Violation per denial. Implementations must
// never block the HTTP response; reporting failures are swallowed.
type Reporter interface {
	Report(ctx context.Context, v Violation)
}

// SlogReporter logs violations through a structured logger. Client IPs are
// anonymized before logging; user identities are stable IDs and pass through.
type SlogReporter struct {
	logger *slog.Logger
}

// NewSlogReporter creates a reporter writing to the given logger, or the
// default logger when nil.
func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogReporter{logger: logger}
}

// Report emits one warning record for the denial.
func (r *SlogReporter) Report(ctx context.Context, v Violation) {
	r.logger.WarnContext(ctx, "Rate limit exceeded",
		"identity", AnonymizeIdentity(v.Identity),
		"tier", v.Tier,
		"category", v.Category,
		"role", v.Role,
		"method", v.Method,
		"path", v.Path,
		"count", v.Count,
		"limit", v.Limit,
	)
}

// AnonymizeIdentity masks the host part of ip-derived identities: the last
// octet for IPv4, everything past the second group for IPv6. Masking (rather
// than hashing) keeps subnets grep-able in logs without storing full client
// addresses. Non-IP identities are returned unchanged.
func AnonymizeIdentity(identity string) string {
	ip, ok := strings.CutPrefix(identity, "ip:")
	if !ok {
		return identity
	}

	if strings.Contains(ip, ":") {
		groups := strings.Split(ip, ":")
		if len(groups) > 2 {
			return "ip:" + groups[0] + ":" + groups[1] + "::x"
		}
		return "ip:" + ip
	}

	if octets := strings.Split(ip, "."); len(octets) == 4 {
		return "ip:" + strings.Join(octets[:3], ".") + ".x"
	}
	return identity
}
