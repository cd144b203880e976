// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, security, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early, before the first request
// - The rate limit policy tables are validated exhaustively at startup: a route that
//   references a (tier, category) pair with no policy entry prevents the service
//   from starting rather than silently bypassing admission control
package models

import (
	"errors"
	"fmt"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Counter store type constants for the rate limiter backend.
const (
	CounterStoreMemory = "memory"
	CounterStoreRedis  = "redis"
	CounterStoreBucket = "bucket"
)

// Rate limiter failure mode constants. FailModeOpen admits requests when the
// counter store is unreachable (with a warning log); FailModeClosed denies them.
const (
	FailModeOpen   = "open"
	FailModeClosed = "closed"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Storage       StorageConfig       `yaml:"storage" json:"storage"`             // Data persistence settings
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Authentication settings
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`       // Admission control
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Monitoring and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing configuration
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

type SecurityConfig struct {
	EnableAuth   bool   `yaml:"enable_auth" json:"enable_auth"`
	BootstrapKey string `yaml:"bootstrap_key" json:"bootstrap_key"`
}

// RateLimitConfig configures the admission-control layer. Quotas are grouped
// into per-tier policy tables; the decay window is global to the policy set.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	DecayMinutes    int           `yaml:"decay_minutes" json:"decay_minutes"`
	AddHeaders      bool          `yaml:"add_headers" json:"add_headers"`
	LogViolations   bool          `yaml:"log_violations" json:"log_violations"`
	FailMode        string        `yaml:"fail_mode" json:"fail_mode"`
	Store           string        `yaml:"store" json:"store"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	Redis           RedisConfig   `yaml:"redis" json:"redis"`
	Policies        PolicyTables  `yaml:"policies" json:"policies"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// MethodLimits maps an HTTP method to its requests-per-window quota.
type MethodLimits map[string]int

// RoleLimits maps a role name (standard, premium, admin) to its method quotas.
type RoleLimits map[string]MethodLimits

// PolicyTables holds the per-tier quota tables. The public and admin tiers
// have no role axis: public traffic is always least-privileged, and the admin
// tier is only reachable by admin principals.
type PolicyTables struct {
	Public        map[string]MethodLimits `yaml:"public" json:"public"`
	Authenticated map[string]RoleLimits   `yaml:"authenticated" json:"authenticated"`
	Admin         map[string]MethodLimits `yaml:"admin" json:"admin"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// The default policy tables follow the tiering rationale of the admission
// layer: public traffic gets the smallest quotas (the auth category is
// deliberately tight to blunt credential stuffing), authenticated standard
// users get moderate quotas, and premium/admin roles get successively larger
// ones. Expensive categories (upload, heavy, reports) are throttled
// independently of cheap reads so one budget cannot exhaust another.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			EnableAuth: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			DecayMinutes:    1,
			AddHeaders:      true,
			LogViolations:   true,
			FailMode:        FailModeOpen,
			Store:           CounterStoreMemory,
			CleanupInterval: 5 * time.Minute,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
			Policies: DefaultPolicyTables(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "apigate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

// DefaultPolicyTables returns the built-in quota tables covering every
// (tier, category, method) combination the route table declares.
func DefaultPolicyTables() PolicyTables {
	return PolicyTables{
		Public: map[string]MethodLimits{
			"auth":    {"POST": 5},
			"general": {"GET": 60},
		},
		Authenticated: map[string]RoleLimits{
			"general": {
				"standard": {"GET": 60, "PUT": 30},
				"premium":  {"GET": 120, "PUT": 60},
				"admin":    {"GET": 240, "PUT": 120},
			},
			"search": {
				"standard": {"GET": 30},
				"premium":  {"GET": 90},
				"admin":    {"GET": 180},
			},
			"upload": {
				"standard": {"POST": 10},
				"premium":  {"POST": 30},
				"admin":    {"POST": 60},
			},
			"heavy": {
				"standard": {"POST": 5},
				"premium":  {"POST": 15},
				"admin":    {"POST": 30},
			},
		},
		Admin: map[string]MethodLimits{
			"users":    {"GET": 120, "POST": 60, "PUT": 60, "DELETE": 30},
			"settings": {"GET": 60, "PUT": 30},
			"logs":     {"GET": 60},
			"reports":  {"GET": 60, "POST": 10},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

func (rlc *RateLimitConfig) Validate() error {
	if !rlc.Enabled {
		return nil
	}

	if rlc.DecayMinutes <= 0 {
		return errors.New("decay_minutes must be positive")
	}

	switch rlc.FailMode {
	case FailModeOpen, FailModeClosed:
	default:
		return fmt.Errorf("invalid fail_mode: %s", rlc.FailMode)
	}

	switch rlc.Store {
	case CounterStoreMemory, CounterStoreBucket:
	case CounterStoreRedis:
		if rlc.Redis.Addr == "" {
			return errors.New("redis address is required for the redis counter store")
		}
	default:
		return fmt.Errorf("invalid counter store type: %s", rlc.Store)
	}

	if rlc.CleanupInterval <= 0 {
		return errors.New("cleanup_interval must be positive")
	}

	return rlc.Policies.Validate()
}

// Validate checks that every configured quota is a positive integer bound to
// a known HTTP method and, for the authenticated tier, a known role. Shape
// errors are configuration errors and abort startup.
func (pt *PolicyTables) Validate() error {
	for category, methods := range pt.Public {
		if err := validateMethodLimits("public", category, methods); err != nil {
			return err
		}
	}

	for category, roles := range pt.Authenticated {
		if len(roles) == 0 {
			return fmt.Errorf("authenticated category %q has no role entries", category)
		}
		for role, methods := range roles {
			if !validRoleName(role) {
				return fmt.Errorf("authenticated category %q references unknown role %q", category, role)
			}
			if err := validateMethodLimits("authenticated", category, methods); err != nil {
				return err
			}
		}
	}

	for category, methods := range pt.Admin {
		if err := validateMethodLimits("admin", category, methods); err != nil {
			return err
		}
	}

	return nil
}

func validateMethodLimits(tier, category string, methods MethodLimits) error {
	if len(methods) == 0 {
		return fmt.Errorf("%s category %q has no method entries", tier, category)
	}
	for method, limit := range methods {
		if !validMethodName(method) {
			return fmt.Errorf("%s category %q references unknown HTTP method %q", tier, category, method)
		}
		if limit <= 0 {
			return fmt.Errorf("%s category %q method %s: limit must be positive, got %d", tier, category, method, limit)
		}
	}
	return nil
}

func validMethodName(method string) bool {
	switch method {
	case "GET", "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

func validRoleName(role string) bool {
	switch role {
	case "standard", "premium", "admin":
		return true
	}
	return false
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "stdout", "stderr":
	case "file":
		if lc.FilePath == "" {
			return errors.New("file path is required when output is file")
		}
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}
	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}
	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}
	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if oc.Tracing.Enabled {
		switch oc.Tracing.Exporter {
		case "stdout":
		case "otlp":
			if oc.Tracing.OTLPEndpoint == "" {
				return errors.New("OTLP endpoint is required for the otlp exporter")
			}
		default:
			return fmt.Errorf("unsupported trace exporter: %s", oc.Tracing.Exporter)
		}
		if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
			return errors.New("trace sample rate must be between 0 and 1")
		}
	}
	return nil
}
