package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"apigate/internal/api"
	"apigate/internal/config"
	"apigate/internal/logger"
	"apigate/internal/models"
	"apigate/internal/observability"
	"apigate/internal/ratelimit"
	"apigate/internal/storage"
	"apigate/internal/users"
	"apigate/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := seedBootstrapAdmin(context.Background(), store, cfg); err != nil {
		slog.Error("Failed to seed bootstrap admin", "error", err)
		os.Exit(1)
	}

	userService := users.NewService(store)
	handlers := api.NewHandlers(userService, store)

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Build the admission layer. The policy is validated against the route
	// manifest before the server binds a port: an incomplete quota table is a
	// deployment error, not something to discover one 429 at a time.
	var limiter api.Limiter
	if cfg.RateLimit.Enabled {
		window := time.Duration(cfg.RateLimit.DecayMinutes) * time.Minute
		policy, err := ratelimit.NewPolicy(cfg.RateLimit.Policies, window)
		if err != nil {
			slog.Error("Failed to build rate limit policy", "error", err)
			os.Exit(1)
		}
		if err := policy.Validate(api.RouteScopes()); err != nil {
			slog.Error("Rate limit policy is incomplete", "error", err)
			os.Exit(1)
		}

		counterStore, err := newCounterStore(cfg)
		if err != nil {
			slog.Error("Failed to initialize counter store", "error", err)
			os.Exit(1)
		}
		defer counterStore.Close()

		activeStore := counterStore
		if cfg.Metrics.Enabled {
			instrumented, err := observability.NewInstrumentedCounterStore(counterStore)
			if err != nil {
				slog.Error("Failed to instrument counter store", "error", err)
				os.Exit(1)
			}
			activeStore = instrumented
		}

		enforcer := ratelimit.NewEnforcer(policy, activeStore, cfg.RateLimit.FailMode == models.FailModeOpen)

		var reporter ratelimit.Reporter
		if cfg.RateLimit.LogViolations {
			reporter = ratelimit.NewSlogReporter(log)
		}

		limiter = func(tier ratelimit.Tier, category string) mux.MiddlewareFunc {
			return ratelimit.Middleware(enforcer, reporter, tier, category, cfg.RateLimit.AddHeaders)
		}
	}

	router := api.SetupRoutes(handlers, cfg, limiter, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// newCounterStore creates the configured rate limit counter backend.
func newCounterStore(cfg *models.Config) (ratelimit.CounterStore, error) {
	switch cfg.RateLimit.Store {
	case models.CounterStoreMemory:
		return ratelimit.NewMemoryStore(cfg.RateLimit.CleanupInterval), nil
	case models.CounterStoreRedis:
		return ratelimit.NewRedisStore(cfg.RateLimit.Redis)
	case models.CounterStoreBucket:
		return ratelimit.NewBucketStore(cfg.RateLimit.CleanupInterval), nil
	default:
		return nil, fmt.Errorf("unsupported counter store: %s", cfg.RateLimit.Store)
	}
}

// seedBootstrapAdmin provisions an admin account and API key from
// Security.BootstrapKey so a fresh deployment has a way into the admin
// surface. Idempotent: it is a no-op when the key is empty or already stored.
func seedBootstrapAdmin(ctx context.Context, store storage.Storage, cfg *models.Config) error {
	raw := cfg.Security.BootstrapKey
	if raw == "" {
		return nil
	}

	hash := models.HashAPIKey(raw)
	if _, err := store.GetAPIKeyByHash(ctx, hash); err == nil {
		// Already seeded - idempotent.
		return nil
	}

	admin, err := store.GetUserByEmail(ctx, "admin@localhost")
	if errors.Is(err, storage.ErrNotFound) {
		// The bootstrap account has no usable password; access is via the key.
		pwHash, err := bcrypt.GenerateFromPassword([]byte(models.HashAPIKey(raw)), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash bootstrap password: %w", err)
		}
		admin = models.NewUser("admin@localhost", "Bootstrap Admin", string(pwHash))
		admin.Role = models.RoleAdmin
		if err := store.CreateUser(ctx, admin); err != nil {
			return fmt.Errorf("create bootstrap admin: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}

	key := models.NewAPIKey(models.NewKeyID(), admin.ID, "bootstrap", raw, models.RoleAdmin)
	if err := store.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("seed bootstrap key: %w", err)
	}
	slog.Info("Bootstrap admin key seeded", "id", key.ID, "prefix", key.Prefix)
	return nil
}
