package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"apigate/internal/models"
	"apigate/internal/ratelimit"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// Limiter produces the admission middleware for one (tier, category) mount
// point. A nil Limiter disables admission control entirely.
type Limiter func(tier ratelimit.Tier, category string) mux.MiddlewareFunc

// RouteScopes declares every (tier, category, method) combination the route
// table below mounts. The policy is validated against this manifest at
// startup, so a route added here without a matching quota entry fails fast
// instead of being denied (or worse, admitted) at request time.
func RouteScopes() []ratelimit.RouteScope {
	return []ratelimit.RouteScope{
		{Tier: ratelimit.TierPublic, Category: "auth", Methods: []string{"POST"}},
		{Tier: ratelimit.TierPublic, Category: "general", Methods: []string{"GET"}},
		{Tier: ratelimit.TierAuthenticated, Category: "general", Methods: []string{"GET", "PUT"}},
		{Tier: ratelimit.TierAuthenticated, Category: "search", Methods: []string{"GET"}},
		{Tier: ratelimit.TierAuthenticated, Category: "upload", Methods: []string{"POST"}},
		{Tier: ratelimit.TierAuthenticated, Category: "heavy", Methods: []string{"POST"}},
		{Tier: ratelimit.TierAdmin, Category: "users", Methods: []string{"GET", "POST", "PUT", "DELETE"}},
		{Tier: ratelimit.TierAdmin, Category: "settings", Methods: []string{"GET", "PUT"}},
		{Tier: ratelimit.TierAdmin, Category: "logs", Methods: []string{"GET"}},
		{Tier: ratelimit.TierAdmin, Category: "reports", Methods: []string{"GET", "POST"}},
	}
}

// SetupRoutes configures the HTTP routes for the API. Authentication runs
// before admission control on every protected mount so quotas are picked by
// the caller's real role.
func SetupRoutes(handlers *Handlers, config *models.Config, limiter Limiter, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	limit := limiter
	if limit == nil {
		limit = func(ratelimit.Tier, string) mux.MiddlewareFunc {
			return func(next http.Handler) http.Handler { return next }
		}
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	// Root health endpoint stays unthrottled for container probes.
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	publicGeneral := api.PathPrefix("").Subrouter()
	publicGeneral.Use(limit(ratelimit.TierPublic, "general"))
	publicGeneral.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	publicGeneral.HandleFunc("/version", handlers.VersionInfo).Methods("GET")

	publicAuth := api.PathPrefix("/auth").Subrouter()
	publicAuth.Use(limit(ratelimit.TierPublic, "auth"))
	publicAuth.HandleFunc("/register", handlers.Register).Methods("POST")
	publicAuth.HandleFunc("/login", handlers.Login).Methods("POST")

	// EnableAuth exists for local development only; with it off, protected
	// routes are open and callers are classified by IP with the standard role.
	authn := func(sub *mux.Router) {
		if config.Security.EnableAuth {
			sub.Use(authMiddleware(handlers.storage))
		}
	}

	profile := api.PathPrefix("/users/me").Subrouter()
	authn(profile)
	profile.Use(limit(ratelimit.TierAuthenticated, "general"))
	profile.HandleFunc("", handlers.GetProfile).Methods("GET")
	profile.HandleFunc("", handlers.UpdateProfile).Methods("PUT")

	search := api.PathPrefix("/search").Subrouter()
	authn(search)
	search.Use(limit(ratelimit.TierAuthenticated, "search"))
	search.HandleFunc("", handlers.Search).Methods("GET")

	uploads := api.PathPrefix("/uploads").Subrouter()
	authn(uploads)
	uploads.Use(limit(ratelimit.TierAuthenticated, "upload"))
	uploads.HandleFunc("", handlers.Upload).Methods("POST")

	export := api.PathPrefix("/export").Subrouter()
	authn(export)
	export.Use(limit(ratelimit.TierAuthenticated, "heavy"))
	export.HandleFunc("", handlers.Export).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	authn(admin)
	if config.Security.EnableAuth {
		admin.Use(requireAdmin)
	}

	adminUsers := admin.PathPrefix("/users").Subrouter()
	adminUsers.Use(limit(ratelimit.TierAdmin, "users"))
	adminUsers.HandleFunc("", handlers.AdminListUsers).Methods("GET")
	adminUsers.HandleFunc("", handlers.AdminCreateUser).Methods("POST")
	adminUsers.HandleFunc("/{user_id}", handlers.AdminGetUser).Methods("GET")
	adminUsers.HandleFunc("/{user_id}", handlers.AdminUpdateUser).Methods("PUT")
	adminUsers.HandleFunc("/{user_id}", handlers.AdminDeleteUser).Methods("DELETE")

	adminSettings := admin.PathPrefix("/settings").Subrouter()
	adminSettings.Use(limit(ratelimit.TierAdmin, "settings"))
	adminSettings.HandleFunc("", handlers.AdminGetSettings).Methods("GET")
	adminSettings.HandleFunc("", handlers.AdminUpdateSettings).Methods("PUT")

	adminLogs := admin.PathPrefix("/logs").Subrouter()
	adminLogs.Use(limit(ratelimit.TierAdmin, "logs"))
	adminLogs.HandleFunc("", handlers.AdminGetAuditLog).Methods("GET")

	adminReports := admin.PathPrefix("/reports").Subrouter()
	adminReports.Use(limit(ratelimit.TierAdmin, "reports"))
	adminReports.HandleFunc("", handlers.AdminListReports).Methods("GET")
	adminReports.HandleFunc("", handlers.AdminGenerateReport).Methods("POST")

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, models.ErrorCodeInvalidRequest, "Method not allowed")
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, models.ErrorCodeNotFound, "Not found")
	})

	return router
}
