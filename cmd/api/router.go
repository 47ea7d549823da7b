package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/credtrack/credtrack-api/pkg/middleware"
)

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	registerAPIRoutes(mux, deps)
	registerUtilityRoutes(mux, deps)

	publicPaths := []string{
		"/v1/auth/register",
		"/v1/auth/login",
		"/v1/pricing",
		"/health",
		"/ready",
		"/metrics",
	}

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID("X-Request-ID"),
		middleware.Recovery(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.Auth(deps.AuthService, publicPaths...),
		middleware.EntitlementSession(deps.Sessions),
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		chain = append([]func(http.Handler) http.Handler{middleware.RateLimit(limiter)}, chain...)
	}

	handler := middleware.Chain(mux, chain...)

	// Enable CORS for browser clients (local frontend)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept-Encoding",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		AllowCredentials: true,
	})

	return corsHandler.Handler(handler)
}

// registerAPIRoutes registers all versioned API routes
func registerAPIRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Auth
	mux.HandleFunc("POST /v1/auth/register", deps.AuthHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", deps.AuthHandler.Login)

	// Entitlements and pricing
	mux.HandleFunc("GET /v1/entitlements", deps.EntitlementHandler.Snapshot)
	mux.HandleFunc("POST /v1/entitlements/refresh", deps.EntitlementHandler.Refresh)
	mux.HandleFunc("GET /v1/entitlements/gate", deps.EntitlementHandler.Gate)
	mux.HandleFunc("GET /v1/pricing", deps.EntitlementHandler.Pricing)

	// Roster
	mux.HandleFunc("POST /v1/doctors", deps.RosterHandler.AddDoctor)
	mux.HandleFunc("GET /v1/doctors", deps.RosterHandler.ListDoctors)
	mux.HandleFunc("DELETE /v1/doctors/{id}", deps.RosterHandler.RemoveDoctor)
	mux.HandleFunc("POST /v1/licenses", deps.RosterHandler.AddLicense)
	mux.HandleFunc("GET /v1/licenses", deps.RosterHandler.ListLicenses)
	mux.HandleFunc("POST /v1/credits", deps.RosterHandler.LogCredit)
	mux.HandleFunc("GET /v1/licenses/{id}/credits", deps.RosterHandler.ListCredits)
	mux.HandleFunc("GET /v1/compliance/summary", deps.RosterHandler.Summary)

	// Assistant
	mux.HandleFunc("POST /v1/assistant/sessions", deps.AssistantHandler.StartChat)
	mux.HandleFunc("GET /v1/assistant/sessions", deps.AssistantHandler.Sessions)
	mux.HandleFunc("POST /v1/assistant/sessions/{id}/messages", deps.AssistantHandler.ContinueChat)
	mux.HandleFunc("GET /v1/assistant/sessions/{id}/messages", deps.AssistantHandler.Messages)
	mux.HandleFunc("DELETE /v1/assistant/sessions/{id}", deps.AssistantHandler.EndSession)

	deps.Logger.Info("API routes configured")
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	deps.Logger.Info("registered health check", "path", "/health")

	// Readiness check endpoint
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	// Metrics endpoint (Prometheus)
	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
