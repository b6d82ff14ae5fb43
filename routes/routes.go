package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/govconone/backend/app"
	"github.com/govconone/backend/middleware"
	"github.com/govconone/backend/models"
)

// SetupRoutes configures all application routes and middleware.
// Ordering on protected routes is fixed: authenticate, then meter, then gate.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/google", deps.AuthHandler.HandleGoogleSignIn)
			r.Post("/google/exchange", deps.AuthHandler.HandleGoogleExchange)
			r.Post("/register", deps.AuthHandler.HandleRegister)
			r.Post("/login", deps.AuthHandler.HandleLogin)

			// Session endpoints behind the full pipeline
			r.Group(func(r chi.Router) {
				r.Use(deps.Authenticator.RequireAuth)
				r.Use(deps.UsageTracker.Track)
				r.Post("/refresh", deps.AuthHandler.HandleRefresh)
				r.Get("/me", deps.AuthHandler.HandleMe)
				r.Post("/logout", deps.AuthHandler.HandleLogout)
			})
		})

		// Usage endpoints
		r.Route("/usage", func(r chi.Router) {
			r.Use(deps.Authenticator.RequireAuth)
			r.Use(deps.UsageTracker.Track)

			r.With(deps.Authenticator.RequireRole(models.RoleAdmin)).
				Get("/logs", deps.UsageHandler.HandleListLogs)
			r.With(middleware.RequireTier(models.TierPro, deps.Logger)).
				Get("/summary", deps.UsageHandler.HandleSummary)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
