/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. Auth:       Bearer-token verification (API routes only)

ROUTE GROUPS:
  /api/me/*        Caller's own views
  /api/dashboard   Landing view
  /api/requests/*  Request lifecycle
  /health          Liveness probe, no auth

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/me/summary", h.GetSummary)
		r.Get("/dashboard", h.GetDashboard)

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.CreateRequest)
			r.Put("/{id}", h.EditRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
			r.Post("/{id}/decision", h.DecideRequest)
		})
	})

	// Health check (no auth)
	r.Get("/health", h.Health)

	return r
}
