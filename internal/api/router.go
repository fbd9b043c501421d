package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Auth state machine
		r.Route("/auth", func(r chi.Router) {
			r.Get("/state", s.handleAuthState)
			r.Post("/login", s.handleLogin)
			r.Post("/two-factor", s.handleTwoFactor)
			r.Post("/logout", s.handleLogout)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/recover", s.handleRecover)
			r.Post("/reset-form", s.handleResetForm)
			r.Post("/validate", s.handleValidate)
		})

		// Route access decisions
		r.Route("/access", func(r chi.Router) {
			r.Get("/check", s.handleAccessCheck)
			r.Get("/breadcrumbs", s.handleBreadcrumbs)
			r.Get("/permissions", s.handlePermissions)
		})

		// State stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
