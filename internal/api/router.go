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

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// Auth endpoints (no auth required)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade authenticates via single-use ticket;
		// browsers cannot set bearer headers on WS connections.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/verify", s.handleVerify)

			// WS ticket requires authentication; the ticket inherits
			// the caller's identity.
			r.Post("/ws/ticket", s.handleWSTicket)

			// Task endpoints
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.handleListTasks)
				r.Post("/", s.handleCreateTask)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetTask)
					r.Put("/", s.handleUpdateTask)
					r.Delete("/", s.handleDeleteTask)
					r.Post("/execute", s.handleExecuteTask)
					r.Get("/executions", s.handleListExecutions)
					r.Get("/executions/{execID}", s.handleGetExecution)
				})
			})

			// Plugin catalogue endpoints
			r.Route("/plugins", func(r chi.Router) {
				r.Get("/", s.handleListPlugins)
				r.Post("/", s.handleCreatePlugin)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetPlugin)
					r.Put("/", s.handleUpdatePlugin)
					r.Delete("/", s.handleDeletePlugin)
				})
			})

			// Analytics endpoints
			r.Route("/analytics", func(r chi.Router) {
				r.Get("/executions", s.handleAnalyticsExecutions)
				r.Get("/success-rate", s.handleAnalyticsSuccessRate)
				r.Get("/overview", s.handleAnalyticsOverview)
			})
		})
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
