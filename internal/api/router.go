package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tamim-factorynext/Advanced-Timer-V3-sub000/internal/auth"
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

	// Prometheus scrapers expect the conventional path.
	r.Handle("/metrics", newMetricsHandler(s.engine))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/snapshot", s.handleGetSnapshot)
		r.Get("/cards/{id}", s.handleGetCard)
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/history", s.handleConfigHistory)
		r.Get("/schedules", s.handleGetSchedules)

		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(s.requirePermission(auth.PermCommandSubmit)).Post("/commands", s.handleSubmitCommand)
			r.With(s.requirePermission(auth.PermConfigApply)).Put("/config", s.handleApplyConfig)
			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAudit)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if snap := s.engine.Latest(); snap != nil {
		status["seq"] = snap.Seq
		status["run_mode"] = snap.RunMode
		status["paused"] = snap.Paused
	}
	writeJSON(w, http.StatusOK, status)
}
