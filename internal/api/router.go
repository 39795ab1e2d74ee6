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
		r.Get("/metrics", s.handleMetrics)

		r.Get("/dashboard", s.handleGetDashboard)
		r.Put("/dashboard", s.handleUpdateDashboard)

		r.Get("/thermalprofile", s.handleGetThermalProfile)
		r.Put("/thermalprofile", s.handleUpdateThermalProfile)

		r.Put("/season", s.handleSetSeason)

		r.Get("/monitoring", s.handleGetMonitoring)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/definition", s.handleGetDefinition)
				r.Get("/telemetry/{channel}", s.handleGetTelemetryValue)
				r.Get("/property", s.handleGetPropertyValue)
				r.Put("/property", s.handleSetProperty)
			})
		})

		r.Route("/telemetry", func(r chi.Router) {
			r.Get("/", s.handleListTelemetry)
			r.Post("/channels", s.handleRegisterTelemetry)
		})

		r.Route("/properties", func(r chi.Router) {
			r.Get("/", s.handleListProperties)
			r.Post("/", s.handleRegisterProperty)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/dashboard", s.handleDashboardHistory)
			r.Get("/telemetry", s.handleTelemetryHistory)
		})

		r.Post("/system/reset", s.handleSystemReset)

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
