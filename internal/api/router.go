package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/am43-core/internal/dispatch"
)

// Banner is the plain-text answer of the root route.
const Banner = "A-OK AM43 BLE Smart Blinds Drive Service\n\n"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMethodNotAllowed(w, r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/", s.handleBanner)

	// Blind control
	r.Route("/am43", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)

		r.Get("/discovery", s.handleDiscovery)

		r.Route("/{action}", func(r chi.Router) {
			all := s.handleAction(dispatch.TargetAll)
			r.Get("/", all)
			r.Put("/", all)

			group := s.handleAction(dispatch.TargetGroup)
			r.Get("/group/{name}", group)
			r.Put("/group/{name}", group)

			dev := s.handleAction(dispatch.TargetDevice)
			r.Get("/device/{name}", dev)
			r.Put("/device/{name}", dev)
		})
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/devices", s.handleListDevices)
		r.Get("/audit", s.handleListAudit)
		r.Get("/schedules", s.handleListSchedules)
	})

	return r
}

// handleBanner identifies the service.
func (s *Server) handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte(Banner))
}
