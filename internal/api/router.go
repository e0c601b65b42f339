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

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// System statistics
		r.Get("/stats", s.handleSystemStats)
		r.Get("/stats/devices", s.handleDeviceStats)

		// Shared app catalogue
		r.Get("/apps/popular", s.handleListPopularApps)

		// Device registry
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Get("/status", s.handleDeviceStatus)

				// Pairing flow
				r.Route("/pair", func(r chi.Router) {
					r.Post("/start", s.handlePairStart)
					r.Post("/verify", s.handlePairVerify)
					r.Post("/reset", s.handlePairReset)
					r.Get("/status", s.handlePairStatus)
				})

				// Command intake
				r.Post("/command", s.handleCommand)
				r.Post("/navigate", s.handleNavigate)
				r.Post("/media", s.handleMedia)
				r.Post("/volume", s.handleVolume)
				r.Post("/app", s.handleLaunchApp)
				r.Post("/text", s.handleSendText)
				r.Get("/history", s.handleHistory)

				// Per-device apps
				r.Route("/apps", func(r chi.Router) {
					r.Get("/", s.handleListApps)
					r.Post("/", s.handleAddApp)
					r.Post("/bulk", s.handleBulkAddApps)
					r.Delete("/{package}", s.handleRemoveApp)
					r.Post("/{package}/favorite", s.handleSetFavorite)
				})
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
