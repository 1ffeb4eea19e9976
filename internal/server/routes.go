// Package server wires HTTP handlers into a chi router for the chat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures and returns the application router.
func SetupRoutes(hub *Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(requestMetrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(hub.log))
	r.Use(chimw.Recoverer)

	r.Get("/", HealthHandler)
	r.Get("/health", HealthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/{sessionID}", WebSocketHandler(hub))

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins(hub.cfg.AllowedOrigins),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Post("/register", RegisterHandler(hub))
		r.Delete("/register", UnregisterHandler(hub))
		r.Get("/version", VersionHandler)
	})

	return r
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:8080"}
	}
	return origins
}
