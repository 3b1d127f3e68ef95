// internal/api/server.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"kaya-concierge/internal/common/config"
	"kaya-concierge/internal/common/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route behind the shared middleware stack.
func NewRouter(h *Handlers, log logger.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(RequestLogger(log))
	r.Use(Metrics)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/sessions/{id}/turns", h.Turn)
		r.Put("/sessions/{id}/status", h.UpdateStatus)
		r.Get("/leads", h.ListLeads)
		r.Get("/leads/{id}", h.GetLead)
		r.Get("/export", h.ExportCSV)
	})

	return r
}

// NewServer builds the HTTP server with the configured timeouts.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,
		IdleTimeout:  60 * time.Second,
	}
}
