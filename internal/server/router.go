package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowsentinel/intake/internal/handlers"
	"github.com/flowsentinel/intake/internal/middleware"
)

// NewRouter constructs a ServeMux with the intake API routes registered.
func NewRouter(h *handlers.EventHandler) http.Handler {
	mux := http.NewServeMux()

	// Intake endpoints
	mux.HandleFunc("GET /event/{message}", h.HandleEventPath)
	mux.HandleFunc("POST /event", h.HandleEventPost)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
