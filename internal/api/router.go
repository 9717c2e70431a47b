package api

import (
	"net/http"

	"ece-placement-service/internal/api/handlers"
	"ece-placement-service/internal/platform/metrics"
	"ece-placement-service/internal/ports"
	"ece-placement-service/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(repo ports.TractRepository, runs ports.RunStore, optimizer *services.Optimizer) http.Handler {
	tractHandler := &handlers.TractHandler{Repo: repo}
	placementHandler := &handlers.PlacementHandler{
		Repo:      repo,
		Runs:      runs,
		Optimizer: optimizer,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware)

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/tracts", tractHandler.List)
	r.Post("/placements", placementHandler.Create)

	return r
}
