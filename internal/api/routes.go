package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Pipelines
	mux.Handle("POST /api/v1/pipelines/{kind}/start", chain(http.HandlerFunc(h.StartPipeline)))
	mux.Handle("POST /api/v1/pipelines/{kind}/pause", chain(http.HandlerFunc(h.PausePipeline)))
	mux.Handle("POST /api/v1/pipelines/{kind}/resume", chain(http.HandlerFunc(h.ResumePipeline)))
	mux.Handle("GET /api/v1/pipelines/{kind}/status", chain(http.HandlerFunc(h.PipelineStatus)))
	mux.Handle("GET /api/v1/pipelines/{kind}/steps", chain(http.HandlerFunc(h.ListSteps)))

	// Queue
	mux.Handle("GET /api/v1/queue", chain(http.HandlerFunc(h.GetQueue)))
	mux.Handle("POST /api/v1/queue/migrate", chain(http.HandlerFunc(h.MigrateQueue)))

	// Plans
	mux.Handle("GET /api/v1/plans", chain(http.HandlerFunc(h.ListPlans)))
	mux.Handle("GET /api/v1/plans/{id}", chain(http.HandlerFunc(h.GetPlan)))

	// Events
	mux.Handle("GET /api/v1/events", chain(http.HandlerFunc(h.ListEvents)))

	// Status
	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.GetSummary)))
}
