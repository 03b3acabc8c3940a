package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// StartPipeline запускает прогон конвейера.
// POST /api/v1/pipelines/{kind}/start
func (h *Handler) StartPipeline(w http.ResponseWriter, r *http.Request) {
	kind, ok := pipelineKind(r)
	if !ok {
		BadRequest(w, "unknown pipeline kind")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.engine.Start(r.Context(), kind, req.Steps); err != nil {
		HandleEngineError(w, h.logger, err, "pipeline not found")
		return
	}

	Accepted(w, StartResponse{Pipeline: kind, Steps: req.Steps})
}

// PausePipeline приостанавливает прогон.
// POST /api/v1/pipelines/{kind}/pause
func (h *Handler) PausePipeline(w http.ResponseWriter, r *http.Request) {
	kind, ok := pipelineKind(r)
	if !ok {
		BadRequest(w, "unknown pipeline kind")
		return
	}

	if err := h.engine.Pause(r.Context(), kind); err != nil {
		HandleEngineError(w, h.logger, err, "pipeline not found")
		return
	}

	status, err := h.statuses.Run(r.Context(), kind)
	if HandleEngineError(w, h.logger, err, "pipeline not found") {
		return
	}
	Success(w, status)
}

// ResumePipeline возобновляет приостановленный прогон.
// POST /api/v1/pipelines/{kind}/resume
func (h *Handler) ResumePipeline(w http.ResponseWriter, r *http.Request) {
	kind, ok := pipelineKind(r)
	if !ok {
		BadRequest(w, "unknown pipeline kind")
		return
	}

	if err := h.engine.Resume(r.Context(), kind); err != nil {
		HandleEngineError(w, h.logger, err, "pipeline not found")
		return
	}

	status, err := h.statuses.Run(r.Context(), kind)
	if HandleEngineError(w, h.logger, err, "pipeline not found") {
		return
	}
	Success(w, status)
}

// PipelineStatus возвращает состояние прогона конвейера.
// GET /api/v1/pipelines/{kind}/status
func (h *Handler) PipelineStatus(w http.ResponseWriter, r *http.Request) {
	kind, ok := pipelineKind(r)
	if !ok {
		BadRequest(w, "unknown pipeline kind")
		return
	}

	status, err := h.statuses.Run(r.Context(), kind)
	if HandleEngineError(w, h.logger, err, "pipeline not found") {
		return
	}
	Success(w, status)
}

// ListSteps возвращает каталог шагов конвейера в порядке выполнения.
// GET /api/v1/pipelines/{kind}/steps
func (h *Handler) ListSteps(w http.ResponseWriter, r *http.Request) {
	kind, ok := pipelineKind(r)
	if !ok {
		BadRequest(w, "unknown pipeline kind")
		return
	}

	defs := h.registry.Steps(kind)
	result := make([]StepResponse, len(defs))
	for i, def := range defs {
		result[i] = StepFromDefinition(def)
	}
	List(w, result, len(result))
}

// GetSummary возвращает сводку по всей системе.
// GET /api/v1/status
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.statuses.Summary(r.Context())
	if HandleEngineError(w, h.logger, err, "") {
		return
	}
	Success(w, summary)
}
