package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/repo"
)

// GetQueue возвращает снимок очереди тратамента.
// GET /api/v1/queue
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	current, pending := h.engine.QueueSnapshot()

	length := len(pending)
	if current != nil {
		length++
	}

	Success(w, QueueResponse{
		Length:  length,
		Current: current,
		Pending: pending,
	})
}

// MigrateQueue переводит подходящие планы в очередь тратамента.
// POST /api/v1/queue/migrate
func (h *Handler) MigrateQueue(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.MigrateToQueue(r.Context())
	if HandleEngineError(w, h.logger, err, "") {
		return
	}
	Success(w, MigrateResponse{Enqueued: n})
}

// ListPlans возвращает планы с фильтрацией.
// GET /api/v1/plans?status=...&limit=...&offset=...
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	filter := repo.PlanFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.PlanStatus(status)
	}

	plans, err := h.plans.List(r.Context(), filter)
	if HandleEngineError(w, h.logger, err, "") {
		return
	}
	List(w, plans, len(plans))
}

// GetPlan возвращает план по ID.
// GET /api/v1/plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		BadRequest(w, "invalid plan id")
		return
	}

	plan, err := h.plans.Get(r.Context(), id)
	if HandleEngineError(w, h.logger, err, "plan not found") {
		return
	}
	Success(w, plan)
}

// ListEvents возвращает события аудита с фильтрацией.
// GET /api/v1/events?context=...&plan_id=...&since=...&limit=...&offset=...
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := repo.EventFilter{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}

	if kindStr := r.URL.Query().Get("context"); kindStr != "" {
		kind := domain.PipelineKind(kindStr)
		if !kind.Valid() {
			BadRequest(w, "unknown pipeline kind")
			return
		}
		filter.Context = kind
	}

	if planIDStr := r.URL.Query().Get("plan_id"); planIDStr != "" {
		planID, err := strconv.ParseInt(planIDStr, 10, 64)
		if err != nil {
			BadRequest(w, "invalid plan_id")
			return
		}
		filter.PlanID = &planID
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			BadRequest(w, "invalid since, expected RFC3339")
			return
		}
		filter.Since = &since
	}

	events, err := h.events.Query(r.Context(), filter)
	if HandleEngineError(w, h.logger, err, "") {
		return
	}
	List(w, events, len(events))
}
