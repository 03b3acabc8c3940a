package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/engine"
	"github.com/shaiso/Planflow/internal/repo"
	"github.com/shaiso/Planflow/internal/status"
	"github.com/shaiso/Planflow/internal/steps"
)

// --- Test fixtures ---

type fakeController struct {
	startErr   error
	pauseErr   error
	resumeErr  error
	migrateErr error
	migrated   int
	current    *int64
	pending    []int64

	startedKind  domain.PipelineKind
	startedSteps []string
}

func (f *fakeController) Start(_ context.Context, kind domain.PipelineKind, names []string) error {
	f.startedKind = kind
	f.startedSteps = names
	return f.startErr
}

func (f *fakeController) Pause(context.Context, domain.PipelineKind) error  { return f.pauseErr }
func (f *fakeController) Resume(context.Context, domain.PipelineKind) error { return f.resumeErr }

func (f *fakeController) MigrateToQueue(context.Context) (int, error) {
	return f.migrated, f.migrateErr
}

func (f *fakeController) QueueSnapshot() (*int64, []int64) { return f.current, f.pending }

type fakeStatuses struct {
	summary *status.Summary
	run     *status.RunSummary
	err     error
}

func (f *fakeStatuses) Summary(context.Context) (*status.Summary, error) {
	return f.summary, f.err
}

func (f *fakeStatuses) Run(_ context.Context, kind domain.PipelineKind) (*status.RunSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}

type fakeEvents struct {
	filter repo.EventFilter
	events []domain.Event
}

func (f *fakeEvents) Query(_ context.Context, filter repo.EventFilter) ([]domain.Event, error) {
	f.filter = filter
	return f.events, nil
}

type fakePlans struct {
	plan   *domain.Plan
	plans  []domain.Plan
	getErr error
	filter repo.PlanFilter
}

func (f *fakePlans) Get(context.Context, int64) (*domain.Plan, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.plan, nil
}

func (f *fakePlans) List(_ context.Context, filter repo.PlanFilter) ([]domain.Plan, error) {
	f.filter = filter
	return f.plans, nil
}

type testServer struct {
	mux        *http.ServeMux
	controller *fakeController
	statuses   *fakeStatuses
	events     *fakeEvents
	plans      *fakePlans
}

func newTestServer() *testServer {
	controller := &fakeController{}
	statuses := &fakeStatuses{
		run: &status.RunSummary{Pipeline: domain.PipelineCapture, State: domain.RunStateIdle},
	}
	events := &fakeEvents{}
	plans := &fakePlans{}

	registry := steps.NewRegistry()
	registry.Register(domain.PipelineCapture, "Захват", noop{"capture"})
	registry.Register(domain.PipelineCapture, "Фильтр", noop{"filter"})

	h := NewHandler(Config{
		Engine:   controller,
		Statuses: statuses,
		Events:   events,
		Plans:    plans,
		Registry: registry,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &testServer{mux: mux, controller: controller, statuses: statuses, events: events, plans: plans}
}

type noop struct{ name string }

func (n noop) Name() string { return n.name }
func (n noop) Execute(context.Context, *steps.Request) (*steps.Result, error) {
	return steps.Success("ok"), nil
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Pipeline Endpoint Tests ---

func TestStartPipeline_Accepted(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/capture/start", StartRequest{Steps: []string{"capture"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if s.controller.startedKind != domain.PipelineCapture {
		t.Errorf("expected capture start, got %s", s.controller.startedKind)
	}
	if len(s.controller.startedSteps) != 1 || s.controller.startedSteps[0] != "capture" {
		t.Errorf("unexpected steps: %v", s.controller.startedSteps)
	}
}

func TestStartPipeline_EmptyBody(t *testing.T) {
	s := newTestServer()

	// No body means the full catalog
	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/treatment/start", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if s.controller.startedSteps != nil {
		t.Errorf("expected nil steps, got %v", s.controller.startedSteps)
	}
}

func TestStartPipeline_UnknownKind(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/bogus/start", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestStartPipeline_UnknownStep(t *testing.T) {
	s := newTestServer()
	s.controller.startErr = fmt.Errorf("%w: %q", steps.ErrUnknownStep, "nope")

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/capture/start", StartRequest{Steps: []string{"nope"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartPipeline_TreatmentSubsetRejected(t *testing.T) {
	s := newTestServer()
	s.controller.startErr = fmt.Errorf("%w: treatment always runs the full catalog", engine.ErrFixedCatalog)

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/treatment/start", StartRequest{Steps: []string{"payment_reuse"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestStartPipeline_AlreadyRunning(t *testing.T) {
	s := newTestServer()
	s.controller.startErr = fmt.Errorf("%w: capture is RUNNING", repo.ErrInvalidState)

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/capture/start", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error.Code != ErrCodeInvalidState {
		t.Errorf("unexpected error code: %s", resp.Error.Code)
	}
}

func TestPausePipeline_ReturnsRunSummary(t *testing.T) {
	s := newTestServer()
	s.statuses.run = &status.RunSummary{Pipeline: domain.PipelineCapture, State: domain.RunStatePaused}

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/capture/pause", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data status.RunSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.State != domain.RunStatePaused {
		t.Errorf("expected PAUSED, got %s", resp.Data.State)
	}
}

func TestResumePipeline_InvalidState(t *testing.T) {
	s := newTestServer()
	s.controller.resumeErr = fmt.Errorf("%w: capture is IDLE", repo.ErrInvalidState)

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/capture/resume", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestListSteps(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/api/v1/pipelines/capture/steps", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data  []StepResponse `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("expected 2 steps, got %+v", resp)
	}
	if resp.Data[0].Name != "capture" || resp.Data[0].Stage != 1 {
		t.Errorf("unexpected first step: %+v", resp.Data[0])
	}
}

// --- Queue Endpoint Tests ---

func TestGetQueue(t *testing.T) {
	s := newTestServer()
	current := int64(7)
	s.controller.current = &current
	s.controller.pending = []int64{8, 9}

	rec := s.do(t, http.MethodGet, "/api/v1/queue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data QueueResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Length != 3 {
		t.Errorf("expected length 3, got %d", resp.Data.Length)
	}
	if resp.Data.Current == nil || *resp.Data.Current != 7 {
		t.Errorf("unexpected current: %v", resp.Data.Current)
	}
}

func TestMigrateQueue(t *testing.T) {
	s := newTestServer()
	s.controller.migrated = 5

	rec := s.do(t, http.MethodPost, "/api/v1/queue/migrate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data MigrateResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Enqueued != 5 {
		t.Errorf("expected 5 enqueued, got %d", resp.Data.Enqueued)
	}
}

// --- Plan Endpoint Tests ---

func TestGetPlan_NotFound(t *testing.T) {
	s := newTestServer()
	s.plans.getErr = repo.ErrNotFound

	rec := s.do(t, http.MethodGet, "/api/v1/plans/42", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPlan_BadID(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/api/v1/plans/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListPlans_Filter(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/api/v1/plans?status=PENDING&limit=10&offset=20", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if s.plans.filter.Status != domain.PlanStatusPending {
		t.Errorf("unexpected status filter: %s", s.plans.filter.Status)
	}
	if s.plans.filter.Limit != 10 || s.plans.filter.Offset != 20 {
		t.Errorf("unexpected paging: %+v", s.plans.filter)
	}
}

// --- Event Endpoint Tests ---

func TestListEvents_Filter(t *testing.T) {
	s := newTestServer()

	since := time.Now().UTC().Truncate(time.Second)
	path := "/api/v1/events?context=treatment&plan_id=3&since=" + since.Format(time.RFC3339)
	rec := s.do(t, http.MethodGet, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	f := s.events.filter
	if f.Context != domain.PipelineTreatment {
		t.Errorf("unexpected context filter: %s", f.Context)
	}
	if f.PlanID == nil || *f.PlanID != 3 {
		t.Errorf("unexpected plan filter: %v", f.PlanID)
	}
	if f.Since == nil || !f.Since.Equal(since) {
		t.Errorf("unexpected since filter: %v", f.Since)
	}
	if f.Limit != 100 {
		t.Errorf("expected default limit 100, got %d", f.Limit)
	}
}

func TestListEvents_BadSince(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/api/v1/events?since=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListEvents_BadKind(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/api/v1/events?context=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
