package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/Planflow/internal/domain"
)

// --- Test helpers ---

// memPlans — in-memory PlanAccess implementation.
type memPlans struct {
	plans  map[string]*domain.Plan
	nextID int64
}

func newMemPlans() *memPlans {
	return &memPlans{plans: make(map[string]*domain.Plan)}
}

func (m *memPlans) GetByNumber(_ context.Context, number string) (*domain.Plan, error) {
	p, ok := m.plans[number]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPlans) Insert(_ context.Context, plan *domain.Plan) error {
	m.nextID++
	plan.ID = m.nextID
	cp := *plan
	m.plans[plan.Number] = &cp
	return nil
}

func (m *memPlans) Update(_ context.Context, plan *domain.Plan) error {
	cp := *plan
	m.plans[plan.Number] = &cp
	return nil
}

func (m *memPlans) ListByStatus(_ context.Context, status domain.PlanStatus) ([]domain.Plan, error) {
	var out []domain.Plan
	var maxID int64
	for _, p := range m.plans {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	// Stable order by ID
	for id := int64(1); id <= maxID; id++ {
		for _, p := range m.plans {
			if p.ID == id && p.Status == status {
				out = append(out, *p)
			}
		}
	}
	return out, nil
}

type noopHandler struct{ name string }

func (h *noopHandler) Name() string { return h.name }
func (h *noopHandler) Execute(context.Context, *Request) (*Result, error) {
	return Success("ok"), nil
}

// --- Registry Tests ---

func TestRegistry_OrderAndStages(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PipelineCapture, "A", &noopHandler{name: "a"})
	r.Register(domain.PipelineCapture, "B", &noopHandler{name: "b"})
	r.Register(domain.PipelineCapture, "C", &noopHandler{name: "c"})

	defs := r.Steps(domain.PipelineCapture)
	if len(defs) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(defs))
	}
	for i, def := range defs {
		if def.Stage != i+1 {
			t.Errorf("step %s: expected stage %d, got %d", def.Name, i+1, def.Stage)
		}
	}
	if defs[0].Name != "a" || defs[1].Name != "b" || defs[2].Name != "c" {
		t.Errorf("catalog order broken: %v", defs)
	}
}

func TestRegistry_Select_PreservesCatalogOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PipelineCapture, "A", &noopHandler{name: "a"})
	r.Register(domain.PipelineCapture, "B", &noopHandler{name: "b"})
	r.Register(domain.PipelineCapture, "C", &noopHandler{name: "c"})

	// Names come in reverse, execution order must stay catalog order
	defs, err := r.Select(domain.PipelineCapture, []string{"c", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(defs))
	}
	if defs[0].Name != "a" || defs[1].Name != "c" {
		t.Errorf("selection must keep catalog order, got %s, %s", defs[0].Name, defs[1].Name)
	}
}

func TestRegistry_Select_EmptyMeansAll(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PipelineTreatment, "A", &noopHandler{name: "a"})
	r.Register(domain.PipelineTreatment, "B", &noopHandler{name: "b"})

	defs, err := r.Select(domain.PipelineTreatment, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Errorf("expected full catalog, got %d steps", len(defs))
	}
}

func TestRegistry_Select_UnknownStep(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PipelineCapture, "A", &noopHandler{name: "a"})

	_, err := r.Select(domain.PipelineCapture, []string{"a", "nope"})
	if !errors.Is(err, ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
}

func TestDefaultRegistry_Catalog(t *testing.T) {
	r := DefaultRegistry(NewSimulatedFeed(1))

	if got := r.Count(domain.PipelineCapture); got != 4 {
		t.Errorf("expected 4 capture steps, got %d", got)
	}
	if got := r.Count(domain.PipelineTreatment); got != domain.TreatmentStageCount {
		t.Errorf("expected %d treatment steps, got %d", domain.TreatmentStageCount, got)
	}
	if !r.Has(domain.PipelineCapture, "plan_capture") {
		t.Error("plan_capture should be registered")
	}
	if !r.Has(domain.PipelineTreatment, "rescission") {
		t.Error("rescission should be registered")
	}

	// Rescission notice must be the last treatment sub-step
	defs := r.Steps(domain.PipelineTreatment)
	if defs[len(defs)-1].Name != "rescission_notice" {
		t.Errorf("last treatment step should be rescission_notice, got %s", defs[len(defs)-1].Name)
	}
}

// --- Capture Step Tests ---

func TestCaptureStep_SkipsExistingNumbers(t *testing.T) {
	feed := NewSimulatedFeed(42)
	feed.SetBatch(10)
	step := NewCaptureStep(feed)
	store := newMemPlans()

	res, err := step.Execute(context.Background(), &Request{Plans: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 10 {
		t.Errorf("expected 10 created, got %d", res.Processed)
	}
	for _, p := range store.plans {
		if p.Status != domain.PlanStatusPending {
			t.Errorf("captured plan %s should be PENDING, got %s", p.Number, p.Status)
		}
	}

	// Replay the same batch: everything is a duplicate
	replay := NewSimulatedFeed(42)
	replay.SetBatch(10)
	res, err = NewCaptureStep(replay).Execute(context.Background(), &Request{Plans: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 0 {
		t.Errorf("replay should create nothing, got %d", res.Processed)
	}
	if len(store.plans) != 10 {
		t.Errorf("expected 10 plans in store, got %d", len(store.plans))
	}
}

func TestSituationFilterStep_DiscardsMatching(t *testing.T) {
	store := newMemPlans()
	seed := []struct {
		number    string
		situation string
	}{
		{"000100001", "P.RESC"},
		{"000100002", "LIQUIDADO"},
		{"000100003", "rescindido"}, // case-insensitive match
		{"000100004", "P.RESC"},
	}
	for _, s := range seed {
		store.Insert(context.Background(), &domain.Plan{
			Number:           s.number,
			CurrentSituation: s.situation,
			Status:           domain.PlanStatusPending,
		})
	}

	step := NewSituationFilterStep("prior_settlement", "LIQUIDADO", "RESCINDIDO")
	res, err := step.Execute(context.Background(), &Request{Plans: store})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Discarded != 2 {
		t.Errorf("expected 2 discarded, got %d", res.Discarded)
	}
	if p := store.plans["000100002"]; p.Status != domain.PlanStatusDiscarded {
		t.Errorf("LIQUIDADO plan should be discarded, got %s", p.Status)
	}
	if p := store.plans["000100002"]; p.DiscardReason != "Descartado: LIQUIDADO" {
		t.Errorf("unexpected discard reason %q", p.DiscardReason)
	}
	if p := store.plans["000100001"]; p.Status != domain.PlanStatusPending {
		t.Errorf("P.RESC plan should stay PENDING, got %s", p.Status)
	}
}

// --- Treatment Step Tests ---

func TestPlanSituationStep_DiscardsChangedSituation(t *testing.T) {
	step := NewPlanSituationStep()

	plan := &domain.Plan{Number: "000100001", CurrentSituation: "GRDE EMITIDA"}
	res, err := step.Execute(context.Background(), &Request{Plan: plan})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeDiscard {
		t.Errorf("expected discard for changed situation, got %s", res.Outcome)
	}

	plan = &domain.Plan{Number: "000100002", CurrentSituation: "P.RESC"}
	res, err = step.Execute(context.Background(), &Request{Plan: plan})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Errorf("P.RESC should pass revalidation, got %s", res.Outcome)
	}
}

func TestRescissionStep_UpdatesSituation(t *testing.T) {
	step := NewRescissionStep()
	plan := &domain.Plan{Number: "000100001", CurrentSituation: "P.RESC"}

	res, err := step.Execute(context.Background(), &Request{Plan: plan})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeSuccess {
		t.Errorf("expected success, got %s", res.Outcome)
	}
	if plan.CurrentSituation != "RESCINDIDO" {
		t.Errorf("expected RESCINDIDO, got %s", plan.CurrentSituation)
	}
	if plan.PreviousSituation != "P.RESC" {
		t.Errorf("previous situation should be kept, got %s", plan.PreviousSituation)
	}
}

// --- Error Classification Tests ---

func TestIsRecoverable(t *testing.T) {
	if !IsRecoverable(Recoverable("timeout")) {
		t.Error("Recoverable error should be recoverable")
	}
	if IsRecoverable(Fatal("bad config")) {
		t.Error("Fatal error should not be recoverable")
	}
	if IsRecoverable(errors.New("plain")) {
		t.Error("plain error should not be recoverable")
	}
}

// --- Feed Tests ---

func TestSimulatedFeed_Deterministic(t *testing.T) {
	a := NewSimulatedFeed(7)
	a.SetBatch(5)
	b := NewSimulatedFeed(7)
	b.SetBatch(5)

	rowsA, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rowsB, err := b.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rowsA) != 5 || len(rowsB) != 5 {
		t.Fatalf("expected batches of 5, got %d and %d", len(rowsA), len(rowsB))
	}
	for i := range rowsA {
		if rowsA[i].Number != rowsB[i].Number {
			t.Errorf("row %d: same seed should give same numbers (%s vs %s)",
				i, rowsA[i].Number, rowsB[i].Number)
		}
	}
}
