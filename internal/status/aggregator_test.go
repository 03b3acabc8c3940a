package status

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/telemetry"
)

// --- Test fixtures ---

type stubCounter struct {
	counts map[domain.PlanStatus]int
	err    error
}

func (s *stubCounter) CountByStatus(context.Context) (map[domain.PlanStatus]int, error) {
	return s.counts, s.err
}

type stubRuns struct {
	runs map[domain.PipelineKind]*domain.Run
	err  error
}

func (s *stubRuns) Get(_ context.Context, kind domain.PipelineKind) (*domain.Run, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.runs[kind], nil
}

type stubQueue struct {
	current *int64
	pending []int64
}

func (s *stubQueue) Snapshot() (*int64, []int64) { return s.current, s.pending }

func (s *stubQueue) Size() int {
	n := len(s.pending)
	if s.current != nil {
		n++
	}
	return n
}

func testRuns() *stubRuns {
	return &stubRuns{runs: map[domain.PipelineKind]*domain.Run{
		domain.PipelineCapture: {
			Pipeline:       domain.PipelineCapture,
			State:          domain.RunStateCompleted,
			SelectedSteps:  4,
			CompletedSteps: 4,
			Processed:      12,
			Discarded:      3,
		},
		domain.PipelineTreatment: {
			Pipeline:  domain.PipelineTreatment,
			State:     domain.RunStatePaused,
			Processed: 5,
			Discarded: 1,
			LastError: "dependency down",
		},
	}}
}

// --- Aggregator Tests ---

func TestAggregator_Summary(t *testing.T) {
	current := int64(42)
	agg := NewAggregator(
		&stubCounter{counts: map[domain.PlanStatus]int{
			domain.PlanStatusPending:   10,
			domain.PlanStatusRescinded: 7,
		}},
		testRuns(),
		&stubQueue{current: &current, pending: []int64{43, 44}},
	)

	sum, err := agg.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if sum.Plans[domain.PlanStatusPending] != 10 || sum.Plans[domain.PlanStatusRescinded] != 7 {
		t.Errorf("unexpected plan counts: %v", sum.Plans)
	}
	if len(sum.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(sum.Runs))
	}

	capture := sum.Runs[domain.PipelineCapture]
	if capture.Progress != 100 {
		t.Errorf("expected 100%% progress, got %d", capture.Progress)
	}
	if capture.Halted {
		t.Error("completed run must not be halted")
	}

	treatment := sum.Runs[domain.PipelineTreatment]
	if !treatment.Halted {
		t.Error("paused run with an error is halted")
	}
	if treatment.LastError != "dependency down" {
		t.Errorf("unexpected last error: %q", treatment.LastError)
	}

	if sum.Queue.Length != 3 {
		t.Errorf("expected queue length 3, got %d", sum.Queue.Length)
	}
	if sum.Queue.Current == nil || *sum.Queue.Current != 42 {
		t.Errorf("unexpected current plan: %v", sum.Queue.Current)
	}
	if len(sum.Queue.Pending) != 2 {
		t.Errorf("unexpected pending: %v", sum.Queue.Pending)
	}
}

func TestAggregator_Summary_TracksPlanGauge(t *testing.T) {
	counter := &stubCounter{counts: map[domain.PlanStatus]int{domain.PlanStatusPending: 4}}
	agg := NewAggregator(counter, testRuns(), &stubQueue{})

	if _, err := agg.Summary(context.Background()); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got := testutil.ToFloat64(telemetry.PlansTotal.WithLabelValues(string(domain.PlanStatusPending))); got != 4 {
		t.Errorf("expected gauge 4, got %v", got)
	}

	// The metric is a snapshot: it must follow the count down as well
	counter.counts = map[domain.PlanStatus]int{domain.PlanStatusPending: 1}
	if _, err := agg.Summary(context.Background()); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got := testutil.ToFloat64(telemetry.PlansTotal.WithLabelValues(string(domain.PlanStatusPending))); got != 1 {
		t.Errorf("expected gauge 1, got %v", got)
	}
}

func TestAggregator_Summary_CountError(t *testing.T) {
	boom := errors.New("db down")
	agg := NewAggregator(&stubCounter{err: boom}, testRuns(), &stubQueue{})

	if _, err := agg.Summary(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped count error, got %v", err)
	}
}

func TestAggregator_Run(t *testing.T) {
	agg := NewAggregator(&stubCounter{}, testRuns(), &stubQueue{})

	sum, err := agg.Run(context.Background(), domain.PipelineTreatment)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Pipeline != domain.PipelineTreatment || sum.State != domain.RunStatePaused {
		t.Errorf("unexpected summary: %+v", sum)
	}

	boom := errors.New("not found")
	agg = NewAggregator(&stubCounter{}, &stubRuns{err: boom}, &stubQueue{})
	if _, err := agg.Run(context.Background(), domain.PipelineCapture); !errors.Is(err, boom) {
		t.Errorf("expected wrapped run error, got %v", err)
	}
}
