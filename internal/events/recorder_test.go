package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shaiso/Planflow/internal/domain"
)

// --- Test fixtures ---

type memSink struct {
	events []domain.Event
	err    error
}

func (s *memSink) Append(_ context.Context, ev *domain.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, *ev)
	return nil
}

type stubBroadcaster struct {
	published int
	err       error
}

func (b *stubBroadcaster) PublishEvent(context.Context, *domain.Event) error {
	b.published++
	return b.err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Recorder Tests ---

func TestRecorder_PersistsAndBroadcasts(t *testing.T) {
	sink := &memSink{}
	broadcaster := &stubBroadcaster{}
	rec := NewRecorder(sink, broadcaster, quiet())

	ev := domain.NewEvent(domain.PipelineCapture, domain.EventCompleted, "done")
	if err := rec.Record(context.Background(), ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 persisted event, got %d", len(sink.events))
	}
	if broadcaster.published != 1 {
		t.Errorf("expected 1 broadcast, got %d", broadcaster.published)
	}
}

func TestRecorder_SinkErrorPropagates(t *testing.T) {
	boom := errors.New("insert failed")
	rec := NewRecorder(&memSink{err: boom}, &stubBroadcaster{}, quiet())

	ev := domain.NewEvent(domain.PipelineTreatment, domain.EventFailure, "oops")
	if err := rec.Record(context.Background(), ev); !errors.Is(err, boom) {
		t.Errorf("expected wrapped sink error, got %v", err)
	}
}

func TestRecorder_BroadcastFailureIsNotFatal(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder(sink, &stubBroadcaster{err: errors.New("broker down")}, quiet())

	ev := domain.NewEvent(domain.PipelineCapture, domain.EventPaused, "pause")
	if err := rec.Record(context.Background(), ev); err != nil {
		t.Fatalf("broadcast failure must not fail the record: %v", err)
	}
	if len(sink.events) != 1 {
		t.Errorf("event should still be persisted")
	}
}

func TestRecorder_NilBroadcaster(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder(sink, nil, quiet())

	ev := domain.NewEvent(domain.PipelineTreatment, domain.EventResumed, "resume")
	if err := rec.Record(context.Background(), ev); err != nil {
		t.Fatalf("record without broadcaster: %v", err)
	}
	if len(sink.events) != 1 {
		t.Errorf("expected 1 persisted event, got %d", len(sink.events))
	}
}
