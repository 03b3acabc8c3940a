package steps

import (
	"context"
	"strings"

	"github.com/shaiso/Planflow/internal/domain"
)

// CaptureStep — пакетный шаг "plan_capture": забирает порцию планов
// из источника и создаёт отсутствующие в базе записи.
//
// Идемпотентность на уровне плана: уже существующий бизнес-номер
// пропускается без мутаций, поэтому частичный сбой пакета не оставляет
// планов в несогласованном статусе.
type CaptureStep struct {
	feed PlanFeed
}

// NewCaptureStep создаёт шаг захвата.
func NewCaptureStep(feed PlanFeed) *CaptureStep {
	return &CaptureStep{feed: feed}
}

// Name реализует Handler.
func (s *CaptureStep) Name() string { return "plan_capture" }

// Execute реализует Handler.
func (s *CaptureStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	rows, err := s.feed.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Recoverable("fetch plan feed: %v", err)
	}

	created := 0
	for i := range rows {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row := &rows[i]
		existing, err := req.Plans.GetByNumber(ctx, row.Number)
		if err != nil {
			return nil, Recoverable("lookup plan %s: %v", row.Number, err)
		}
		if existing != nil {
			continue
		}

		row.Status = domain.PlanStatusPending
		if err := req.Plans.Insert(ctx, row); err != nil {
			return nil, Recoverable("insert plan %s: %v", row.Number, err)
		}
		created++
	}

	res := Success("captured %d new plans (%d rows fetched)", created, len(rows))
	res.Processed = created
	return res, nil
}

// SituationFilterStep — пакетный шаг-фильтр: отбраковывает планы,
// чей текущий код ситуации совпадает с одним из заданных.
//
// Один тип на три шага каталога захвата (situação especial,
// liquidação anterior, GRDE) — различаются именем и списком ситуаций.
type SituationFilterStep struct {
	name       string
	situations []string
}

// NewSituationFilterStep создаёт шаг-фильтр по кодам ситуаций.
func NewSituationFilterStep(name string, situations ...string) *SituationFilterStep {
	upper := make([]string, len(situations))
	for i, s := range situations {
		upper[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return &SituationFilterStep{name: name, situations: upper}
}

// Name реализует Handler.
func (s *SituationFilterStep) Name() string { return s.name }

// Execute реализует Handler.
func (s *SituationFilterStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	pending, err := req.Plans.ListByStatus(ctx, domain.PlanStatusPending)
	if err != nil {
		return nil, Recoverable("list pending plans: %v", err)
	}

	discarded := 0
	for i := range pending {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		plan := &pending[i]
		if !s.matches(plan.CurrentSituation) {
			continue
		}

		plan.MarkDiscarded("Descartado: " + plan.CurrentSituation)
		if err := req.Plans.Update(ctx, plan); err != nil {
			return nil, Recoverable("discard plan %s: %v", plan.Number, err)
		}
		discarded++
	}

	res := Success("checked %d plans, discarded %d", len(pending), discarded)
	res.Processed = len(pending)
	res.Discarded = discarded
	return res, nil
}

func (s *SituationFilterStep) matches(situation string) bool {
	current := strings.ToUpper(strings.TrimSpace(situation))
	for _, want := range s.situations {
		if current == want {
			return true
		}
	}
	return false
}
