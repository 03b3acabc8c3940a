package domain

import "time"

// EventStatus — статус события аудита.
type EventStatus string

// Статусы событий.
const (
	EventStart     EventStatus = "START"
	EventSuccess   EventStatus = "SUCCESS"
	EventFailure   EventStatus = "FAILURE"
	EventDiscarded EventStatus = "DISCARDED"
	EventPaused    EventStatus = "PAUSED"
	EventResumed   EventStatus = "RESUMED"
	EventCompleted EventStatus = "COMPLETED"
)

// Event — неизменяемая запись журнала аудита.
//
// Журнал append-only: события никогда не обновляются и не удаляются.
// Каждое логическое применение пары (план, шаг) даёт ровно одно
// терминальное событие — retry не дублируют записи.
type Event struct {
	// ID — суррогатный идентификатор в БД.
	ID int64 `json:"id"`

	// Context — конвейер, породивший событие.
	Context PipelineKind `json:"context"`

	// PlanID — план, к которому относится событие (nil для событий
	// уровня прогона: пауза, возобновление, завершение).
	PlanID *int64 `json:"plan_id,omitempty"`

	// PlanNumber — бизнес-номер плана (дублируется для удобства выборок).
	PlanNumber string `json:"plan_number,omitempty"`

	// Step — имя шага.
	Step string `json:"step,omitempty"`

	// Stage — порядковый номер шага в каталоге.
	Stage int `json:"stage,omitempty"`

	// Status — статус события.
	Status EventStatus `json:"status"`

	// Message — человекочитаемое сообщение.
	Message string `json:"message"`

	// CreatedAt — время события.
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent создаёт событие уровня прогона.
func NewEvent(ctx PipelineKind, status EventStatus, message string) *Event {
	return &Event{
		Context:   ctx,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

// NewStepEvent создаёт событие применения шага к плану.
// plan может быть nil для пакетных шагов захвата.
func NewStepEvent(ctx PipelineKind, plan *Plan, step string, stage int, status EventStatus, message string) *Event {
	ev := &Event{
		Context:   ctx,
		Step:      step,
		Stage:     stage,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if plan != nil {
		id := plan.ID
		ev.PlanID = &id
		ev.PlanNumber = plan.Number
	}
	return ev
}
