package domain

import "time"

// Run — прогон одного конвейера.
//
// На каждый PipelineKind существует ровно одна запись; инвариант
// «не более одного активного прогона на конвейер» обеспечивается
// атомарным compare-and-set перехода состояния в хранилище.
type Run struct {
	// Pipeline — вид конвейера (первичный ключ).
	Pipeline PipelineKind `json:"pipeline"`

	// State — текущее состояние прогона.
	State RunState `json:"state"`

	// SelectedSteps — сколько шагов выбрано для прогона
	// (для captura; 0 — прогона ещё не было).
	SelectedSteps int `json:"selected_steps"`

	// CompletedSteps — сколько шагов уже зафиксировано.
	CompletedSteps int `json:"completed_steps"`

	// Processed — обработано единиц (планов — для тратамента).
	Processed int `json:"processed"`

	// Discarded — отбраковано единиц за прогон.
	Discarded int `json:"discarded"`

	// LastError — последняя ошибка прогона. Непустое значение при
	// состоянии PAUSED означает остановку по ошибке, а не паузу оператора.
	LastError string `json:"last_error,omitempty"`

	// StartedAt — время старта текущего прогона.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// UpdatedAt — время последнего перехода или обновления прогресса.
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressPercent возвращает прогресс прогона в процентах.
func (r *Run) ProgressPercent() int {
	if r.SelectedSteps <= 0 {
		return 0
	}
	if r.CompletedSteps >= r.SelectedSteps {
		return 100
	}
	return r.CompletedSteps * 100 / r.SelectedSteps
}

// Halted возвращает true, если прогон остановлен по ошибке
// (в отличие от паузы оператора).
func (r *Run) Halted() bool {
	return r.State == RunStatePaused && r.LastError != ""
}

// transitions — таблица допустимых переходов состояния прогона.
var transitions = map[RunState][]RunState{
	RunStateIdle:          {RunStateRunning},
	RunStateRunning:       {RunStatePaused, RunStateAwaitingQueue, RunStateCompleted, RunStateIdle},
	RunStatePaused:        {RunStateRunning, RunStateIdle},
	RunStateAwaitingQueue: {RunStateRunning, RunStatePaused, RunStateIdle},
	RunStateCompleted:     {RunStateRunning},
}

// CanTransition проверяет допустимость перехода from → to.
func CanTransition(from, to RunState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
