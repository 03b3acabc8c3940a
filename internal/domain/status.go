package domain

// PipelineKind — вид конвейера.
//
// В системе ровно два конвейера:
//   - capture — пакетная обработка всей коллекции планов
//   - treatment — поштучная обработка планов из очереди
type PipelineKind string

const (
	// PipelineCapture — конвейер захвата (пакетные шаги по всей базе).
	PipelineCapture PipelineKind = "capture"

	// PipelineTreatment — конвейер тратамента (очередь планов, 7 под-этапов).
	PipelineTreatment PipelineKind = "treatment"
)

// Valid возвращает true, если вид конвейера известен системе.
func (k PipelineKind) Valid() bool {
	return k == PipelineCapture || k == PipelineTreatment
}

// PlanStatus — статус жизненного цикла плана.
//
// Жизненный цикл:
//
//	PENDING → PROCESSING → RESCINDED
//	                     ↘ DISCARDED
//	PENDING → DISCARDED (отбраковка на этапе захвата)
//
// Терминальный статус финален: план никогда не удаляется физически
// и не возвращается в обработку.
type PlanStatus string

const (
	// PlanStatusPending — план захвачен и ожидает тратамента.
	PlanStatusPending PlanStatus = "PENDING"

	// PlanStatusProcessing — план в обработке конвейером тратамента.
	PlanStatusProcessing PlanStatus = "PROCESSING"

	// PlanStatusRescinded — терминальный успех: рескисия оформлена.
	PlanStatusRescinded PlanStatus = "RESCINDED"

	// PlanStatusDiscarded — терминальный отказ: план отбракован.
	PlanStatusDiscarded PlanStatus = "DISCARDED"
)

// IsTerminal возвращает true, если статус финальный.
func (s PlanStatus) IsTerminal() bool {
	switch s {
	case PlanStatusRescinded, PlanStatusDiscarded:
		return true
	default:
		return false
	}
}

// Queueable возвращает true, если план с таким статусом может
// находиться в очереди тратамента.
func (s PlanStatus) Queueable() bool {
	return s == PlanStatusPending || s == PlanStatusProcessing
}

// RunState — состояние прогона конвейера.
//
// Переходы:
//
//	IDLE → RUNNING → {PAUSED, AWAITING_QUEUE, COMPLETED}
//	PAUSED → RUNNING | IDLE
//	AWAITING_QUEUE → RUNNING | IDLE
//	COMPLETED → RUNNING (новый запуск)
type RunState string

const (
	// RunStateIdle — конвейер не запускался или был сброшен.
	RunStateIdle RunState = "IDLE"

	// RunStateRunning — прогон выполняется.
	RunStateRunning RunState = "RUNNING"

	// RunStatePaused — прогон приостановлен оператором (или остановлен
	// после исчерпания retry; различается по LastError).
	RunStatePaused RunState = "PAUSED"

	// RunStateAwaitingQueue — очередь пуста, прогон ждёт новых записей.
	// Только для конвейера тратамента.
	RunStateAwaitingQueue RunState = "AWAITING_QUEUE"

	// RunStateCompleted — все выбранные шаги / записи очереди исчерпаны.
	RunStateCompleted RunState = "COMPLETED"
)

// CanStart возвращает true, если из этого состояния допустим start().
func (s RunState) CanStart() bool {
	return s == RunStateIdle || s == RunStateCompleted
}

// Active возвращает true, если прогон занимает конвейер
// (запущен, приостановлен или ждёт очередь).
func (s RunState) Active() bool {
	switch s {
	case RunStateRunning, RunStatePaused, RunStateAwaitingQueue:
		return true
	default:
		return false
	}
}
