package domain

import "time"

// TreatmentStageCount — количество под-этапов конвейера тратамента.
const TreatmentStageCount = 7

// Plan — бизнес-запись, проходящая через конвейеры захвата и тратамента.
//
// План создаётся шагом захвата, мутируется только исполнительным движком
// и никогда не удаляется физически — терминальный статус финален.
type Plan struct {
	// ID — суррогатный идентификатор в БД.
	ID int64 `json:"id"`

	// Number — уникальный бизнес-номер плана.
	Number string `json:"number"`

	// CompanyName — наименование работодателя.
	CompanyName string `json:"company_name,omitempty"`

	// CurrentSituation — текущий код ситуации (например "P.RESC").
	CurrentSituation string `json:"current_situation,omitempty"`

	// PreviousSituation — предыдущий код ситуации.
	PreviousSituation string `json:"previous_situation,omitempty"`

	// Balance — сальдо задолженности.
	Balance float64 `json:"balance"`

	// DaysOverdue — дней просрочки.
	DaysOverdue int `json:"days_overdue"`

	// TaxIDs — связанные фискальные идентификаторы (CNPJ).
	TaxIDs []string `json:"tax_ids,omitempty"`

	// Status — статус жизненного цикла.
	Status PlanStatus `json:"status"`

	// CurrentStage — индекс последнего завершённого под-этапа тратамента
	// (колонка etapa_atual, 0..TreatmentStageCount). Растёт только в
	// статусе PROCESSING.
	CurrentStage int `json:"etapa_atual"`

	// DiscardReason — причина отбраковки (для DISCARDED).
	DiscardReason string `json:"discard_reason,omitempty"`

	// RescindedAt — момент оформления рескисии (для RESCINDED).
	RescindedAt *time.Time `json:"rescinded_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последней мутации.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal возвращает true, если план в финальном статусе.
func (p *Plan) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// MarkProcessing переводит план в статус PROCESSING.
func (p *Plan) MarkProcessing() {
	p.Status = PlanStatusProcessing
	p.UpdatedAt = time.Now()
}

// AdvanceStage фиксирует завершение под-этапа stage.
// Индекс только растёт: повторная фиксация уже пройденного этапа — no-op.
func (p *Plan) AdvanceStage(stage int) {
	if stage > p.CurrentStage {
		p.CurrentStage = stage
	}
	p.UpdatedAt = time.Now()
}

// MarkRescinded переводит план в терминальный успех RESCINDED.
func (p *Plan) MarkRescinded() {
	now := time.Now()
	p.Status = PlanStatusRescinded
	p.CurrentStage = TreatmentStageCount
	p.RescindedAt = &now
	p.UpdatedAt = now
}

// MarkDiscarded переводит план в терминальный отказ DISCARDED.
// Текущий под-этап не сбрасывается: он фиксирует точку отбраковки.
func (p *Plan) MarkDiscarded(reason string) {
	p.Status = PlanStatusDiscarded
	p.DiscardReason = reason
	p.UpdatedAt = time.Now()
}
