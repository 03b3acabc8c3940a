package steps

import (
	"context"
	"fmt"
	"strings"
)

// Под-этапы тратамента мутируют req.Plan в памяти; фиксация мутаций,
// продвижение etapa_atual и маркер идемпотентности записываются движком
// одной транзакцией после возврата тела.

// PaymentReuseStep — под-этап 1: аппроведение ранее внесённых платежей.
type PaymentReuseStep struct{}

// NewPaymentReuseStep создаёт под-этап 1.
func NewPaymentReuseStep() *PaymentReuseStep { return &PaymentReuseStep{} }

// Name реализует Handler.
func (s *PaymentReuseStep) Name() string { return "payment_reuse" }

// Execute реализует Handler.
func (s *PaymentReuseStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan := req.Plan
	return Success("payments reviewed for %d tax ids, balance %.2f", len(plan.TaxIDs), plan.Balance), nil
}

// NoticeSubstitutionStep — под-этап 2: анализ замены уведомлений
// (конфиссия против фискальной нотификации).
type NoticeSubstitutionStep struct{}

// NewNoticeSubstitutionStep создаёт под-этап 2.
func NewNoticeSubstitutionStep() *NoticeSubstitutionStep { return &NoticeSubstitutionStep{} }

// Name реализует Handler.
func (s *NoticeSubstitutionStep) Name() string { return "notice_substitution" }

// Execute реализует Handler.
func (s *NoticeSubstitutionStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Success("substitution analysis completed for plan %s", req.Plan.Number), nil
}

// GuideSearchStep — под-этап 3: поиск платёжных гий во внешнем реестре.
type GuideSearchStep struct{}

// NewGuideSearchStep создаёт под-этап 3.
func NewGuideSearchStep() *GuideSearchStep { return &GuideSearchStep{} }

// Name реализует Handler.
func (s *GuideSearchStep) Name() string { return "guide_search" }

// Execute реализует Handler.
func (s *GuideSearchStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Success("guide search recorded for plan %s", req.Plan.Number), nil
}

// GuidePostingStep — под-этап 4: проводка найденных гий.
type GuidePostingStep struct{}

// NewGuidePostingStep создаёт под-этап 4.
func NewGuidePostingStep() *GuidePostingStep { return &GuidePostingStep{} }

// Name реализует Handler.
func (s *GuidePostingStep) Name() string { return "guide_posting" }

// Execute реализует Handler.
func (s *GuidePostingStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Success("guides posted for plan %s", req.Plan.Number), nil
}

// PlanSituationStep — под-этап 5: ревалидация ситуации плана.
//
// Единственный под-этап, способный вернуть Discard: если к моменту
// тратамента ситуация плана ушла из "P.RESC" (ликвидация, эмиссия GRDE
// и т.п.), оставшиеся под-этапы пропускаются и план отбраковывается.
type PlanSituationStep struct{}

// NewPlanSituationStep создаёт под-этап 5.
func NewPlanSituationStep() *PlanSituationStep { return &PlanSituationStep{} }

// Name реализует Handler.
func (s *PlanSituationStep) Name() string { return "plan_situation" }

// Execute реализует Handler.
func (s *PlanSituationStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	situation := strings.ToUpper(strings.TrimSpace(req.Plan.CurrentSituation))
	if situation != "" && situation != "P.RESC" && situation != "P. RESC" {
		return Discard(fmt.Sprintf("situation changed to %s during treatment", situation)), nil
	}
	return Success("plan situation revalidated: %s", req.Plan.CurrentSituation), nil
}

// RescissionStep — под-этап 6: оформление рескисии.
type RescissionStep struct{}

// NewRescissionStep создаёт под-этап 6.
func NewRescissionStep() *RescissionStep { return &RescissionStep{} }

// Name реализует Handler.
func (s *RescissionStep) Name() string { return "rescission" }

// Execute реализует Handler.
func (s *RescissionStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan := req.Plan
	plan.PreviousSituation = plan.CurrentSituation
	plan.CurrentSituation = "RESCINDIDO"
	return Success("plan %s updated to RESCINDIDO", plan.Number), nil
}

// RescissionNoticeStep — под-этап 7: коммуникация рескисии работодателю.
type RescissionNoticeStep struct{}

// NewRescissionNoticeStep создаёт под-этап 7.
func NewRescissionNoticeStep() *RescissionNoticeStep { return &RescissionNoticeStep{} }

// Name реализует Handler.
func (s *RescissionNoticeStep) Name() string { return "rescission_notice" }

// Execute реализует Handler.
func (s *RescissionNoticeStep) Execute(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recipient := "registered address"
	if len(req.Plan.TaxIDs) > 0 {
		recipient = req.Plan.TaxIDs[0]
	}
	return Success("rescission notice issued to %s", recipient), nil
}
