package steps

import (
	"fmt"
	"sync"

	"github.com/shaiso/Planflow/internal/domain"
)

// Definition — запись каталога: шаг, его конвейер и порядковый номер.
type Definition struct {
	// Name — имя шага (уникально в пределах конвейера).
	Name string

	// Label — человекочитаемое название для журнала и панели.
	Label string

	// Pipeline — конвейер, которому принадлежит шаг.
	Pipeline domain.PipelineKind

	// Stage — порядковый номер шага в каталоге (с 1).
	Stage int

	// Handler — тело шага.
	Handler Handler
}

// Registry — упорядоченный каталог шагов по конвейерам.
//
// Порядок регистрации определяет порядок выполнения. Потокобезопасен,
// но состав шагов фиксируется на этапе сборки приложения.
type Registry struct {
	mu     sync.RWMutex
	byKind map[domain.PipelineKind][]Definition
	index  map[domain.PipelineKind]map[string]int
}

// NewRegistry создаёт пустой каталог.
func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[domain.PipelineKind][]Definition),
		index:  make(map[domain.PipelineKind]map[string]int),
	}
}

// Register добавляет шаг в конец каталога его конвейера.
// Порядковый номер присваивается автоматически.
func (r *Registry) Register(pipeline domain.PipelineKind, label string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := r.byKind[pipeline]
	def := Definition{
		Name:     handler.Name(),
		Label:    label,
		Pipeline: pipeline,
		Stage:    len(defs) + 1,
		Handler:  handler,
	}
	r.byKind[pipeline] = append(defs, def)

	if r.index[pipeline] == nil {
		r.index[pipeline] = make(map[string]int)
	}
	r.index[pipeline][def.Name] = def.Stage - 1
}

// Steps возвращает полный упорядоченный каталог конвейера.
func (r *Registry) Steps(pipeline domain.PipelineKind) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := r.byKind[pipeline]
	out := make([]Definition, len(defs))
	copy(out, defs)
	return out
}

// Select возвращает подмножество каталога, сохраняя порядок каталога
// независимо от порядка names. Пустой names означает «все шаги».
// Неизвестное имя — ошибка валидации до начала выполнения.
func (r *Registry) Select(pipeline domain.PipelineKind, names []string) ([]Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := r.byKind[pipeline]
	if len(names) == 0 {
		out := make([]Definition, len(defs))
		copy(out, defs)
		return out, nil
	}

	idx := r.index[pipeline]
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w: %q (pipeline %s)", ErrUnknownStep, name, pipeline)
		}
		wanted[name] = true
	}

	out := make([]Definition, 0, len(wanted))
	for _, def := range defs {
		if wanted[def.Name] {
			out = append(out, def)
		}
	}
	return out, nil
}

// Has проверяет наличие шага в каталоге конвейера.
func (r *Registry) Has(pipeline domain.PipelineKind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[pipeline][name]
	return ok
}

// Count возвращает количество шагов в каталоге конвейера.
func (r *Registry) Count(pipeline domain.PipelineKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKind[pipeline])
}

// DefaultRegistry создаёт каталог со стандартным составом шагов:
// 4 пакетных шага захвата и 7 под-этапов тратамента.
func DefaultRegistry(feed PlanFeed) *Registry {
	r := NewRegistry()

	// Конвейер захвата.
	r.Register(domain.PipelineCapture, "Captura de Plano", NewCaptureStep(feed))
	r.Register(domain.PipelineCapture, "Situação Especial", NewSituationFilterStep("special_situation", "SIT ESPECIAL"))
	r.Register(domain.PipelineCapture, "Liquidação Anterior", NewSituationFilterStep("prior_settlement", "LIQUIDADO", "RESCINDIDO"))
	r.Register(domain.PipelineCapture, "Guia GRDE", NewSituationFilterStep("grde_issued", "GRDE EMITIDA"))

	// Конвейер тратамента.
	r.Register(domain.PipelineTreatment, "Aproveitamento de Recolhimentos", NewPaymentReuseStep())
	r.Register(domain.PipelineTreatment, "Substituição — Confissão x Notificação", NewNoticeSubstitutionStep())
	r.Register(domain.PipelineTreatment, "Pesquisa de Guias (PIG)", NewGuideSearchStep())
	r.Register(domain.PipelineTreatment, "Lançamento de Guias (PIG)", NewGuidePostingStep())
	r.Register(domain.PipelineTreatment, "Situação do Plano", NewPlanSituationStep())
	r.Register(domain.PipelineTreatment, "Rescisão", NewRescissionStep())
	r.Register(domain.PipelineTreatment, "Comunicação da Rescisão", NewRescissionNoticeStep())

	return r
}
