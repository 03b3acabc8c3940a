package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/steps"
)

// StartRequest — тело запроса запуска конвейера.
type StartRequest struct {
	// Steps — имена шагов для прогона. Пусто — полный каталог.
	Steps []string `json:"steps,omitempty"`
}

// StartResponse — подтверждение запуска.
type StartResponse struct {
	Pipeline domain.PipelineKind `json:"pipeline"`
	Steps    []string            `json:"steps,omitempty"`
}

// StepResponse — элемент каталога шагов.
type StepResponse struct {
	Name     string              `json:"name"`
	Label    string              `json:"label"`
	Pipeline domain.PipelineKind `json:"pipeline"`
	Stage    int                 `json:"stage"`
}

// StepFromDefinition конвертирует определение шага в DTO.
func StepFromDefinition(def steps.Definition) StepResponse {
	return StepResponse{
		Name:     def.Name,
		Label:    def.Label,
		Pipeline: def.Pipeline,
		Stage:    def.Stage,
	}
}

// QueueResponse — снимок очереди тратамента.
type QueueResponse struct {
	Length  int     `json:"length"`
	Current *int64  `json:"current,omitempty"`
	Pending []int64 `json:"pending"`
}

// MigrateResponse — результат миграции планов в очередь.
type MigrateResponse struct {
	Enqueued int `json:"enqueued"`
}

// pipelineKind извлекает и валидирует {kind} из пути.
func pipelineKind(r *http.Request) (domain.PipelineKind, bool) {
	kind := domain.PipelineKind(r.PathValue("kind"))
	return kind, kind.Valid()
}

// queryInt читает целочисленный query-параметр с значением по умолчанию.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
