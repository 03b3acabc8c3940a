package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunStatusResponse — состояние прогона из API.
type RunStatusResponse struct {
	Pipeline       string `json:"pipeline"`
	State          string `json:"state"`
	SelectedSteps  int    `json:"selected_steps"`
	CompletedSteps int    `json:"completed_steps"`
	Processed      int    `json:"processed"`
	Discarded      int    `json:"discarded"`
	Progress       int    `json:"progress"`
	LastError      string `json:"last_error,omitempty"`
	Halted         bool   `json:"halted"`
}

// StepResponse — элемент каталога шагов из API.
type StepResponse struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Pipeline string `json:"pipeline"`
	Stage    int    `json:"stage"`
}

// PlanResponse — план из API.
type PlanResponse struct {
	ID               int64    `json:"id"`
	Number           string   `json:"number"`
	CompanyName      string   `json:"company_name"`
	CurrentSituation string   `json:"current_situation"`
	Balance          float64  `json:"balance"`
	DaysOverdue      int      `json:"days_overdue"`
	TaxIDs           []string `json:"tax_ids,omitempty"`
	Status           string   `json:"status"`
	CurrentStage     int      `json:"etapa_atual"`
	DiscardReason    string   `json:"discard_reason,omitempty"`
	RescindedAt      string   `json:"rescinded_at,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

// EventResponse — событие аудита из API.
type EventResponse struct {
	ID         int64  `json:"id"`
	Context    string `json:"context"`
	PlanID     *int64 `json:"plan_id,omitempty"`
	PlanNumber string `json:"plan_number,omitempty"`
	Step       string `json:"step,omitempty"`
	Stage      int    `json:"stage,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	CreatedAt  string `json:"created_at"`
}

// QueueResponse — снимок очереди из API.
type QueueResponse struct {
	Length  int     `json:"length"`
	Current *int64  `json:"current,omitempty"`
	Pending []int64 `json:"pending"`
}

// MigrateResponse — результат миграции в очередь.
type MigrateResponse struct {
	Enqueued int `json:"enqueued"`
}

// SummaryResponse — сводка по системе из API.
type SummaryResponse struct {
	Plans map[string]int               `json:"plans"`
	Runs  map[string]RunStatusResponse `json:"runs"`
	Queue QueueResponse                `json:"queue"`
}

// --- Request types ---

// StartRequest — запуск конвейера.
type StartRequest struct {
	Steps []string `json:"steps,omitempty"`
}

// ListEventsOpts — параметры фильтрации событий.
type ListEventsOpts struct {
	Context string
	PlanID  int64
	Limit   int
}

// ListPlansOpts — параметры фильтрации планов.
type ListPlansOpts struct {
	Status string
	Limit  int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Planflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipelines ---

// StartPipeline запускает прогон конвейера с выбранными шагами.
func (c *Client) StartPipeline(kind string, steps []string) error {
	return c.post("/api/v1/pipelines/"+kind+"/start", StartRequest{Steps: steps}, nil)
}

// PausePipeline приостанавливает прогон.
func (c *Client) PausePipeline(kind string) (*RunStatusResponse, error) {
	var status RunStatusResponse
	err := c.post("/api/v1/pipelines/"+kind+"/pause", nil, &status)
	return &status, err
}

// ResumePipeline возобновляет прогон.
func (c *Client) ResumePipeline(kind string) (*RunStatusResponse, error) {
	var status RunStatusResponse
	err := c.post("/api/v1/pipelines/"+kind+"/resume", nil, &status)
	return &status, err
}

// PipelineStatus возвращает состояние прогона.
func (c *Client) PipelineStatus(kind string) (*RunStatusResponse, error) {
	var status RunStatusResponse
	err := c.get("/api/v1/pipelines/"+kind+"/status", &status)
	return &status, err
}

// ListSteps возвращает каталог шагов конвейера.
func (c *Client) ListSteps(kind string) ([]StepResponse, error) {
	var steps []StepResponse
	err := c.list("/api/v1/pipelines/"+kind+"/steps", nil, &steps)
	return steps, err
}

// --- Queue ---

// GetQueue возвращает снимок очереди тратамента.
func (c *Client) GetQueue() (*QueueResponse, error) {
	var queue QueueResponse
	err := c.get("/api/v1/queue", &queue)
	return &queue, err
}

// MigrateQueue переводит подходящие планы в очередь.
func (c *Client) MigrateQueue() (*MigrateResponse, error) {
	var result MigrateResponse
	err := c.post("/api/v1/queue/migrate", nil, &result)
	return &result, err
}

// --- Plans ---

// ListPlans возвращает планы с фильтрацией.
func (c *Client) ListPlans(opts ListPlansOpts) ([]PlanResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var plans []PlanResponse
	err := c.list("/api/v1/plans", params, &plans)
	return plans, err
}

// GetPlan возвращает план по ID.
func (c *Client) GetPlan(id int64) (*PlanResponse, error) {
	var plan PlanResponse
	err := c.get("/api/v1/plans/"+strconv.FormatInt(id, 10), &plan)
	return &plan, err
}

// --- Events ---

// ListEvents возвращает события аудита с фильтрацией.
func (c *Client) ListEvents(opts ListEventsOpts) ([]EventResponse, error) {
	params := url.Values{}
	if opts.Context != "" {
		params.Set("context", opts.Context)
	}
	if opts.PlanID > 0 {
		params.Set("plan_id", strconv.FormatInt(opts.PlanID, 10))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var events []EventResponse
	err := c.list("/api/v1/events", params, &events)
	return events, err
}

// --- Status ---

// Summary возвращает сводку по всей системе.
func (c *Client) Summary() (*SummaryResponse, error) {
	var summary SummaryResponse
	err := c.get("/api/v1/status", &summary)
	return &summary, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
