package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shaiso/Planflow/internal/domain"
)

// Output управляет форматированием вывода CLI: таблицы для оператора,
// JSON для скриптов. Форматирование доменных сущностей (планы, очередь,
// прогоны) собрано здесь, чтобы команды не дублировали колонки.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Plans выводит список планов одной строкой на план.
func (o *Output) Plans(plans []PlanResponse) {
	headers := []string{"ID", "NUMBER", "COMPANY", "SITUATION", "STATUS", "STAGE", "BALANCE"}
	rows := make([][]string, len(plans))
	for i, p := range plans {
		rows[i] = []string{
			strconv.FormatInt(p.ID, 10),
			p.Number,
			p.CompanyName,
			p.CurrentSituation,
			p.Status,
			formatStage(p.CurrentStage),
			formatMoney(p.Balance),
		}
	}
	o.Print(headers, rows, plans)
}

// Plan выводит карточку одного плана.
func (o *Output) Plan(p *PlanResponse) {
	rows := [][]string{
		{"ID", strconv.FormatInt(p.ID, 10)},
		{"Number", p.Number},
		{"Company", p.CompanyName},
		{"Situation", p.CurrentSituation},
		{"Status", p.Status},
		{"Stage", formatStage(p.CurrentStage)},
		{"Balance", formatMoney(p.Balance)},
		{"Days overdue", strconv.Itoa(p.DaysOverdue)},
		{"Discard reason", p.DiscardReason},
		{"Rescinded at", p.RescindedAt},
		{"Created at", p.CreatedAt},
	}
	o.Print([]string{"FIELD", "VALUE"}, rows, p)
}

// Queue выводит снимок очереди тратамента; обрабатываемый сейчас план
// помечается ролью current.
func (o *Output) Queue(q *QueueResponse) {
	headers := []string{"POSITION", "PLAN_ID", "ROLE"}
	var rows [][]string
	pos := 1
	if q.Current != nil {
		rows = append(rows, []string{strconv.Itoa(pos), strconv.FormatInt(*q.Current, 10), "current"})
		pos++
	}
	for _, id := range q.Pending {
		rows = append(rows, []string{strconv.Itoa(pos), strconv.FormatInt(id, 10), "pending"})
		pos++
	}
	o.Print(headers, rows, q)
	o.Success("Queue length: " + strconv.Itoa(q.Length))
}

// RunStatus выводит состояние прогона; остановка по ошибке (не пауза
// оператора) помечается префиксом HALTED.
func (o *Output) RunStatus(status *RunStatusResponse) {
	headers := []string{"PIPELINE", "STATE", "PROGRESS", "PROCESSED", "DISCARDED", "ERROR"}
	errMsg := status.LastError
	if status.Halted {
		errMsg = "HALTED: " + errMsg
	}
	rows := [][]string{{
		status.Pipeline,
		status.State,
		strconv.Itoa(status.Progress) + "%",
		strconv.Itoa(status.Processed),
		strconv.Itoa(status.Discarded),
		errMsg,
	}}
	o.Print(headers, rows, status)
}

// formatStage показывает позицию плана в каталоге тратамента как "n/7".
func formatStage(stage int) string {
	return fmt.Sprintf("%d/%d", stage, domain.TreatmentStageCount)
}

// formatMoney форматирует денежное сальдо.
func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
