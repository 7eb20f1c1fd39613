package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/shaiso/Probe/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
	mu       sync.Mutex
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo создаёт Output с явными writer'ами.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// ErrWriter возвращает writer для сообщений и логов.
func (o *Output) ErrWriter() io.Writer {
	return o.errW
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

// Progress печатает результат сценария сразу после завершения
// (интерактивный режим). Безопасен для вызова из разных горутин.
func (o *Output) Progress(res *domain.ScenarioResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fmt.Fprintf(o.errW, "%s %s (%s)\n", mark(string(res.Status)), res.Name, res.Location)
	for _, st := range res.Steps {
		fmt.Fprintf(o.errW, "    %s %s%s %s\n", mark(string(st.Status)), st.Keyword, st.Text, round(st.Duration))
	}
}

// Report выводит итог прогона: статус каждого сценария, упавший шаг
// с ожидаемым и фактическим значением, счётчики.
func (o *Output) Report(run *domain.Run) {
	if o.jsonMode {
		o.JSON(run)
		return
	}

	for i := range run.Scenarios {
		sc := &run.Scenarios[i]
		fmt.Fprintf(o.w, "%s %s: %s\n", mark(string(sc.Status)), sc.Feature, sc.Name)

		fs := sc.FailedStep()
		if fs == nil {
			continue
		}
		fmt.Fprintf(o.w, "    step:     %s%s\n", fs.Keyword, fs.Text)
		fmt.Fprintf(o.w, "    at:       %s\n", fs.Location)
		fmt.Fprintf(o.w, "    failure:  %s\n", fs.Failure)
		if fs.Expected != "" || fs.Actual != "" {
			fmt.Fprintf(o.w, "    expected: %s\n", fs.Expected)
			fmt.Fprintf(o.w, "    actual:   %s\n", fs.Actual)
		}
		fmt.Fprintf(o.w, "    error:    %s\n", fs.Error)
	}

	passed, failed, skipped := run.Counts()
	fmt.Fprintf(o.w, "\n%d scenarios (%d passed, %d failed, %d skipped) in %s: %s\n",
		len(run.Scenarios), passed, failed, skipped, round(run.Duration()), run.Status)
	if run.Error != "" {
		fmt.Fprintf(o.w, "run error: %s\n", run.Error)
	}
}

// mark — значок статуса сценария или шага.
func mark(status string) string {
	switch status {
	case string(domain.ScenarioStatusPassed):
		return "✓"
	case string(domain.ScenarioStatusFailed):
		return "✗"
	default:
		return "-"
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
