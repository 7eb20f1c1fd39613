package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Response — ответ на тестовый запрос.
type Response struct {
	Status     int
	StatusText string
	Headers    http.Header

	// Body — распарсенный JSON (map[string]any, []any, ...) или строка.
	Body any

	// Raw — тело ответа как есть.
	Raw []byte

	// URL — итоговый URL после редиректов.
	URL string

	// Duration — время от отправки запроса до чтения тела.
	Duration time.Duration
}

// IsJSON возвращает true, если тело распарсено как JSON.
func (r *Response) IsJSON() bool {
	switch r.Body.(type) {
	case string, nil:
		return false
	default:
		return true
	}
}

// Get извлекает значение по gjson-пути ("id", "address.geo.lat", "0.email").
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Raw, path)
}

// Root возвращает тело целиком как gjson.Result.
func (r *Response) Root() gjson.Result {
	return gjson.ParseBytes(r.Raw)
}

// Header возвращает значение заголовка.
func (r *Response) Header(name string) string {
	return r.Headers.Get(name)
}

// Outputs возвращает ответ в виде map для шаблонов и отчётов.
func (r *Response) Outputs() map[string]any {
	headers := make(map[string]string, len(r.Headers))
	for key := range r.Headers {
		headers[key] = r.Headers.Get(key)
	}
	return map[string]any{
		"status_code": r.Status,
		"headers":     headers,
		"body":        r.Body,
		"duration_ms": r.Duration.Milliseconds(),
	}
}

// String реализует fmt.Stringer для логов.
func (r *Response) String() string {
	return fmt.Sprintf("%d %s (%s)", r.Status, r.URL, r.Duration)
}

// parseResponse читает и парсит HTTP ответ.
func parseResponse(resp *http.Response) (*Response, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var body any
	if strings.Contains(resp.Header.Get("Content-Type"), "json") && len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			// Невалидный JSON отдаём строкой
			body = string(raw)
		}
	} else {
		body = string(raw)
	}

	out := &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    resp.Header.Clone(),
		Body:       body,
		Raw:        raw,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.URL = resp.Request.URL.String()
	}
	return out, nil
}
