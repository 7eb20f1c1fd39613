// Package apiclient — HTTP клиент для тестовых запросов.
//
// Клиент никогда не возвращает ошибку из-за статуса ответа: 4xx/5xx —
// это данные (Response.Status), которые проверяют шаги. Ошибка
// возвращается только при сбое транспорта (ErrNetwork) или таймауте
// (expect.ErrTimeout).
package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/Probe/internal/expect"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 10 * 1024 * 1024 // 10 MB
)

// Ошибки клиента.
var (
	// ErrNetwork — сбой транспорта: DNS, отказ в соединении, обрыв.
	ErrNetwork = errors.New("network failure")

	// ErrInvalidRequest — запрос не удалось построить.
	ErrInvalidRequest = errors.New("invalid request")
)

// Observer получает сведения о каждом выполненном запросе (метрики).
type Observer func(method string, status int, duration time.Duration)

// Client выполняет HTTP запросы относительно базового URL.
type Client struct {
	baseURL         string
	timeout         time.Duration
	headers         map[string]string
	responseTimeout time.Duration
	followRedirects bool
	insecureTLS     bool
	observer        Observer
	httpClient      *http.Client
}

// Option настраивает Client.
type Option func(*Client)

// WithBaseURL задаёт базовый URL для относительных путей.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithTimeout задаёт таймаут запроса по умолчанию.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithResponseTimeout ограничивает ожидание заголовков ответа после
// отправки запроса. Истечение — expect.ErrTimeout.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.responseTimeout = d
		}
	}
}

// WithHeader добавляет заголовок ко всем запросам.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithoutRedirects отключает следование редиректам.
func WithoutRedirects() Option {
	return func(c *Client) { c.followRedirects = false }
}

// WithInsecureTLS отключает проверку сертификатов.
func WithInsecureTLS() Option {
	return func(c *Client) { c.insecureTLS = true }
}

// WithObserver регистрирует наблюдателя запросов.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New создаёт Client.
func New(opts ...Option) *Client {
	c := &Client{
		timeout:         defaultTimeout,
		headers:         make(map[string]string),
		followRedirects: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = c.buildClient()
	return c
}

// BaseURL возвращает базовый URL клиента.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request — описание запроса.
type Request struct {
	Method  string
	URL     string // абсолютный или относительный к базовому URL
	Headers map[string]string
	Query   map[string]string

	// Body — string и []byte отправляются как есть, остальное — JSON.
	Body any

	// Timeout переопределяет таймаут клиента, если > 0.
	Timeout time.Duration
}

// Do выполняет запрос.
//
// Статус ответа не влияет на ошибку. Ошибка возвращается при невалидном
// запросе (ErrInvalidRequest), сбое транспорта (ErrNetwork), таймауте
// запроса или ожидания заголовков ответа (expect.ErrTimeout).
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s after %s", expect.ErrTimeout, httpReq.Method, httpReq.URL, timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %s %s: %v", expect.ErrTimeout, httpReq.Method, httpReq.URL, err)
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, httpReq.Method, httpReq.URL, err)
	}
	defer resp.Body.Close()

	out, err := parseResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	out.Duration = time.Since(start)

	if c.observer != nil {
		c.observer(httpReq.Method, out.Status, out.Duration)
	}
	return out, nil
}

// Get — сокращение для GET запроса.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: path})
}

// Resolve строит абсолютный URL из базового и пути.
func (c *Client) Resolve(path string) (string, error) {
	if path == "" {
		path = "/"
	}

	u, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || c.baseURL == "" {
		return u.String(), nil
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path, nil
}

// buildClient создаёт http.Client с нужными настройками.
func (c *Client) buildClient() *http.Client {
	var checkRedirect func(*http.Request, []*http.Request) error
	if !c.followRedirects {
		checkRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = c.responseTimeout
	if c.insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		CheckRedirect: checkRedirect,
		Transport:     transport,
	}
}

// buildRequest создаёт HTTP запрос.
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.Resolve(req.URL)
	if err != nil {
		return nil, fmt.Errorf("resolve url: %w", err)
	}

	if len(req.Query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	headers := make(map[string]string, len(c.headers)+len(req.Headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := serializeBody(req.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if !hasHeader(headers, "Content-Type") {
			headers["Content-Type"] = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
