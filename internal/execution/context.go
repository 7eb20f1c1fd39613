// Package execution содержит состояние одного сценария.
//
// Context создаётся раннером для каждого сценария и передаётся во все
// его шаги и команды. Шаги выполняются строго последовательно, поэтому
// Context не синхронизирован. Между сценариями Context не разделяется.
package execution

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Probe/internal/apiclient"
	"github.com/shaiso/Probe/internal/browser"
	"github.com/shaiso/Probe/internal/fixture"
	"github.com/shaiso/Probe/internal/telemetry"
)

const defaultCommandTimeout = 10 * time.Second

// Ошибки контекста.
var (
	// ErrNoResponse — ни один шаг ещё не сохранил HTTP ответ.
	ErrNoResponse = errors.New("no response captured")

	// ErrNoBrowser — сценарию не назначен браузер.
	ErrNoBrowser = errors.New("no browser driver")

	// ErrUnknownAlias — значение с таким именем не сохранялось.
	ErrUnknownAlias = errors.New("unknown alias")
)

// Config — зависимости сценария.
type Config struct {
	ScenarioID uuid.UUID

	// Browser — драйвер сценария (может быть nil для API-only сценариев).
	Browser browser.Driver

	// API — HTTP клиент сценария.
	API *apiclient.Client

	// Fixtures — общие фикстуры, только чтение.
	Fixtures *fixture.Set

	// APIBaseURL — начальный базовый URL для API шагов.
	APIBaseURL string

	// CommandTimeout — таймаут ожиданий DOM (default: 10s).
	CommandTimeout time.Duration

	Logger *slog.Logger
}

// Context — изменяемое состояние сценария.
type Context struct {
	scenarioID     uuid.UUID
	browser        browser.Driver
	api            *apiclient.Client
	fixtures       *fixture.Set
	commandTimeout time.Duration
	logger         *slog.Logger

	initialAPIBaseURL string
	apiBaseURL        string
	response          *apiclient.Response
	aliases           map[string]any
}

// New создаёт Context сценария.
func New(cfg Config) *Context {
	if cfg.ScenarioID == uuid.Nil {
		cfg.ScenarioID = uuid.New()
	}
	if cfg.API == nil {
		cfg.API = apiclient.New()
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	base := strings.TrimRight(cfg.APIBaseURL, "/")
	return &Context{
		scenarioID:        cfg.ScenarioID,
		browser:           cfg.Browser,
		api:               cfg.API,
		fixtures:          cfg.Fixtures,
		commandTimeout:    cfg.CommandTimeout,
		logger:            telemetry.WithScenarioID(cfg.Logger, cfg.ScenarioID.String()),
		initialAPIBaseURL: base,
		apiBaseURL:        base,
		aliases:           make(map[string]any),
	}
}

// ScenarioID возвращает ID сценария.
func (c *Context) ScenarioID() uuid.UUID { return c.scenarioID }

// Browser возвращает драйвер или ErrNoBrowser.
func (c *Context) Browser() (browser.Driver, error) {
	if c.browser == nil {
		return nil, ErrNoBrowser
	}
	return c.browser, nil
}

// API возвращает HTTP клиент сценария.
func (c *Context) API() *apiclient.Client { return c.api }

// Fixtures возвращает фикстуры.
func (c *Context) Fixtures() *fixture.Set { return c.fixtures }

// CommandTimeout возвращает таймаут ожиданий DOM.
func (c *Context) CommandTimeout() time.Duration { return c.commandTimeout }

// Logger возвращает логгер сценария.
func (c *Context) Logger() *slog.Logger { return c.logger }

// APIBaseURL возвращает текущий базовый URL API.
func (c *Context) APIBaseURL() string { return c.apiBaseURL }

// SetAPIBaseURL задаёт базовый URL API для следующих шагов.
func (c *Context) SetAPIBaseURL(base string) {
	c.apiBaseURL = strings.TrimRight(base, "/")
}

// APIURL строит адрес запроса: endpoint дописывается к базовому URL как есть.
func (c *Context) APIURL(endpoint string) (string, error) {
	if u, err := url.Parse(endpoint); err == nil && u.IsAbs() {
		return endpoint, nil
	}
	if c.apiBaseURL != "" {
		return c.apiBaseURL + endpoint, nil
	}
	return c.api.Resolve(endpoint)
}

// SetResponse сохраняет последний HTTP ответ.
func (c *Context) SetResponse(resp *apiclient.Response) {
	c.response = resp
}

// Response возвращает последний сохранённый ответ.
func (c *Context) Response() (*apiclient.Response, error) {
	if c.response == nil {
		return nil, ErrNoResponse
	}
	return c.response, nil
}

// Alias сохраняет значение под именем (аналог .as('name')).
func (c *Context) Alias(name string, v any) {
	c.aliases[name] = v
}

// Aliased возвращает сохранённое значение.
func (c *Context) Aliased(name string) (any, error) {
	v, ok := c.aliases[name]
	if !ok {
		return nil, fmt.Errorf("%w: @%s", ErrUnknownAlias, name)
	}
	return v, nil
}

// Set сохраняет переменную сценария.
func (c *Context) Set(key string, v any) {
	c.aliases[key] = v
}

// Get возвращает переменную сценария.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.aliases[key]
	return v, ok
}

const responseVar = "response"

// Vars возвращает копию переменных для шаблонов.
// Последний ответ API доступен как response (status_code, headers, body,
// duration_ms), если переменная с таким именем не сохранена явно.
func (c *Context) Vars() map[string]any {
	out := make(map[string]any, len(c.aliases)+1)
	if c.response != nil {
		out[responseVar] = c.response.Outputs()
	}
	for k, v := range c.aliases {
		out[k] = v
	}
	return out
}

// Keys возвращает имена сохранённых переменных.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.aliases))
	for k := range c.aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset очищает состояние сценария. Зависимости (браузер, клиент,
// фикстуры) сохраняются.
func (c *Context) Reset() {
	c.response = nil
	c.apiBaseURL = c.initialAPIBaseURL
	c.aliases = make(map[string]any)
}
