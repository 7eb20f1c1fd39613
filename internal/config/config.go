// Package config загружает конфигурацию запуска.
//
// Порядок источников: значения по умолчанию → YAML файл → переменные
// окружения PROBE_* → флаги CLI. Флаги применяет вызывающий код, после
// чего вызывает Validate.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Probe/internal/domain"
)

// EnvPrefix — префикс переменных окружения.
const EnvPrefix = "PROBE_"

// DefaultBaseURL — адрес probe-demo при локальном запуске.
const DefaultBaseURL = "http://localhost:3000"

// ErrInvalidConfig — конфигурация не прошла валидацию.
var ErrInvalidConfig = errors.New("invalid config")

// Timeouts — таймауты запуска.
type Timeouts struct {
	// Command — ожидание DOM условий (Eventually).
	Command time.Duration `yaml:"command" env:"COMMAND" validate:"gt=0"`

	// Request — таймаут HTTP запроса API клиента.
	Request time.Duration `yaml:"request" env:"REQUEST" validate:"gt=0"`

	// Response — ожидание заголовков ответа после отправки запроса.
	Response time.Duration `yaml:"response" env:"RESPONSE" validate:"gt=0"`

	// PageLoad — загрузка страницы браузером.
	PageLoad time.Duration `yaml:"page_load" env:"PAGE_LOAD" validate:"gt=0"`

	// Step — верхняя граница выполнения одного шага.
	Step time.Duration `yaml:"step" env:"STEP" validate:"gt=0"`
}

// Config — конфигурация запуска.
type Config struct {
	// BaseURL — общая база для API и страниц. APIBaseURL и WebBaseURL
	// переопределяют её, только если заданы явно.
	BaseURL    string `yaml:"base_url" env:"BASE_URL" validate:"required,url"`
	APIBaseURL string `yaml:"api_base_url" env:"API_BASE_URL" validate:"omitempty,url"`
	WebBaseURL string `yaml:"web_base_url" env:"WEB_BASE_URL" validate:"omitempty,url"`

	Timeouts Timeouts        `yaml:"timeouts" envPrefix:"TIMEOUT_"`
	Viewport domain.Viewport `yaml:"viewport" envPrefix:"VIEWPORT_"`

	Features []string `yaml:"features" env:"FEATURES" envSeparator:"," validate:"min=1,dive,required"`
	Fixtures string   `yaml:"fixtures" env:"FIXTURES" validate:"required"`
	Tags     string   `yaml:"tags" env:"TAGS"`

	Parallel int  `yaml:"parallel" env:"PARALLEL" validate:"min=1,max=64"`
	Headless bool `yaml:"headless" env:"HEADLESS"`
	Bail     bool `yaml:"bail" env:"BAIL"`

	// InsecureTLS отключает проверку сертификатов API клиента и браузера
	// (стенды с самоподписанными сертификатами).
	InsecureTLS bool `yaml:"insecure_tls" env:"INSECURE_TLS"`

	// Strict — неопределённый шаг завершает весь запуск на этапе проверки.
	Strict bool `yaml:"strict" env:"STRICT"`

	// Хранение и события (опционально).
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" validate:"omitempty,startswith=postgres"`
	RabbitMQURL string `yaml:"rabbitmq_url" env:"RABBITMQ_URL" validate:"omitempty,startswith=amqp"`

	// Schedule — cron выражение для probe-scheduler.
	Schedule string `yaml:"schedule" env:"SCHEDULE"`

	// MetricsAddr — адрес /metrics для долгоживущих процессов.
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeouts: Timeouts{
			Command:  10 * time.Second,
			Request:  10 * time.Second,
			Response: 10 * time.Second,
			PageLoad: 30 * time.Second,
			Step:     60 * time.Second,
		},
		Viewport:    domain.ViewportDefault,
		Features:    []string{"features"},
		Fixtures:    "fixtures/users.json",
		Parallel:    1,
		Headless:    true,
		MetricsAddr: ":9090",
	}
}

// Load читает конфигурацию: defaults → файл path (если задан) → env.
// Валидация не выполняется: после Load могут быть применены флаги.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		// Пустой файл — не ошибка
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// API возвращает базовый URL API: APIBaseURL или BaseURL.
func (c *Config) API() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	return c.BaseURL
}

// Web возвращает базовый URL страниц: WebBaseURL или BaseURL.
func (c *Config) Web() string {
	if c.WebBaseURL != "" {
		return c.WebBaseURL
	}
	return c.BaseURL
}
