package runner

import (
	"context"
	"time"

	"github.com/shaiso/Probe/internal/apiclient"
	"github.com/shaiso/Probe/internal/browser"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/telemetry"
)

// Session — ресурсы одного сценария. Между сценариями не разделяются.
type Session struct {
	// Browser может быть nil: браузерные шаги тогда падают с execution.ErrNoBrowser.
	Browser browser.Driver
	API     *apiclient.Client
}

// Close освобождает ресурсы сессии.
func (s *Session) Close() error {
	if s.Browser != nil {
		return s.Browser.Close()
	}
	return nil
}

// SessionFactory создаёт сессию для очередного сценария.
type SessionFactory func(ctx context.Context) (*Session, error)

// HTTPSessionConfig — параметры HTTPSessions.
type HTTPSessionConfig struct {
	WebBaseURL     string
	PageTimeout    time.Duration
	RequestTimeout time.Duration

	// ResponseTimeout ограничивает ожидание заголовков ответа API.
	ResponseTimeout time.Duration

	InsecureTLS bool
	Viewport    domain.Viewport
	Metrics     *telemetry.Metrics
}

// HTTPSessions возвращает фабрику сессий с browser.HTTPDriver и
// apiclient.Client. Запросы API учитываются в метриках.
func HTTPSessions(cfg HTTPSessionConfig) SessionFactory {
	return func(context.Context) (*Session, error) {
		d, err := browser.NewHTTPDriver(browser.HTTPDriverConfig{
			BaseURL:     cfg.WebBaseURL,
			PageTimeout: cfg.PageTimeout,
			Viewport:    cfg.Viewport,
			InsecureTLS: cfg.InsecureTLS,
		})
		if err != nil {
			return nil, err
		}

		opts := []apiclient.Option{apiclient.WithObserver(cfg.Metrics.ObserveAPI)}
		if cfg.RequestTimeout > 0 {
			opts = append(opts, apiclient.WithTimeout(cfg.RequestTimeout))
		}
		opts = append(opts, apiclient.WithResponseTimeout(cfg.ResponseTimeout))
		if cfg.InsecureTLS {
			opts = append(opts, apiclient.WithInsecureTLS())
		}

		return &Session{
			Browser: d,
			API:     apiclient.New(opts...),
		}, nil
	}
}
