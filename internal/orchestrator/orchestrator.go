package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shaiso/Probe/internal/commands"
	"github.com/shaiso/Probe/internal/config"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/engine"
	"github.com/shaiso/Probe/internal/fixture"
	"github.com/shaiso/Probe/internal/runner"
	"github.com/shaiso/Probe/internal/scheduler"
	"github.com/shaiso/Probe/internal/steps"
	"github.com/shaiso/Probe/internal/telemetry"
)

// Orchestrator выполняет прогоны набора по запросам.
//
// Реестр команд, библиотека шагов и фикстуры строятся один раз в New.
// Каждый вызов Run загружает feature файлы заново: между плановыми
// прогонами файлы могут измениться.
type Orchestrator struct {
	cfg      *config.Config
	commands *commands.Registry
	library  *steps.Library
	fixtures *fixture.Set
	sessions runner.SessionFactory

	sink      runner.ResultSink
	publisher runner.EventPublisher
	observer  runner.Observer
	metrics   *telemetry.Metrics

	// Активные прогоны — для отмены при Stop
	active  map[int]context.CancelFunc
	nextID  int
	stopped bool
	mu      sync.Mutex

	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Config — валидная конфигурация запуска (обязательно).
	Config *config.Config

	// Sessions — фабрика сессий (default: runner.HTTPSessions из Config).
	Sessions runner.SessionFactory

	// Хранение и события (опционально)
	Sink      runner.ResultSink
	Publisher runner.EventPublisher
	Observer  runner.Observer
	Metrics   *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator. Фикстуры читаются сразу.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Config == nil {
		return nil, errors.New("orchestrator: config is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fx, err := fixture.Load(cfg.Config.Fixtures)
	if err != nil {
		return nil, err
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = runner.HTTPSessions(runner.HTTPSessionConfig{
			WebBaseURL:      cfg.Config.Web(),
			PageTimeout:     cfg.Config.Timeouts.PageLoad,
			RequestTimeout:  cfg.Config.Timeouts.Request,
			ResponseTimeout: cfg.Config.Timeouts.Response,
			InsecureTLS:     cfg.Config.InsecureTLS,
			Viewport:        cfg.Config.Viewport,
			Metrics:         cfg.Metrics,
		})
	}

	cmds := commands.DefaultRegistry()

	return &Orchestrator{
		cfg:       cfg.Config,
		commands:  cmds,
		library:   steps.DefaultLibrary(cmds),
		fixtures:  fx,
		sessions:  sessions,
		sink:      cfg.Sink,
		publisher: cfg.Publisher,
		observer:  cfg.Observer,
		metrics:   cfg.Metrics,
		active:    make(map[int]context.CancelFunc),
		logger:    logger,
	}, nil
}

// Library возвращает библиотеку шагов.
func (o *Orchestrator) Library() *steps.Library {
	return o.library
}

// Commands возвращает реестр команд.
func (o *Orchestrator) Commands() *commands.Registry {
	return o.commands
}

// LoadFeatures загружает feature файлы по путям. Пустой список
// означает пути из конфигурации.
func (o *Orchestrator) LoadFeatures(paths []string) ([]*engine.Feature, error) {
	if len(paths) == 0 {
		paths = o.cfg.Features
	}
	features, err := engine.LoadFeatures(paths)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return features, nil
}

// Check проверяет, что каждый шаг features имеет ровно одно определение.
// Возвращает nil, если проблем нет.
func (o *Orchestrator) Check(features []*engine.Feature) error {
	if errs := runner.Check(o.library, o.fixtures, features); len(errs) > 0 {
		return &CheckError{Steps: errs}
	}
	return nil
}

// Run выполняет прогон по запросу.
//
// Пустые поля запроса заменяются значениями конфигурации. Ошибки
// загрузки features и разбора тегов возвращаются до создания прогона.
// В строгом режиме шаги без определения тоже останавливают запуск.
//
// Сигнатура совпадает с scheduler.Suite.
func (o *Orchestrator) Run(ctx context.Context, req scheduler.Request) (*domain.Run, error) {
	features, err := o.LoadFeatures(req.Features)
	if err != nil {
		return nil, err
	}

	expr := req.Tags
	if expr == "" {
		expr = o.cfg.Tags
	}
	tags, err := engine.ParseTagFilter(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if o.cfg.Strict {
		if err := o.Check(features); err != nil {
			return nil, err
		}
	}

	r, err := runner.New(runner.Config{
		Library:        o.library,
		Fixtures:       o.fixtures,
		Sessions:       o.sessions,
		APIBaseURL:     o.cfg.API(),
		CommandTimeout: o.cfg.Timeouts.Command,
		StepTimeout:    o.cfg.Timeouts.Step,
		Parallel:       o.cfg.Parallel,
		Tags:           tags,
		Bail:           o.cfg.Bail,
		Trigger:        req.Trigger,
		EnvPrefix:      config.EnvPrefix,
		Sink:           o.sink,
		Publisher:      o.publisher,
		Observer:       o.observer,
		Metrics:        o.metrics,
		Logger:         o.logger,
	})
	if err != nil {
		return nil, err
	}

	ctx, done, err := o.track(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	o.logger.Info("starting run",
		"trigger", req.Trigger,
		"requested_by", req.RequestedBy,
		"features", len(features),
		"tags", tags.String(),
	)
	return r.Run(ctx, features)
}

// Stop отменяет активные прогоны. Новые прогоны получают ErrStopped.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopped = true
	for _, cancel := range o.active {
		cancel()
	}
	o.logger.Info("orchestrator stopped", "cancelled_runs", len(o.active))
}

// Active возвращает число выполняемых прогонов.
func (o *Orchestrator) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// track регистрирует прогон. done снимает регистрацию.
func (o *Orchestrator) track(ctx context.Context) (context.Context, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return nil, nil, ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	id := o.nextID
	o.nextID++
	o.active[id] = cancel

	return ctx, func() {
		o.mu.Lock()
		delete(o.active, id)
		o.mu.Unlock()
		cancel()
	}, nil
}
