package runner

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Probe/internal/apiclient"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/engine"
	"github.com/shaiso/Probe/internal/execution"
	"github.com/shaiso/Probe/internal/expect"
	"github.com/shaiso/Probe/internal/fixture"
	"github.com/shaiso/Probe/internal/pattern"
	"github.com/shaiso/Probe/internal/steps"
	"github.com/shaiso/Probe/internal/telemetry"
)

// Default configuration values.
const (
	defaultStepTimeout    = 60 * time.Second
	defaultCommandTimeout = 10 * time.Second
	defaultTrigger        = "cli"
	defaultEnvPrefix      = "PROBE_"
)

// ResultSink сохраняет завершённый прогон (например, в PostgreSQL).
type ResultSink interface {
	SaveRun(ctx context.Context, run *domain.Run) error
}

// EventPublisher публикует события прогона (например, в RabbitMQ).
type EventPublisher interface {
	PublishScenarioFinished(ctx context.Context, runID uuid.UUID, result *domain.ScenarioResult) error
	PublishRunFinished(ctx context.Context, run *domain.Run) error
}

// Observer получает результат каждого сценария сразу после его завершения.
// При Parallel > 1 вызывается из разных горутин.
type Observer func(result *domain.ScenarioResult)

// Runner выполняет сценарии feature файлов.
//
// Каждый сценарий получает собственную сессию (браузер и HTTP клиент)
// и собственный execution.Context. Общими остаются только библиотека
// шагов, фикстуры и метрики.
type Runner struct {
	library  *steps.Library
	fixtures *fixture.Set
	sessions SessionFactory

	apiBaseURL     string
	commandTimeout time.Duration
	stepTimeout    time.Duration
	parallel       int
	tags           engine.TagFilter
	bail           bool
	trigger        string
	env            map[string]string

	sink      ResultSink
	publisher EventPublisher
	observer  Observer
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// Config — конфигурация Runner.
type Config struct {
	// Library — библиотека шагов (обязательно).
	Library *steps.Library

	// Fixtures — общие фикстуры (опционально).
	Fixtures *fixture.Set

	// Sessions — фабрика сессий (default: HTTPSessions без базового URL).
	Sessions SessionFactory

	APIBaseURL     string
	CommandTimeout time.Duration // ожидания DOM (default: 10s)
	StepTimeout    time.Duration // верхняя граница шага (default: 60s)

	// Parallel — количество одновременно выполняемых сценариев (default: 1).
	Parallel int

	// Tags — фильтр сценариев. Не прошедшие фильтр в результат не попадают.
	Tags engine.TagFilter

	// Bail — после первого упавшего сценария новые не запускаются.
	Bail bool

	// Trigger — источник запуска: "cli", "cron", "mq" (default: "cli").
	Trigger string

	// EnvPrefix — переменные окружения, доступные шаблонам как .Env (default: PROBE_).
	EnvPrefix string

	Sink      ResultSink
	Publisher EventPublisher
	Observer  Observer
	Metrics   *telemetry.Metrics

	Logger *slog.Logger
}

// New создаёт Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Library == nil {
		return nil, errors.New("runner: library is required")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = HTTPSessions(HTTPSessionConfig{Metrics: cfg.Metrics})
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if cfg.Trigger == "" {
		cfg.Trigger = defaultTrigger
	}
	if cfg.EnvPrefix == "" {
		cfg.EnvPrefix = defaultEnvPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		library:        cfg.Library,
		fixtures:       cfg.Fixtures,
		sessions:       cfg.Sessions,
		apiBaseURL:     cfg.APIBaseURL,
		commandTimeout: cfg.CommandTimeout,
		stepTimeout:    cfg.StepTimeout,
		parallel:       cfg.Parallel,
		tags:           cfg.Tags,
		bail:           cfg.Bail,
		trigger:        cfg.Trigger,
		env:            loadEnv(cfg.EnvPrefix),
		sink:           cfg.Sink,
		publisher:      cfg.Publisher,
		observer:       cfg.Observer,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}, nil
}

// Run выполняет сценарии всех features и возвращает завершённый прогон.
//
// Результаты сценариев идут в порядке объявления независимо от Parallel.
// При отмене ctx невыполненные сценарии получают SKIPPED, прогон —
// CANCELLED, а ошибкой возвращается ctx.Err().
func (r *Runner) Run(ctx context.Context, features []*engine.Feature) (*domain.Run, error) {
	run := domain.NewRun(r.trigger)
	logger := telemetry.WithRunID(r.logger, run.ID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	var selected []*engine.Scenario
	for _, sc := range engine.Scenarios(features) {
		if r.tags.Match(sc) {
			selected = append(selected, sc)
		}
	}

	logger.Info("run started",
		"trigger", run.Trigger,
		"scenarios", len(selected),
		"parallel", r.parallel,
		"tags", r.tags.String(),
	)

	run.Scenarios = make([]domain.ScenarioResult, len(selected))

	var (
		bailed atomic.Bool
		wg     sync.WaitGroup
		jobs   = make(chan int)
	)

	for w := 0; w < r.parallel; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sc := selected[i]
				if ctx.Err() != nil || bailed.Load() {
					run.Scenarios[i] = skippedScenario(sc)
				} else {
					run.Scenarios[i] = r.runScenario(ctx, sc)
					if run.Scenarios[i].Status == domain.ScenarioStatusFailed && r.bail {
						bailed.Store(true)
					}
				}
				r.finishScenario(ctx, run.ID, &run.Scenarios[i])
			}
		}()
	}

	for i := range selected {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		run.MarkCancelled(err.Error())
	}
	run.Finish()

	passed, failed, skipped := run.Counts()
	logger.Info("run finished",
		"status", run.Status,
		"passed", passed,
		"failed", failed,
		"skipped", skipped,
		"duration", run.Duration(),
	)
	r.metrics.ObserveRun(string(run.Status))

	// Сохранение и публикация не зависят от отмены прогона
	saveCtx := context.WithoutCancel(ctx)
	if r.sink != nil {
		if err := r.sink.SaveRun(saveCtx, run); err != nil {
			logger.Error("failed to save run", "error", err)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishRunFinished(saveCtx, run); err != nil {
			logger.Error("failed to publish run finished", "error", err)
		}
	}

	return run, ctx.Err()
}

func (r *Runner) finishScenario(ctx context.Context, runID uuid.UUID, res *domain.ScenarioResult) {
	r.metrics.ObserveScenario(string(res.Status))

	if r.observer != nil {
		r.observer(res)
	}
	if r.publisher != nil {
		if err := r.publisher.PublishScenarioFinished(context.WithoutCancel(ctx), runID, res); err != nil {
			telemetry.FromContext(ctx).Error("failed to publish scenario finished",
				"scenario", res.Name,
				"error", err,
			)
		}
	}
}

// runScenario выполняет шаги сценария по порядку. После первого упавшего
// шага оставшиеся получают SKIPPED.
func (r *Runner) runScenario(ctx context.Context, sc *engine.Scenario) domain.ScenarioResult {
	start := time.Now()
	res := skippedScenario(sc)

	logger := telemetry.WithFeature(telemetry.FromContext(ctx), sc.Feature).With("scenario", sc.Name)

	session, err := r.sessions(ctx)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		res.Status = domain.ScenarioStatusFailed
		if len(res.Steps) > 0 {
			r.recordFailure(&res.Steps[0], err)
		}
		res.Duration = time.Since(start)
		return res
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close session", "error", err)
		}
	}()

	ec := execution.New(execution.Config{
		ScenarioID:     res.ID,
		Browser:        session.Browser,
		API:            session.API,
		Fixtures:       r.fixtures,
		APIBaseURL:     r.apiBaseURL,
		CommandTimeout: r.commandTimeout,
		Logger:         logger,
	})
	ec.Logger().Debug("scenario started", "location", res.Location)

	fixtures := r.fixtures.Map()
	res.Status = domain.ScenarioStatusPassed

	for i, step := range sc.Steps {
		if ctx.Err() != nil {
			res.Status = domain.ScenarioStatusSkipped
			break
		}

		sr := &res.Steps[i]
		stepStart := time.Now()
		err := r.runStep(ctx, ec, fixtures, step)
		sr.Duration = time.Since(stepStart)

		// Отмена прогона во время шага не считается падением
		if err != nil && ctx.Err() != nil && !errors.Is(err, expect.ErrTimeout) {
			r.metrics.ObserveStep(string(domain.StepStatusSkipped), sr.Duration)
			res.Status = domain.ScenarioStatusSkipped
			break
		}

		if err != nil {
			stepErr := &steps.StepError{
				Step:     step.Text,
				Location: sr.Location,
				Err:      err,
			}
			r.recordFailure(sr, stepErr)
			r.metrics.ObserveStep(string(domain.StepStatusFailed), sr.Duration)
			ec.Logger().Error("step failed",
				"step", step.Text,
				"location", sr.Location,
				"failure", sr.Failure,
				"error", err,
			)
			res.Status = domain.ScenarioStatusFailed
			break
		}

		sr.Status = domain.StepStatusPassed
		r.metrics.ObserveStep(string(domain.StepStatusPassed), sr.Duration)
		ec.Logger().Debug("step passed", "step", step.Text, "duration", sr.Duration)
	}

	res.Duration = time.Since(start)
	ec.Logger().Info("scenario finished",
		"status", res.Status,
		"location", res.Location,
		"duration", res.Duration,
	)
	return res
}

// runStep подставляет шаблоны и выполняет шаг с таймаутом StepTimeout.
func (r *Runner) runStep(ctx context.Context, ec *execution.Context, fixtures map[string]any, step *engine.Step) error {
	tctx := engine.NewContext(fixtures, ec.Vars())
	tctx.Env = r.env

	rendered, err := engine.RenderStep(step, tctx)
	if err != nil {
		return err
	}

	return expect.Within(ctx, r.stepTimeout, func(ctx context.Context) error {
		return r.library.Run(ctx, ec, rendered.Text, rendered.Table)
	})
}

// recordFailure заполняет результат упавшего шага.
func (r *Runner) recordFailure(sr *domain.StepResult, err error) {
	sr.Status = domain.StepStatusFailed
	sr.Failure = Classify(err)
	sr.Error = err.Error()
	if ae, ok := expect.AsAssertion(err); ok && sr.Failure == domain.FailureAssertion {
		sr.Expected = ae.Expected
		sr.Actual = ae.Actual
	}
}

// Classify определяет вид падения шага.
//
// Таймаут проверяется первым: Eventually оборачивает в ErrTimeout
// последнюю упавшую проверку.
func Classify(err error) domain.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, expect.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.FailureTimeout
	case errors.Is(err, expect.ErrAssertion):
		return domain.FailureAssertion
	case errors.Is(err, apiclient.ErrNetwork):
		return domain.FailureNetwork
	case errors.Is(err, steps.ErrUndefinedStep), errors.Is(err, steps.ErrAmbiguousStep):
		return domain.FailureUndefined
	case errors.Is(err, pattern.ErrTypeCoercion):
		return domain.FailureCoercion
	default:
		return domain.FailureError
	}
}

// skippedScenario возвращает результат сценария, все шаги которого пропущены.
func skippedScenario(sc *engine.Scenario) domain.ScenarioResult {
	res := domain.ScenarioResult{
		ID:       uuid.New(),
		Feature:  sc.Feature,
		Name:     sc.Name,
		Location: sc.Location(),
		Tags:     sc.Tags,
		Status:   domain.ScenarioStatusSkipped,
		Steps:    make([]domain.StepResult, len(sc.Steps)),
	}
	for i, step := range sc.Steps {
		res.Steps[i] = domain.StepResult{
			Keyword:  step.Keyword,
			Text:     step.Text,
			Location: stepLocation(sc.URI, step.Line),
			Status:   domain.StepStatusSkipped,
		}
	}
	return res
}

func stepLocation(uri string, line int) string {
	return uri + ":" + strconv.Itoa(line)
}

func loadEnv(prefix string) map[string]string {
	tctx := engine.NewContext(nil, nil)
	tctx.LoadEnv(prefix)
	return tctx.Env
}
