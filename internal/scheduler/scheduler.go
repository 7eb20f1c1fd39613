package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/mq"
	"github.com/shaiso/Probe/internal/telemetry"
)

const defaultTickInterval = time.Second

// Триггеры прогонов.
const (
	TriggerCLI  = "cli"
	TriggerCron = "cron"
	TriggerMQ   = "mq"
)

// Request — параметры одного прогона набора.
// Пустые Tags и Features означают значения из конфигурации.
type Request struct {
	Trigger     string
	Tags        string
	Features    []string
	RequestedBy string
}

// Suite выполняет набор сценариев. Упавшие сценарии — не ошибка:
// ошибка возвращается, только если прогон не удалось выполнить.
type Suite func(ctx context.Context, req Request) (*domain.Run, error)

// Scheduler запускает набор по расписанию и по запросам run.requested.
//
// Одновременно выполняется не больше одного прогона. Плановый прогон,
// совпавший с выполняющимся, пропускается; запрос из очереди ждёт.
type Scheduler struct {
	suite        Suite
	leader       LeaderFunc
	logger       *slog.Logger
	tickInterval time.Duration
	now          func() time.Time

	runMu sync.Mutex // один прогон одновременно

	mu       sync.RWMutex
	schedule domain.Schedule
}

// LeaderFunc сообщает, ведёт ли этот экземпляр расписание. Позволяет
// запустить несколько probe-scheduler: плановый прогон выполняет один.
type LeaderFunc func(ctx context.Context) (bool, error)

// Config — конфигурация Scheduler.
type Config struct {
	Schedule     domain.Schedule
	Suite        Suite
	Leader       LeaderFunc // nil — экземпляр всегда ведущий
	Logger       *slog.Logger
	TickInterval time.Duration // частота проверки расписания (default: 1s)
}

// New создаёт Scheduler и вычисляет время первого прогона.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Suite == nil {
		return nil, errors.New("scheduler: suite is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Scheduler{
		suite:        cfg.Suite,
		leader:       cfg.Leader,
		logger:       cfg.Logger,
		tickInterval: cfg.TickInterval,
		now:          time.Now,
		schedule:     cfg.Schedule,
	}

	if s.schedule.Enabled && s.schedule.NextDueAt == nil {
		next, err := CalculateNextDue(&s.schedule, s.now())
		if err != nil {
			return nil, err
		}
		s.schedule.NextDueAt = &next
	}
	return s, nil
}

// Schedule возвращает копию текущего состояния расписания.
func (s *Scheduler) Schedule() domain.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// Start проверяет расписание каждые TickInterval до отмены ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	sched := s.Schedule()
	s.logger.Info("scheduler started",
		"schedule", sched.Name,
		"cron", sched.CronExpr,
		"interval_sec", sched.IntervalSec,
		"next_due_at", sched.NextDueAt,
	)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

// Tick запускает прогон, если подошло время. Возвращает true, если
// прогон был выполнен.
//
// Ошибка прогона не сдвигает расписание назад: следующее время
// вычисляется от момента тика.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	now := s.now()

	s.mu.RLock()
	due := s.schedule.IsDue(now)
	sched := s.schedule
	s.mu.RUnlock()

	if !due {
		return false, nil
	}

	if s.leader != nil {
		ok, err := s.leader(ctx)
		if err != nil {
			return false, fmt.Errorf("leader check: %w", err)
		}
		if !ok {
			// Ведомый только сдвигает расписание
			return false, s.advance(now, nil)
		}
	}

	if !s.runMu.TryLock() {
		s.logger.Warn("previous run still in progress, skipping scheduled run", "schedule", sched.Name)
		return false, s.advance(now, nil)
	}
	defer s.runMu.Unlock()

	run, err := s.suite(ctx, Request{Trigger: TriggerCron, Tags: sched.Tags})
	if advErr := s.advance(now, run); advErr != nil {
		return true, advErr
	}
	if err != nil {
		return true, fmt.Errorf("scheduled run: %w", err)
	}
	if run == nil {
		return true, nil
	}

	s.logger.Info("scheduled run finished",
		"schedule", sched.Name,
		"run_id", run.ID,
		"status", run.Status,
	)
	return true, nil
}

// advance вычисляет следующее время и запоминает итог прогона (если есть).
func (s *Scheduler) advance(now time.Time, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := CalculateNextDue(&s.schedule, now)
	if err != nil {
		s.schedule.Enabled = false
		return fmt.Errorf("calculate next due, schedule disabled: %w", err)
	}

	if run != nil {
		s.schedule.RecordRun(run, next)
	} else {
		s.schedule.NextDueAt = &next
	}
	return nil
}

// HandleRunRequested — обработчик mq.Consumer для очереди runs.requested.
// Ошибка возвращается, только если прогон не удалось выполнить.
func (s *Scheduler) HandleRunRequested(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&d.Message)
	if err != nil {
		return err
	}

	// Логгер consumer'а уже содержит message_id
	logger := telemetry.FromContext(ctx)
	logger.Info("run requested",
		"requested_by", payload.RequestedBy,
		"tags", payload.Tags,
	)

	s.runMu.Lock()
	defer s.runMu.Unlock()

	run, err := s.suite(ctx, Request{
		Trigger:     TriggerMQ,
		Tags:        payload.Tags,
		Features:    payload.Features,
		RequestedBy: payload.RequestedBy,
	})
	if err != nil {
		return fmt.Errorf("requested run: %w", err)
	}

	logger.Info("requested run finished", "run_id", run.ID, "status", run.Status)
	return nil
}
