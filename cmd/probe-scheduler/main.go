// Probe Scheduler — synthetic monitoring: запускает набор сценариев
// по cron-расписанию и по запросам run.requested из RabbitMQ.
//
// Scheduler:
//   - Загружает конфигурацию (PROBE_CONFIG, переменные PROBE_*)
//   - Сохраняет прогоны в PostgreSQL, если задан database_url
//   - Публикует run.finished / scenario.finished, если задан rabbitmq_url
//   - Отдаёт /healthz и /metrics на metrics_addr
//
// Несколько экземпляров с общей БД делят расписание через advisory lock.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Probe/internal/config"
	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/mq"
	"github.com/shaiso/Probe/internal/orchestrator"
	"github.com/shaiso/Probe/internal/repo"
	"github.com/shaiso/Probe/internal/scheduler"
	"github.com/shaiso/Probe/internal/telemetry"
)

// runRequestMaxAge — запросы, пролежавшие в очереди дольше, не выполняются.
const runRequestMaxAge = time.Hour

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting probe-scheduler")

	if err := run(logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("probe-scheduler failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(logger *slog.Logger) error {
	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(os.Getenv("PROBE_CONFIG"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	opts := orchestrator.Config{Config: cfg, Metrics: metrics, Logger: logger}

	// PostgreSQL (опционально)
	var leader scheduler.LeaderFunc
	if cfg.DatabaseURL != "" {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		logger.Info("database connected")

		opts.Sink = repo.NewRunRepo(pool)

		lock := repo.NewAdvisoryLock(pool, repo.SchedulerLockKey)
		defer func() { _ = lock.Release(context.Background()) }()
		leader = lock.TryAcquire
	}

	// RabbitMQ (опционально)
	var mqConn *mq.Connection
	if cfg.RabbitMQURL != "" {
		mqConn, err = mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer mqConn.Close()

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			return err
		}
		logger.Info("RabbitMQ connected")

		opts.Publisher = mq.NewPublisher(mqConn, logger)
	}

	orch, err := orchestrator.New(opts)
	if err != nil {
		return err
	}
	defer orch.Stop()

	sched, err := scheduler.New(scheduler.Config{
		Schedule: domain.Schedule{
			Name:     "default",
			CronExpr: cfg.Schedule,
			Tags:     cfg.Tags,
			Enabled:  cfg.Schedule != "",
		},
		Suite:  orch.Run,
		Leader: leader,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	// Запросы прогона из очереди
	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   string(mq.QueueRunsRequested),
			Handler: sched.HandleRunRequested,
			Types:   []mq.MessageType{mq.MessageTypeRunRequested},
			MaxAge:  runRequestMaxAge,
		})
		defer consumer.Stop()

		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	server := metricsServer(cfg.MetricsAddr)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if !sched.Schedule().Enabled {
		logger.Warn("no schedule configured, serving run requests only")
	}
	return sched.Start(ctx)
}

// metricsServer — HTTP сервер с /healthz и /metrics.
func metricsServer(addr string) *http.Server {
	startTime := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
