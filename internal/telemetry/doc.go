// Package telemetry обеспечивает наблюдаемость Probe.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики прогонов, шагов и HTTP запросов
//
// Демо-приложение и scheduler экспортируют метрики на /metrics,
// CLI пишет логи в stderr.
package telemetry
