package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Переменные окружения логгера.
const (
	EnvLogLevel  = "LOG_LEVEL"  // debug, info, warn, error
	EnvLogFormat = "LOG_FORMAT" // json (по умолчанию), text
)

// ParseLevel разбирает уровень логирования без учёта регистра.
// Неизвестное или пустое значение — INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создаёт логгер с выводом в w. format "text" — человекочитаемый
// вывод, иначе JSON. На уровне DEBUG в записи добавляется источник.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetupLogger настраивает глобальный логгер с выводом в stdout по
// LOG_LEVEL и LOG_FORMAT. Используется демонами.
func SetupLogger() *slog.Logger {
	return SetupLoggerTo(os.Stdout)
}

// SetupLoggerTo — SetupLogger с выводом в w.
// CLI пишет логи в stderr, чтобы stdout оставался отчётом.
func SetupLoggerTo(w io.Writer) *slog.Logger {
	logger := NewLogger(w, ParseLevel(os.Getenv(EnvLogLevel)), os.Getenv(EnvLogFormat))
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger кладёт логгер в контекст. Шаги и обработчики сообщений
// получают логгер со своими атрибутами (run_id, scenario_id, message_id).
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext возвращает логгер из контекста или глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRunID добавляет run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithScenarioID добавляет scenario_id.
func WithScenarioID(logger *slog.Logger, scenarioID string) *slog.Logger {
	return logger.With("scenario_id", scenarioID)
}

// WithFeature добавляет feature.
func WithFeature(logger *slog.Logger, feature string) *slog.Logger {
	return logger.With("feature", feature)
}
