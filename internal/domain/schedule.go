package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание регулярного прогона набора (synthetic monitoring).
//
// Прогон запускается:
// - По cron-выражению: "*/5 * * * *" (каждые 5 минут)
// - По интервалу: каждые N секунд
type Schedule struct {
	// Name — имя расписания для логов.
	Name string `json:"name,omitempty"`

	// CronExpr — cron-выражение из пяти полей.
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между прогонами.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс cron-выражения (default: UTC).
	Timezone string `json:"timezone"`

	// Tags — фильтр сценариев для плановых прогонов.
	Tags string `json:"tags,omitempty"`

	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего прогона.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunID     *uuid.UUID `json:"last_run_id,omitempty"`
	LastRunStatus RunStatus  `json:"last_run_status,omitempty"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает итог прогона и следующее время запуска.
func (s *Schedule) RecordRun(run *Run, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastRunID = &run.ID
	s.LastRunStatus = run.Status
	s.NextDueAt = &nextDue
}
