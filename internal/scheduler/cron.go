package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Probe/internal/domain"
)

// ErrInvalidSchedule — у расписания нет ни cron-выражения, ни интервала.
var ErrInvalidSchedule = errors.New("schedule has neither cron_expr nor interval_sec")

// cronParser — парсер cron-выражений (пять полей и дескрипторы @every, @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CalculateNextDue вычисляет следующее время прогона после from.
// Cron вычисляется в часовом поясе расписания, результат — в UTC.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		loc = time.UTC
	}
	from = from.In(loc)

	switch {
	case sched.IsCron():
		s, err := parseCron(sched.CronExpr)
		if err != nil {
			return time.Time{}, err
		}
		return s.Next(from).UTC(), nil
	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	default:
		return time.Time{}, ErrInvalidSchedule
	}
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := parseCron(cronExpr)
	return err
}

// NextTimes возвращает n следующих времён срабатывания после from.
func NextTimes(cronExpr string, from time.Time, n int) ([]time.Time, error) {
	s, err := parseCron(cronExpr)
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		from = s.Next(from)
		times = append(times, from)
	}
	return times, nil
}

func parseCron(expr string) (cron.Schedule, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}
