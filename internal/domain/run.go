package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один прогон набора сценариев.
//
// Run создаётся когда:
// - Пользователь запускает `probe run`
// - Scheduler запускает набор по cron-расписанию
// - Приходит сообщение run.requested из RabbitMQ
type Run struct {
	// ID — уникальный идентификатор прогона.
	ID uuid.UUID `json:"id"`

	// Status — текущий статус прогона.
	Status RunStatus `json:"status"`

	// Trigger — источник запуска: "cli", "cron", "mq".
	Trigger string `json:"trigger"`

	// Scenarios — результаты сценариев в порядке объявления в feature-файлах.
	Scenarios []ScenarioResult `json:"scenarios"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — ошибка уровня прогона (например, отмена контекста).
	Error string `json:"error,omitempty"`
}

// NewRun создаёт прогон в статусе RUNNING.
func NewRun(trigger string) *Run {
	return &Run{
		ID:        uuid.New(),
		Status:    RunStatusRunning,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
}

// Duration возвращает продолжительность прогона.
// Возвращает 0, если прогон ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts возвращает количество прошедших, упавших и пропущенных сценариев.
func (r *Run) Counts() (passed, failed, skipped int) {
	for i := range r.Scenarios {
		switch r.Scenarios[i].Status {
		case ScenarioStatusPassed:
			passed++
		case ScenarioStatusFailed:
			failed++
		case ScenarioStatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

// Passed возвращает true, если прогон завершён и ни один сценарий не упал.
func (r *Run) Passed() bool {
	return r.Status == RunStatusPassed
}

// Finish фиксирует итоговый статус по результатам сценариев.
func (r *Run) Finish() {
	now := time.Now()
	r.FinishedAt = &now

	if r.Status == RunStatusCancelled {
		return
	}

	_, failed, _ := r.Counts()
	if failed > 0 {
		r.Status = RunStatusFailed
		return
	}
	r.Status = RunStatusPassed
}

// MarkCancelled переводит прогон в статус CANCELLED.
func (r *Run) MarkCancelled(reason string) {
	r.Status = RunStatusCancelled
	r.Error = reason
}

// ScenarioResult — результат одного сценария.
type ScenarioResult struct {
	ID      uuid.UUID `json:"id"`
	Feature string    `json:"feature"`
	Name    string    `json:"name"`

	// Location — "path/to/file.feature:12".
	Location string   `json:"location"`
	Tags     []string `json:"tags,omitempty"`

	Status   ScenarioStatus `json:"status"`
	Steps    []StepResult   `json:"steps"`
	Duration time.Duration  `json:"duration"`
}

// FailedStep возвращает первый упавший шаг или nil.
func (s *ScenarioResult) FailedStep() *StepResult {
	for i := range s.Steps {
		if s.Steps[i].Status == StepStatusFailed {
			return &s.Steps[i]
		}
	}
	return nil
}

// StepResult — результат одного шага.
type StepResult struct {
	Keyword  string        `json:"keyword"`
	Text     string        `json:"text"`
	Location string        `json:"location"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`

	// Заполняются только для упавшего шага.
	Failure  FailureKind `json:"failure,omitempty"`
	Error    string      `json:"error,omitempty"`
	Expected string      `json:"expected,omitempty"`
	Actual   string      `json:"actual,omitempty"`
}
