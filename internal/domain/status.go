package domain

// RunStatus — статус прогона набора сценариев.
//
// Жизненный цикл:
//
//	RUNNING → PASSED
//	        ↘ FAILED
//	        ↘ CANCELLED (прогон прерван сигналом или контекстом)
type RunStatus string

const (
	// RunStatusRunning — прогон выполняется.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusPassed — все сценарии прошли.
	RunStatusPassed RunStatus = "PASSED"

	// RunStatusFailed — хотя бы один сценарий упал.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — прогон отменён до завершения.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (прогон завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusPassed, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// ScenarioStatus — итог выполнения сценария.
type ScenarioStatus string

const (
	// ScenarioStatusPassed — все шаги прошли.
	ScenarioStatusPassed ScenarioStatus = "PASSED"

	// ScenarioStatusFailed — шаг упал (assertion, timeout, сеть, неизвестный шаг).
	ScenarioStatusFailed ScenarioStatus = "FAILED"

	// ScenarioStatusSkipped — сценарий не запускался (fail-fast или отмена).
	ScenarioStatusSkipped ScenarioStatus = "SKIPPED"
)

// StepStatus — итог выполнения шага.
//
// После первого упавшего шага оставшиеся шаги сценария получают SKIPPED.
type StepStatus string

const (
	StepStatusPassed  StepStatus = "PASSED"
	StepStatusFailed  StepStatus = "FAILED"
	StepStatusSkipped StepStatus = "SKIPPED"
)

// FailureKind классифицирует причину падения шага для отчёта.
type FailureKind string

const (
	FailureAssertion FailureKind = "assertion"
	FailureTimeout   FailureKind = "timeout"
	FailureNetwork   FailureKind = "network"
	FailureUndefined FailureKind = "undefined"
	FailureCoercion  FailureKind = "coercion"
	FailureError     FailureKind = "error"
)

// String возвращает строковое представление статуса.
func (s StepStatus) String() string {
	return string(s)
}

// ParseRunStatus парсит строку в RunStatus.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "PASSED":
		return RunStatusPassed
	case "FAILED":
		return RunStatusFailed
	case "CANCELLED":
		return RunStatusCancelled
	default:
		return RunStatusRunning
	}
}
