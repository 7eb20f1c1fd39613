package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/Probe/internal/steps"
)

// Ошибки оркестратора.
var (
	// ErrUndefinedSteps — в строгом режиме найдены шаги без определения.
	ErrUndefinedSteps = errors.New("undefined steps")

	// ErrInvalidRequest — параметры прогона некорректны (теги, пути).
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrStopped — Orchestrator остановлен и не принимает новые прогоны.
	ErrStopped = errors.New("orchestrator stopped")
)

// CheckError — результат проверки шагов до запуска.
type CheckError struct {
	Steps []*steps.StepError
}

func (e *CheckError) Error() string {
	lines := make([]string, 0, len(e.Steps))
	for _, s := range e.Steps {
		lines = append(lines, "  "+s.Error())
	}
	return fmt.Sprintf("%s: %d step(s)\n%s", ErrUndefinedSteps, len(e.Steps), strings.Join(lines, "\n"))
}

func (e *CheckError) Unwrap() error {
	return ErrUndefinedSteps
}
