package steps

import (
	"fmt"

	"github.com/shaiso/Probe/internal/commands"
)

// DefaultLibrary создаёт библиотеку со всеми встроенными шагами.
// Шаги, выполняющие команды, вызывают их через cmds.
func DefaultLibrary(cmds *commands.Registry) *Library {
	l := NewLibrary()
	RegisterAPISteps(l, cmds)
	RegisterWebSteps(l, cmds)
	return l
}

// StepError — ошибка выполнения шага с его текстом и положением в файле.
type StepError struct {
	Step     string
	Location string // file:line
	Err      error
}

func (e *StepError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("step %q: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s: step %q: %v", e.Location, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
