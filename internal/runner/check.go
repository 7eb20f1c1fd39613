package runner

import (
	"github.com/shaiso/Probe/internal/engine"
	"github.com/shaiso/Probe/internal/fixture"
	"github.com/shaiso/Probe/internal/steps"
)

// Check находит шаги без определения, с неоднозначным определением или
// с неприводимыми аргументами, не выполняя сценарии.
//
// Шаблоны подставляются с фикстурами и пустыми переменными. Шаг, шаблон
// которого ссылается на переменные сценария, проверяется как есть.
func Check(lib *steps.Library, fixtures *fixture.Set, features []*engine.Feature) []*steps.StepError {
	tctx := engine.NewContext(fixtures.Map(), nil)
	tctx.LoadEnv(defaultEnvPrefix)

	var (
		errs []*steps.StepError
		seen = make(map[string]bool)
	)
	for _, sc := range engine.Scenarios(features) {
		for _, step := range sc.Steps {
			loc := stepLocation(sc.URI, step.Line)
			if seen[loc] {
				continue
			}
			seen[loc] = true

			text := step.Text
			if rendered, err := engine.Render(step.Text, tctx); err == nil {
				text = rendered
			}

			if _, err := lib.Find(text); err != nil {
				errs = append(errs, &steps.StepError{Step: step.Text, Location: loc, Err: err})
			}
		}
	}
	return errs
}
