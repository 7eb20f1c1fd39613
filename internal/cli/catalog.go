package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Probe/internal/commands"
	"github.com/shaiso/Probe/internal/engine"
	"github.com/shaiso/Probe/internal/orchestrator"
	"github.com/shaiso/Probe/internal/steps"
)

// stepInfo — описание определения шага для вывода.
type stepInfo struct {
	Expression string `json:"expression"`
	Table      bool   `json:"table"`
	Location   string `json:"location"`
}

// NewStepsCmd создаёт команду со списком шаблонов шагов.
func NewStepsCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List step patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			lib := steps.DefaultLibrary(commands.DefaultRegistry())

			defs := lib.Definitions()
			infos := make([]stepInfo, len(defs))
			rows := make([][]string, len(defs))
			for i, d := range defs {
				infos[i] = stepInfo{Expression: d.Expression(), Table: d.TakesTable(), Location: d.Location()}
				rows[i] = []string{d.Expression(), strconv.FormatBool(d.TakesTable()), d.Location()}
			}

			out.Print([]string{"PATTERN", "TABLE", "DEFINED AT"}, rows, infos)
			return nil
		},
	}
}

// NewCommandsCmd создаёт команду со списком встроенных команд.
func NewCommandsCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List registered commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			names := commands.DefaultRegistry().Names()

			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{name}
			}

			out.Print([]string{"NAME"}, rows, names)
			return nil
		},
	}
}

// checkIssue — шаг, не прошедший проверку.
type checkIssue struct {
	Location string `json:"location"`
	Step     string `json:"step"`
	Error    string `json:"error"`
}

// NewCheckCmd создаёт команду проверки feature файлов без запуска:
// разбор Gherkin и поиск определения для каждого шага.
func NewCheckCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "check [PATH...]",
		Short: "Parse features and report undefined or ambiguous steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFn()
			if err != nil {
				return err
			}
			out := outputFn()

			o, err := orchestrator.New(orchestrator.Config{Config: cfg})
			if err != nil {
				return err
			}

			features, err := o.LoadFeatures(args)
			if err != nil {
				return err
			}

			err = o.Check(features)
			var ce *orchestrator.CheckError
			if errors.As(err, &ce) {
				issues := make([]checkIssue, len(ce.Steps))
				rows := make([][]string, len(ce.Steps))
				for i, s := range ce.Steps {
					issues[i] = checkIssue{Location: s.Location, Step: s.Step, Error: s.Err.Error()}
					rows[i] = []string{s.Location, s.Step, s.Err.Error()}
				}
				out.Print([]string{"LOCATION", "STEP", "ERROR"}, rows, issues)
				return fmt.Errorf("%w: %d step(s)", orchestrator.ErrUndefinedSteps, len(ce.Steps))
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("%d feature(s), %d scenario(s): all steps defined",
				len(features), len(engine.Scenarios(features))))
			return nil
		},
	}
}
