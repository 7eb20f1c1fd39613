// Probe CLI — запуск e2e сценариев (Gherkin) против API и веб-страниц.
//
// Использование:
//
//	probe [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	run       Запуск сценариев
//	check     Проверка шагов без запуска
//	steps     Список шаблонов шагов
//	commands  Список команд
//	schedule  Расписание: next, trigger
//	history   Сохранённые прогоны: list, show, prune
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Probe/internal/cli"
	"github.com/shaiso/Probe/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

// defaultConfigFile читается, если --config не задан и файл существует.
const defaultConfigFile = "probe.yaml"

func main() {
	var configPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "probe",
		Short:         "Probe — end-to-end scenario runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./probe.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	configFn := func() (*config.Config, error) {
		path := configPath
		if path == "" {
			if _, err := os.Stat(defaultConfigFile); err == nil {
				path = defaultConfigFile
			}
		}
		return config.Load(path)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(configFn, outputFn),
		cli.NewCheckCmd(configFn, outputFn),
		cli.NewStepsCmd(outputFn),
		cli.NewCommandsCmd(outputFn),
		cli.NewScheduleCmd(configFn, outputFn),
		cli.NewHistoryCmd(configFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		// Отчёт уже напечатан, достаточно кода выхода
		if !errors.Is(err, cli.ErrRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
