package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Probe/internal/config"
	"github.com/shaiso/Probe/internal/orchestrator"
	"github.com/shaiso/Probe/internal/scheduler"
	"github.com/shaiso/Probe/internal/telemetry"
)

// ErrRunFailed — прогон выполнен, но не все сценарии прошли.
var ErrRunFailed = errors.New("run failed")

// ConfigFunc загружает конфигурацию (файл из --config и окружение).
// Флаги команды применяются поверх результата.
type ConfigFunc func() (*config.Config, error)

// runFlags — флаги, переопределяющие конфигурацию на один запуск.
type runFlags struct {
	baseURL     string
	apiBaseURL  string
	webBaseURL  string
	fixtures    string
	tags        string
	parallel    int
	stepTimeout time.Duration
	bail        bool
	headless    bool
	interactive bool
	strict      bool
	insecureTLS bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.baseURL, "base-url", "", "Base URL for API and pages")
	fs.StringVar(&f.apiBaseURL, "api-base-url", "", "API base URL (overrides --base-url for API steps)")
	fs.StringVar(&f.webBaseURL, "web-base-url", "", "Web base URL (overrides --base-url for pages)")
	fs.StringVar(&f.fixtures, "fixtures", "", "Fixture file")
	fs.StringVar(&f.tags, "tags", "", `Tag filter, e.g. "@smoke,~@wip"`)
	fs.IntVar(&f.parallel, "parallel", 0, "Scenarios executed concurrently")
	fs.DurationVar(&f.stepTimeout, "step-timeout", 0, "Upper bound for a single step")
	fs.BoolVar(&f.bail, "bail", false, "Stop starting scenarios after the first failure")
	fs.BoolVar(&f.headless, "headless", true, "Print only the final report")
	fs.BoolVar(&f.interactive, "interactive", false, "Stream scenario progress while running")
	fs.BoolVar(&f.strict, "strict", false, "Fail before running when a step has no definition")
	fs.BoolVar(&f.insecureTLS, "insecure-tls", false, "Skip TLS certificate verification")
}

// apply переносит заданные флаги в cfg. Незаданные флаги не меняют cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("base-url") {
		cfg.BaseURL = f.baseURL
	}
	if changed("api-base-url") {
		cfg.APIBaseURL = f.apiBaseURL
	}
	if changed("web-base-url") {
		cfg.WebBaseURL = f.webBaseURL
	}
	if changed("fixtures") {
		cfg.Fixtures = f.fixtures
	}
	if changed("tags") {
		cfg.Tags = f.tags
	}
	if changed("parallel") {
		cfg.Parallel = f.parallel
	}
	if changed("step-timeout") {
		cfg.Timeouts.Step = f.stepTimeout
	}
	if changed("bail") {
		cfg.Bail = f.bail
	}
	if changed("headless") {
		cfg.Headless = f.headless
	}
	if changed("interactive") {
		cfg.Headless = !f.interactive
	}
	if changed("strict") {
		cfg.Strict = f.strict
	}
	if changed("insecure-tls") {
		cfg.InsecureTLS = f.insecureTLS
	}
}

// NewRunCmd создаёт команду запуска сценариев.
//
// Без аргументов выполняются features из конфигурации, иначе указанные
// файлы и каталоги. Код выхода 0 только если все сценарии прошли.
func NewRunCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [PATH...]",
		Short: "Run feature scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFn()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			out := outputFn()
			logger := telemetry.SetupLoggerTo(out.ErrWriter())

			ctx, stop := runContext(cmd)
			defer stop()
			ctx = telemetry.WithLogger(ctx, logger)

			opts := orchestrator.Config{Config: cfg, Logger: logger}
			if !cfg.Headless {
				opts.Observer = out.Progress
			}

			if cfg.DatabaseURL != "" {
				store, closeStore, err := openStore(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer closeStore()
				opts.Sink = store
			}

			if cfg.RabbitMQURL != "" {
				publisher, closePublisher, err := openPublisher(ctx, cfg.RabbitMQURL, logger)
				if err != nil {
					return err
				}
				defer closePublisher()
				opts.Publisher = publisher
			}

			o, err := orchestrator.New(opts)
			if err != nil {
				return err
			}

			run, err := o.Run(ctx, scheduler.Request{
				Trigger:     scheduler.TriggerCLI,
				Features:    args,
				RequestedBy: os.Getenv("USER"),
			})
			if run != nil {
				out.Report(run)
			}
			if err != nil {
				return err
			}
			if !run.Passed() {
				return fmt.Errorf("%w: %s", ErrRunFailed, run.Status)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// runContext — контекст команды с отменой по SIGINT/SIGTERM.
func runContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
