package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Probe/internal/mq"
	"github.com/shaiso/Probe/internal/scheduler"
	"github.com/shaiso/Probe/internal/telemetry"
)

// NewScheduleCmd создаёт группу команд для расписаний.
func NewScheduleCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and trigger scheduled runs",
	}

	cmd.AddCommand(
		newScheduleNextCmd(configFn, outputFn),
		newScheduleTriggerCmd(configFn, outputFn),
	)

	return cmd
}

func newScheduleNextCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	var cronExpr string
	var timezone string
	var count int

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Validate a cron expression and print the next run times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if cronExpr == "" {
				cfg, err := configFn()
				if err != nil {
					return err
				}
				cronExpr = cfg.Schedule
			}
			if cronExpr == "" {
				return fmt.Errorf("%w: no cron expression (use --cron or schedule in config)", scheduler.ErrInvalidSchedule)
			}

			loc := time.UTC
			if timezone != "" {
				var err error
				if loc, err = time.LoadLocation(timezone); err != nil {
					return fmt.Errorf("%w: timezone %q: %v", scheduler.ErrInvalidSchedule, timezone, err)
				}
			}

			times, err := scheduler.NextTimes(cronExpr, time.Now().In(loc), count)
			if err != nil {
				return err
			}

			rows := make([][]string, len(times))
			for i, t := range times {
				rows[i] = []string{fmt.Sprint(i + 1), t.In(loc).Format(time.RFC3339)}
			}
			out.Print([]string{"#", "TIME"}, rows, times)
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (default: schedule from config)")
	cmd.Flags().StringVar(&timezone, "tz", "", "IANA timezone, e.g. Europe/Moscow (default: UTC)")
	cmd.Flags().IntVar(&count, "count", 5, "Number of run times to print")

	return cmd
}

func newScheduleTriggerCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	var tags string
	var requestedBy string

	cmd := &cobra.Command{
		Use:   "trigger [PATH...]",
		Short: "Ask probe-scheduler to run the suite now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFn()
			if err != nil {
				return err
			}
			if cfg.RabbitMQURL == "" {
				return errors.New("rabbitmq_url is not configured")
			}
			out := outputFn()
			logger := telemetry.SetupLoggerTo(out.ErrWriter())

			ctx, stop := runContext(cmd)
			defer stop()

			publisher, closePublisher, err := openPublisher(ctx, cfg.RabbitMQURL, logger)
			if err != nil {
				return err
			}
			defer closePublisher()

			payload := mq.RunRequestedPayload{
				Features:    args,
				Tags:        tags,
				RequestedBy: requestedBy,
			}
			if err := publisher.PublishRunRequested(ctx, payload); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run requested via %s", mq.ExchangeRuns))
			return nil
		},
	}

	cmd.Flags().StringVar(&tags, "tags", "", "Tag filter for the requested run")
	cmd.Flags().StringVar(&requestedBy, "by", "cli", "Requester recorded in the run log")

	return cmd
}
