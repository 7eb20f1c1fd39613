package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Probe/internal/domain"
	"github.com/shaiso/Probe/internal/repo"
)

// NewHistoryCmd создаёт группу команд для сохранённых прогонов.
// Требует database_url.
func NewHistoryCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect stored runs",
	}

	cmd.AddCommand(
		newHistoryListCmd(configFn, outputFn),
		newHistoryShowCmd(configFn, outputFn),
		newHistoryPruneCmd(configFn, outputFn),
	)

	return cmd
}

// withStore открывает хранилище из конфигурации и вызывает fn.
func withStore(cmd *cobra.Command, configFn ConfigFunc, fn func(ctx context.Context, store *repo.RunRepo) error) error {
	cfg, err := configFn()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return ErrNoDatabase
	}

	ctx, stop := runContext(cmd)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(ctx, store)
}

func newHistoryListCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	var status string
	var trigger string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, configFn, func(ctx context.Context, store *repo.RunRepo) error {
				out := outputFn()

				runs, err := store.List(ctx, repo.RunFilter{
					Status:  domain.RunStatus(strings.ToUpper(status)),
					Trigger: trigger,
					Limit:   limit,
				})
				if err != nil {
					return err
				}

				rows := make([][]string, len(runs))
				for i, r := range runs {
					rows[i] = []string{
						r.ID.String(), string(r.Status), r.Trigger,
						r.StartedAt.Format(time.RFC3339), r.Duration().Round(time.Millisecond).String(),
					}
				}
				out.Print([]string{"ID", "STATUS", "TRIGGER", "STARTED", "DURATION"}, rows, runs)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PASSED, FAILED, CANCELLED)")
	cmd.Flags().StringVar(&trigger, "trigger", "", "Filter by trigger (cli, cron, mq)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newHistoryShowCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a stored run report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			return withStore(cmd, configFn, func(ctx context.Context, store *repo.RunRepo) error {
				run, err := store.GetByID(ctx, id)
				if err != nil {
					return err
				}
				outputFn().Report(run)
				return nil
			})
		},
	}
}

func newHistoryPruneCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, configFn, func(ctx context.Context, store *repo.RunRepo) error {
				n, err := store.DeleteBefore(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				outputFn().Success("Deleted runs: " + strconv.FormatInt(n, 10))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum age of deleted runs")

	return cmd
}
