package cli

import (
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/transitops/fleet-ledger/jobs"
)

func newJobsCommand(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	trigger := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a job now: " + strings.Join(jobs.Tasks, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.Tasks,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := jobs.Build(args[0])
			if err != nil {
				return err
			}
			client, _, closeFn, err := env.Jobs()
			if err != nil {
				return err
			}
			defer closeFn()
			info, err := client.Enqueue(cmd.Context(), task, asynq.MaxRetry(3))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show the default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, inspector, closeFn, err := env.Jobs()
			if err != nil {
				return err
			}
			defer closeFn()
			stats, err := jobs.Stats(inspector)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d paused=%t\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived, stats.Paused)
			return nil
		},
	}

	cmd.AddCommand(trigger, inspect)
	return cmd
}
