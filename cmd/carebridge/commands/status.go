package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := a.queue.GetStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data dir:  %s\n", a.cfg.DataDir)
			fmt.Fprintf(out, "Pending:   %d\n", stats.Pending)
			fmt.Fprintf(out, "Syncing:   %d\n", stats.Syncing)
			fmt.Fprintf(out, "Failed:    %d\n", stats.Failed)
			fmt.Fprintf(out, "Completed: %d\n", stats.Completed)

			if stats.Failed > 0 {
				failed, err := a.queue.ListFailed()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "\nFailed items:")
				for _, item := range failed {
					fmt.Fprintf(out, "  %s %s %s (retries: %d): %s\n",
						item.TableName, item.Operation, string(item.RecordID),
						item.RetryCount, item.LastError)
				}
				fmt.Fprintln(out, "\nRun 'carebridge sync --retry-failed' to try again.")
			}
			return nil
		},
	}
}
