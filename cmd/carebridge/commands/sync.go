package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carebridge/carebridge-core/internal/syncqueue"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var retryFailed bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain the sync queue now",
		Long: `Drain all pending queue items against the remote service.

With --retry-failed, items that exhausted their retries are reset to
pending first and drained with a clean slate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			var result syncqueue.DrainResult
			if retryFailed {
				result, err = a.manager.RetryFailed(cmd.Context())
			} else {
				result, err = a.manager.ProcessQueue(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Skipped {
				fmt.Fprintln(out, "A drain is already in progress.")
				return nil
			}
			fmt.Fprintf(out, "Processed: %d\n", result.Processed)
			fmt.Fprintf(out, "Completed: %d\n", result.Completed)
			fmt.Fprintf(out, "Retrying:  %d\n", result.Retrying)
			fmt.Fprintf(out, "Failed:    %d\n", result.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false,
		"reset failed items to pending before draining")
	return cmd
}
