package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/carebridge/carebridge-core/internal/models"
)

// NewPurgeCmd creates the purge command.
func NewPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Purge completed queue items and stale cache rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			items, err := a.queue.PurgeCompleted()
			if err != nil {
				return err
			}

			cutoff := time.Now().Add(-models.ElderCacheFreshness)
			elders, err := a.repo.PurgeStaleElders(cutoff)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queue items purged: %d\n", items)
			fmt.Fprintf(out, "Stale elder rows:   %d\n", elders)
			return nil
		},
	}
}
