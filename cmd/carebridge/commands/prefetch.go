package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carebridge/carebridge-core/internal/prefetch"
)

// NewPrefetchCmd creates the prefetch command.
func NewPrefetchCmd() *cobra.Command {
	var (
		caregiverID string
		days        int
		withTasks   bool
		withElders  bool
	)

	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Load upcoming visits into the local store",
		Long: `Fetch the caregiver's upcoming visits (plus tasks and elder
reference data) into the local store so they are available offline.
Rows with unsynced local edits are never overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if caregiverID == "" {
				caregiverID = a.cfg.CaregiverID
			}
			if caregiverID == "" {
				return fmt.Errorf("no caregiver id: pass --caregiver or set CAREBRIDGE_CAREGIVER_ID")
			}
			if days <= 0 {
				days = a.cfg.PrefetchDays
			}

			summary, err := a.prefetcher.Prefetch(cmd.Context(), caregiverID, prefetch.Options{
				DaysAhead:     days,
				IncludeTasks:  withTasks,
				IncludeElders: withElders,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Assignments: %d\n", summary.Assignments)
			fmt.Fprintf(out, "Tasks:       %d\n", summary.Tasks)
			fmt.Fprintf(out, "Elders:      %d\n", summary.Elders)
			return nil
		},
	}

	cmd.Flags().StringVar(&caregiverID, "caregiver", "", "caregiver id to prefetch for")
	cmd.Flags().IntVar(&days, "days", 0, "days ahead to prefetch (default from config)")
	cmd.Flags().BoolVar(&withTasks, "tasks", true, "include visit tasks")
	cmd.Flags().BoolVar(&withElders, "elders", true, "include elder reference data")
	return cmd
}
