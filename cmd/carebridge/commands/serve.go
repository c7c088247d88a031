package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carebridge/carebridge-core/internal/logging"
	"github.com/carebridge/carebridge-core/internal/prefetch"
	"github.com/carebridge/carebridge-core/internal/scheduler"
	"github.com/carebridge/carebridge-core/internal/statusfeed"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background sync service",
		Long: `Run the sync core as a long-lived service: periodic queue drains,
the nightly maintenance pass, optional prefetch refreshes, and a
localhost websocket feed publishing sync status to the UI shell.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp()
			if err != nil {
				return err
			}
			defer cleanup()

			hub := statusfeed.NewHub()
			defer hub.Close()
			hub.AttachManager(a.manager)

			sched := scheduler.New(a.manager, a.queue, a.repo, a.prefetcher, scheduler.Config{
				DrainInterval:   a.cfg.DrainInterval,
				MaintenanceSpec: a.cfg.MaintenanceSpec,
				PrefetchSpec:    a.cfg.PrefetchSpec,
				CaregiverID:     a.cfg.CaregiverID,
				PrefetchOptions: prefetch.Options{
					DaysAhead:     a.cfg.PrefetchDays,
					IncludeTasks:  true,
					IncludeElders: true,
				},
			})
			if err := sched.Start(cmd.Context()); err != nil {
				return err
			}
			defer sched.Stop()

			mux := http.NewServeMux()
			mux.HandleFunc("/feed", hub.Handler())
			server := &http.Server{Addr: a.cfg.FeedAddr, Handler: mux}

			errCh := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Sync service running, status feed on ws://%s/feed\n",
				a.cfg.FeedAddr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Info("Shutting down", map[string]interface{}{"signal": sig.String()})
			case <-cmd.Context().Done():
			}

			return server.Close()
		},
	}
}
