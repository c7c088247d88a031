// Package commands implements the carebridge CLI.
package commands

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carebridge/carebridge-core/internal/config"
	"github.com/carebridge/carebridge-core/internal/logging"
)

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "carebridge",
		Short: "Offline-first sync core for home-care visits",
		Long: `CareBridge keeps a caregiver's visits, tasks, and observations on
the device and replays local changes against the agency backend when
connectivity allows.`,
		SilenceUsage: true,
	}

	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewSyncCmd())
	root.AddCommand(NewPrefetchCmd())
	root.AddCommand(NewPurgeCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewVersionCmd())

	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// initLogging configures the global logger from config.
func initLogging(cfg *config.Config) {
	logging.Init(os.Stderr, logging.LogLevel(strings.ToUpper(cfg.LogLevel)))
}
