// Package main is the entry point for the CareBridge sync core CLI.
package main

import (
	"fmt"
	"os"

	"github.com/carebridge/carebridge-core/cmd/carebridge/commands"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
