// Package cli implements the kestrel command-line interface using Cobra.
// Subcommands cover the flight loop (fly, simulate) and the ground
// segment (status, cmd).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kestrel",
	Short: "Kestrel — CubeSat flight software kernel",
	Long: `Kestrel is a cooperative flight software kernel: a tick-driven task
executive, a mode state machine, and ASIL-graded device fault escalation,
with a ground-segment HTTP API for command and telemetry.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
