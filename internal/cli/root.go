// Package cli implements the spawner command-line interface using Cobra:
// the two long-running daemons (serve-controller, serve-drone) plus the
// thin client commands that talk to the bus directly (spec §6).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	busURL     string
	streamName string
)

var rootCmd = &cobra.Command{
	Use:   "spawner",
	Short: "spawner — a control plane for ephemeral, per-session container backends",
	Long: `spawner schedules ephemeral container backends across a fleet of drones
and drives each one through its lifecycle over a message bus.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&busURL, "bus-url", "", "bus URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&streamName, "stream-name", "", "durable stream name (overrides config)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
