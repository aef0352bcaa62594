package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/axelav/spawner/internal/config"
	"github.com/axelav/spawner/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveControllerCmd)
}

var serveControllerCmd = &cobra.Command{
	Use:   "serve-controller",
	Short: "Run the cluster scheduler",
	Long:  `Run the Cluster Scheduler, answering schedule RPCs for every cluster reachable on the bus.`,
	RunE:  runServeController,
}

func runServeController(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	if busURL != "" {
		cfg.Bus.URL = busURL
	}
	if streamName != "" {
		cfg.Bus.StreamName = streamName
	}

	c, err := daemon.NewController(cfg)
	if err != nil {
		return err
	}
	return c.Run(context.Background())
}
