package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/axelav/spawner/internal/config"
	"github.com/axelav/spawner/internal/daemon"
)

func init() {
	serveDroneCmd.Flags().StringVar(&droneID, "id", "", "drone id (overrides config)")
	serveDroneCmd.Flags().StringVar(&droneCluster, "cluster", "", "cluster name (overrides config)")
	serveDroneCmd.Flags().StringVar(&droneEngineHost, "engine-host", "", "engine endpoint (overrides config)")
	rootCmd.AddCommand(serveDroneCmd)
}

var (
	droneID         string
	droneCluster    string
	droneEngineHost string
)

var serveDroneCmd = &cobra.Command{
	Use:   "serve-drone",
	Short: "Run the drone executor",
	Long:  `Run the Drone Executor, accepting spawn requests for one worker node and driving each backend's lifecycle.`,
	RunE:  runServeDrone,
}

func runServeDrone(cmd *cobra.Command, args []string) error {
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
	if droneID != "" {
		cfg.Drone.ID = droneID
	}
	if droneCluster != "" {
		cfg.Drone.Cluster = droneCluster
	}
	if droneEngineHost != "" {
		cfg.Drone.EngineHost = droneEngineHost
	}

	d, err := daemon.NewDrone(cfg)
	if err != nil {
		return err
	}
	return d.Run(context.Background())
}
