package cli

import (
	"github.com/spf13/cobra"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
)

var drainCancel bool

func init() {
	drainCmd.Flags().BoolVar(&drainCancel, "cancel", false, "cancel a drain in progress instead of starting one")
	rootCmd.AddCommand(drainCmd)
}

var drainCmd = &cobra.Command{
	Use:   "drain <drone> <cluster>",
	Short: "Drain or un-drain a drone",
	Long:  `Publish a drain request for drone in cluster. Draining refuses new spawns but leaves existing backends running; --cancel reverses it.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runDrain,
}

func runDrain(cmd *cobra.Command, args []string) error {
	drone := domain.DroneID(args[0])
	cluster, err := domain.NewClusterName(args[1])
	if err != nil {
		return err
	}

	b, err := connectBus()
	if err != nil {
		return err
	}
	defer b.Close()

	req := domain.DrainRequest{Drone: drone, Cluster: cluster, Drain: !drainCancel}

	ctx, cancel := withTimeout()
	defer cancel()

	return b.Publish(ctx, bus.DroneDrain(cluster, drone), req)
}
