package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
)

func init() {
	rootCmd.AddCommand(listDronesCmd)
}

var listDronesCmd = &cobra.Command{
	Use:   "list-drones",
	Short: "Print the last known status of every drone",
	Long:  `Snapshot the drone-status subject and print "{drone_id}\t{cluster}" for each drone currently considered ready.`,
	RunE:  runListDrones,
}

func runListDrones(cmd *cobra.Command, args []string) error {
	b, err := connectBus()
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := withTimeout()
	defer cancel()

	msgs, err := b.Snapshot(ctx, bus.DroneStatusWildcardAll)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		var status domain.DroneStatus
		if err := m.Decode(&status); err != nil {
			return fmt.Errorf("decode drone status on %s: %w", m.Subject, err)
		}
		if !status.Ready {
			continue
		}
		fmt.Printf("%s\t%s\n", status.DroneID, status.Cluster)
	}
	return nil
}
