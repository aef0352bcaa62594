package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
)

var spawnMaxIdleSecs int64

func init() {
	spawnCmd.Flags().Int64Var(&spawnMaxIdleSecs, "timeout", 300, "seconds of idleness before the backend is reclaimed")
	rootCmd.AddCommand(spawnCmd)
}

var spawnCmd = &cobra.Command{
	Use:   "spawn <cluster> <image>",
	Short: "Schedule a new backend on a cluster",
	Long:  `Issue a schedule RPC for image on cluster and print the resulting backend's URL, drone, and backend id.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runSpawn,
}

func runSpawn(cmd *cobra.Command, args []string) error {
	cluster, err := domain.NewClusterName(args[0])
	if err != nil {
		return err
	}
	image := args[1]

	b, err := connectBus()
	if err != nil {
		return err
	}
	defer b.Close()

	req := domain.ScheduleRequest{
		Cluster:     cluster,
		MaxIdleSecs: spawnMaxIdleSecs,
		Executable:  domain.ExecutableSpec{Image: image},
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, cancel := withTimeout()
	defer cancel()

	var resp domain.ScheduleResponse
	if err := b.Request(ctx, bus.ClusterSchedule(cluster), req, &resp); err != nil {
		return err
	}

	if resp.Type == domain.ScheduleResponseNoDroneAvailable {
		return fmt.Errorf("no drone available in cluster %s", cluster)
	}

	fmt.Printf("https://%s.%s\n", resp.BackendID, cluster)
	fmt.Printf("drone\t%s\n", resp.Drone)
	fmt.Printf("backend\t%s\n", resp.BackendID)
	if resp.BearerToken != nil {
		fmt.Printf("bearer_token\t%s\n", *resp.BearerToken)
	}
	return nil
}
