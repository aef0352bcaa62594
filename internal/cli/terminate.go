package cli

import (
	"github.com/spf13/cobra"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
)

func init() {
	rootCmd.AddCommand(terminateCmd)
}

var terminateCmd = &cobra.Command{
	Use:   "terminate <cluster> <backend>",
	Short: "Terminate a backend",
	Long:  `Publish a termination request for backend. The drone hosting it kills the container and publishes its final state.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runTerminate,
}

func runTerminate(cmd *cobra.Command, args []string) error {
	if _, err := domain.NewClusterName(args[0]); err != nil {
		return err
	}
	backendID, err := domain.NewBackendID(args[1])
	if err != nil {
		return err
	}

	b, err := connectBus()
	if err != nil {
		return err
	}
	defer b.Close()

	req := domain.TerminationRequest{BackendID: backendID}

	ctx, cancel := withTimeout()
	defer cancel()

	return b.Publish(ctx, bus.BackendTerminate(backendID), req)
}
