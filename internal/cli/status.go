package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [backend]",
	Short: "Print the last known state of one backend, or every backend",
	Long:  `Snapshot backend.*.state (or a single backend's subject) and print "{backend}\t{state}\t{time}" for each.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	b, err := connectBus()
	if err != nil {
		return err
	}
	defer b.Close()

	pattern := bus.BackendStateWildcard
	if len(args) == 1 {
		pattern = bus.BackendState(domain.BackendID(args[0]))
	}

	ctx, cancel := withTimeout()
	defer cancel()

	msgs, err := b.Snapshot(ctx, pattern)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		var state domain.BackendStateMessage
		if err := m.Decode(&state); err != nil {
			return fmt.Errorf("decode backend state on %s: %w", m.Subject, err)
		}
		fmt.Printf("%s\t%s\t%s\n", state.BackendID, state.State, state.Time.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
