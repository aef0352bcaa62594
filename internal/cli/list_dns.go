package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axelav/spawner/internal/dnsrecord"
)

func init() {
	rootCmd.AddCommand(listDNSCmd)
}

var listDNSCmd = &cobra.Command{
	Use:   "list-dns",
	Short: "Print every known DNS record",
	Long:  `Snapshot the DNS record subject across every cluster and print "{name}\t{cluster}\t{addr}" for each.`,
	RunE:  runListDNS,
}

func runListDNS(cmd *cobra.Command, args []string) error {
	b, err := connectBus()
	if err != nil {
		return err
	}
	defer b.Close()

	ctx, cancel := withTimeout()
	defer cancel()

	recs, err := dnsrecord.SnapshotAll(ctx, b)
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Printf("%s\t%s\t%s\n", r.Name, r.Cluster, r.Addr)
	}
	return nil
}
