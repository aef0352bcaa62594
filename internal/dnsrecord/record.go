// Package dnsrecord publishes and reads durable DNS records on
// cluster.<C>.dns.<name> (spec §4.1/§6): the name→address mapping a
// hypothetical resolver would serve for "<backend-id>.<cluster>"-style
// hostnames. The resolver itself is out of scope (spec §1); this package
// is the durable record a resolver would read. Nothing in this module
// calls Publish; the CLI's list-dns reads records through SnapshotAll.
package dnsrecord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
)

// ValidateName checks name is a single DNS label, matching the
// backend-id-as-hostname-label convention (spec §3).
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, ".") {
		return domain.ErrInvalidBackendID
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return domain.ErrInvalidBackendID
	}
	return nil
}

// Publish stores a domain.DNSRecord for name/cluster/addr with
// last-value-per-subject retention so a cold-start resolver can recover
// the current record set via Snapshot.
func Publish(ctx context.Context, b bus.Bus, cluster domain.ClusterName, name, addr string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	rec := domain.DNSRecord{Name: name, Cluster: cluster, Addr: addr, Updated: time.Now()}
	return b.PublishDurable(ctx, bus.ClusterDNS(cluster, name), rec)
}

// Snapshot returns every DNS record currently retained for cluster.
func Snapshot(ctx context.Context, b bus.Bus, cluster domain.ClusterName) ([]domain.DNSRecord, error) {
	msgs, err := b.Snapshot(ctx, bus.ClusterDNSWildcard(cluster))
	if err != nil {
		return nil, err
	}
	return decodeAll(msgs)
}

// SnapshotAll returns every DNS record across every cluster, for the CLI's
// "list-dns" command.
func SnapshotAll(ctx context.Context, b bus.Bus) ([]domain.DNSRecord, error) {
	msgs, err := b.Snapshot(ctx, bus.ClusterDNSWildcardAll)
	if err != nil {
		return nil, err
	}
	return decodeAll(msgs)
}

func decodeAll(msgs []bus.Msg) ([]domain.DNSRecord, error) {
	out := make([]domain.DNSRecord, 0, len(msgs))
	for _, m := range msgs {
		var rec domain.DNSRecord
		if err := m.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode dns record on %s: %w", m.Subject, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
