// Package domain holds the pure data model shared by the controller and
// drone processes: identifiers, wire messages, and the backend state
// machine's vocabulary. Nothing here talks to the bus, the local store, or
// an engine — those are infrastructure concerns layered on top.
package domain

import (
	"strings"

	"github.com/miekg/dns"
)

// ClusterName is a DNS-like dotted string identifying an administrative
// grouping of drones. Comparisons are case-insensitive, matching DNS name
// semantics.
type ClusterName string

// NewClusterName validates s as a DNS-compatible name and returns it
// lower-cased (DNS names are case-insensitive; normalizing here means every
// subject derived from a ClusterName is stable regardless of how the caller
// capitalized it).
func NewClusterName(s string) (ClusterName, error) {
	if _, ok := dns.IsDomainName(s); !ok || s == "" {
		return "", ErrInvalidClusterName
	}
	return ClusterName(strings.ToLower(s)), nil
}

// String returns the underlying string.
func (c ClusterName) String() string { return string(c) }

// Sanitized returns the form of the cluster name safe to embed as a single
// NATS subject token: dots (which would otherwise introduce extra subject
// levels) are replaced with "-". Both publishers and subscribers must apply
// this same mapping (spec §4.1).
func (c ClusterName) Sanitized() string {
	return strings.ReplaceAll(string(c), ".", "-")
}

// DroneID is an opaque, globally unique short string identifying a worker
// node.
type DroneID string

func (d DroneID) String() string { return string(d) }

// BackendID is an opaque, globally unique short string identifying one
// ephemeral container instance. It doubles as a DNS hostname label (the
// backend is addressed at "<backend-id>.<cluster>"), so it is validated as
// one.
type BackendID string

// NewBackendID validates s as a single DNS label (no dots, RFC 1035 length
// and character rules) and returns it as a BackendID.
func NewBackendID(s string) (BackendID, error) {
	if s == "" || strings.Contains(s, ".") {
		return "", ErrInvalidBackendID
	}
	if _, ok := dns.IsDomainName(s); !ok {
		return "", ErrInvalidBackendID
	}
	return BackendID(s), nil
}

func (b BackendID) String() string { return string(b) }

// HostnameLabel returns the backend id in the form used as a DNS label /
// proxy route key. Identical to String today; kept distinct because the
// two uses (opaque identifier vs. DNS label) are conceptually different and
// may diverge later (spec §3).
func (b BackendID) HostnameLabel() string { return string(b) }
