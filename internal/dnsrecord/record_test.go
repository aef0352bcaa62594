package dnsrecord

import (
	"context"
	"testing"

	"github.com/axelav/spawner/internal/bus"
	"github.com/axelav/spawner/internal/domain"
)

func TestPublishAndSnapshot(t *testing.T) {
	b := bus.NewMemory()
	defer b.Close()
	ctx := context.Background()

	cluster, err := domain.NewClusterName("plane.test")
	if err != nil {
		t.Fatalf("NewClusterName: %v", err)
	}

	if err := Publish(ctx, b, cluster, "b1", "127.0.0.1:9000"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	recs, err := Snapshot(ctx, b, cluster)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(recs) != 1 || recs[0].Addr != "127.0.0.1:9000" {
		t.Errorf("recs = %+v, want one record with addr 127.0.0.1:9000", recs)
	}

	all, err := SnapshotAll(ctx, b)
	if err != nil {
		t.Fatalf("SnapshotAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("SnapshotAll len = %d, want 1", len(all))
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("b1"); err != nil {
		t.Errorf("ValidateName(b1) = %v, want nil", err)
	}
	if err := ValidateName("has.dot"); err != domain.ErrInvalidBackendID {
		t.Errorf("ValidateName(has.dot) = %v, want ErrInvalidBackendID", err)
	}
	if err := ValidateName(""); err != domain.ErrInvalidBackendID {
		t.Errorf("ValidateName(\"\") = %v, want ErrInvalidBackendID", err)
	}
}
