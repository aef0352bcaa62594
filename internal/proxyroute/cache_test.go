package proxyroute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/axelav/spawner/internal/domain"
)

type fakeStore struct {
	calls int
	route domain.ProxyRoute
	err   error
}

func (f *fakeStore) GetProxyRoute(ctx context.Context, backendID domain.BackendID) (domain.ProxyRoute, error) {
	f.calls++
	return f.route, f.err
}

func TestCache_GetCachesAcrossCalls(t *testing.T) {
	store := &fakeStore{route: domain.ProxyRoute{HostnameLabel: "b1", Addr: "127.0.0.1:9000"}}
	c := New(store, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		route, err := c.Get(ctx, "b1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if route.Addr != "127.0.0.1:9000" {
			t.Errorf("route.Addr = %q", route.Addr)
		}
	}
	if store.calls != 1 {
		t.Errorf("store.calls = %d, want 1 (cached after first lookup)", store.calls)
	}
}

func TestCache_Invalidate(t *testing.T) {
	store := &fakeStore{route: domain.ProxyRoute{Addr: "127.0.0.1:9000"}}
	c := New(store, time.Minute)
	ctx := context.Background()

	c.Get(ctx, "b1")
	c.Invalidate("b1")
	c.Get(ctx, "b1")

	if store.calls != 2 {
		t.Errorf("store.calls = %d, want 2 (invalidate forces a re-read)", store.calls)
	}
}

func TestCache_PropagatesStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("not found")}
	c := New(store, time.Minute)

	if _, err := c.Get(context.Background(), "missing"); err == nil {
		t.Error("expected error from store to propagate")
	}
}
