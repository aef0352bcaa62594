// Package proxyroute caches reads of the Local Routing Store's proxy
// routes for a hypothetical reverse proxy sitting in front of backends
// (spec §6 "external interfaces" — the proxy itself is out of scope, but
// it is the obvious consumer of {hostname_label, addr} lookups, and doing
// that lookup against SQLite on every request would be wasteful).
package proxyroute

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/axelav/spawner/internal/domain"
)

// defaultTTL bounds how long a resolved route is trusted before the next
// lookup re-reads the store. Short enough that a backend reaching a
// terminal state is reflected promptly, long enough to spare the store
// from a lookup on every proxied request.
const defaultTTL = 5 * time.Second

// RouteStore is the subset of the Local Routing Store this cache needs.
type RouteStore interface {
	GetProxyRoute(ctx context.Context, backendID domain.BackendID) (domain.ProxyRoute, error)
}

// Cache memoizes RouteStore.GetProxyRoute lookups by backend id.
type Cache struct {
	store RouteStore
	inner *gocache.Cache
}

// New returns a Cache backed by store, with entries expiring after ttl (0
// selects defaultTTL).
func New(store RouteStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{store: store, inner: gocache.New(ttl, ttl*2)}
}

// Get returns the proxy route for backendID, consulting the cache first
// and falling through to the store on a miss or expiry.
func (c *Cache) Get(ctx context.Context, backendID domain.BackendID) (domain.ProxyRoute, error) {
	if v, ok := c.inner.Get(backendID.String()); ok {
		return v.(domain.ProxyRoute), nil
	}

	route, err := c.store.GetProxyRoute(ctx, backendID)
	if err != nil {
		return domain.ProxyRoute{}, err
	}
	c.inner.SetDefault(backendID.String(), route)
	return route, nil
}

// Invalidate drops any cached route for backendID, used once a backend
// leaves Ready so a stale address is never served.
func (c *Cache) Invalidate(backendID domain.BackendID) {
	c.inner.Delete(backendID.String())
}
