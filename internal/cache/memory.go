package cache

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

const memoryUsersKey = "users"

// MemoryDirectoryCache keeps the listing in process memory.
type MemoryDirectoryCache struct {
	store *cache.Cache
	ttl   time.Duration

	mu  sync.Mutex
	gen uint64
}

var _ DirectoryCache = (*MemoryDirectoryCache)(nil)

func NewMemoryDirectoryCache(ttl, cleanup time.Duration) *MemoryDirectoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanup
	}
	return &MemoryDirectoryCache{
		store: cache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

func (c *MemoryDirectoryCache) GetUsers(_ context.Context) ([]types.PublicUser, bool) {
	v, found := c.store.Get(memoryUsersKey)
	if !found {
		return nil, false
	}
	users, ok := v.([]types.PublicUser)
	if !ok {
		return nil, false
	}
	// hand out a copy so callers cannot mutate the cached slice
	out := make([]types.PublicUser, len(users))
	copy(out, users)
	return out, true
}

func (c *MemoryDirectoryCache) Generation(_ context.Context) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *MemoryDirectoryCache) SetUsers(_ context.Context, gen uint64, users []types.PublicUser) {
	stored := make([]types.PublicUser, len(users))
	copy(stored, users)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.store.Set(memoryUsersKey, stored, c.ttl)
}

func (c *MemoryDirectoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.store.Delete(memoryUsersKey)
	return nil
}

func (c *MemoryDirectoryCache) Close() error {
	c.store.Flush()
	return nil
}
