// Package cache holds the read-through cache for the user listing.
package cache

import (
	"context"
	"time"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// DirectoryCache caches the safe projection of every user. A miss is never an
// error; callers fall through to the directory.
//
// Readers take Generation before loading from the directory and hand it back
// to SetUsers. Invalidate advances the generation, so a listing loaded before
// a concurrent write is dropped instead of cached.
type DirectoryCache interface {
	GetUsers(ctx context.Context) ([]types.PublicUser, bool)
	Generation(ctx context.Context) uint64
	SetUsers(ctx context.Context, gen uint64, users []types.PublicUser)
	Invalidate(ctx context.Context) error
	Close() error
}

const (
	DefaultTTL      = 5 * time.Minute
	DefaultCleanup  = 10 * time.Minute
	DefaultRedisKey = "users:all"
)

// NoopDirectoryCache never stores anything.
type NoopDirectoryCache struct{}

var _ DirectoryCache = NoopDirectoryCache{}

func (NoopDirectoryCache) GetUsers(context.Context) ([]types.PublicUser, bool)  { return nil, false }
func (NoopDirectoryCache) Generation(context.Context) uint64                    { return 0 }
func (NoopDirectoryCache) SetUsers(context.Context, uint64, []types.PublicUser) {}
func (NoopDirectoryCache) Invalidate(context.Context) error                     { return nil }
func (NoopDirectoryCache) Close() error                                         { return nil }
