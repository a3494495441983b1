package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// RedisDirectoryCache stores the listing as a JSON blob under a single key so
// several service instances share one view. The generation lives next to it
// under "<key>:gen" and is checked with WATCH on every write.
type RedisDirectoryCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

var _ DirectoryCache = (*RedisDirectoryCache)(nil)

func NewRedisDirectoryCache(client redis.UniversalClient, key string, ttl time.Duration, logger *slog.Logger) *RedisDirectoryCache {
	if key == "" {
		key = DefaultRedisKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDirectoryCache{client: client, key: key, ttl: ttl, logger: logger}
}

func (c *RedisDirectoryCache) GetUsers(ctx context.Context) ([]types.PublicUser, bool) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Directory cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	var users []types.PublicUser
	if err := json.Unmarshal(raw, &users); err != nil {
		c.logger.WarnContext(ctx, "Discarding undecodable directory cache entry", slog.Any("error", err))
		return nil, false
	}
	return users, true
}

var errStaleGeneration = errors.New("directory cache generation moved")

func (c *RedisDirectoryCache) genKey() string {
	return c.key + ":gen"
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, cmd stringGetter, key string) (uint64, error) {
	raw, err := cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

func (c *RedisDirectoryCache) Generation(ctx context.Context) uint64 {
	gen, err := readGeneration(ctx, c.client, c.genKey())
	if err != nil {
		c.logger.WarnContext(ctx, "Directory cache generation read failed", slog.Any("error", err))
	}
	return gen
}

func (c *RedisDirectoryCache) SetUsers(ctx context.Context, gen uint64, users []types.PublicUser) {
	payload, err := json.Marshal(users)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to encode directory cache entry", slog.Any("error", err))
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx, c.genKey())
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, payload, c.ttl)
			return nil
		})
		return err
	}, c.genKey())

	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		c.logger.DebugContext(ctx, "Skipping directory cache write, listing changed meanwhile")
	default:
		c.logger.WarnContext(ctx, "Directory cache write failed", slog.Any("error", err))
	}
}

func (c *RedisDirectoryCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey())
		pipe.Del(ctx, c.key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate directory cache: %w", err)
	}
	return nil
}

func (c *RedisDirectoryCache) Close() error {
	return c.client.Close()
}
