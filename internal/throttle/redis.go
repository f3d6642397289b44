package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "throttle:"

// Redis counts fixed windows in a shared Redis instance so every node sees
// the same totals. The counter key is created by the first hit and expires
// with the window; INCR and EXPIRE NX run in a single pipelined round trip.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed counter store.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Incr adds one hit to the key's window and reads the remaining TTL back.
func (s *Redis) Incr(ctx context.Context, key string, d time.Duration) (int64, time.Time, error) {
	full := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	pipe.ExpireNX(ctx, full, d)
	ttl := pipe.PTTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("throttle incr %q: %w", key, err)
	}

	// PTTL returns a negative duration for a key without expiry; treat it as
	// a window that just opened rather than a permanently stuck counter.
	remaining := ttl.Val()
	if remaining < 0 {
		remaining = d
	}
	return incr.Val(), time.Now().Add(remaining), nil
}
