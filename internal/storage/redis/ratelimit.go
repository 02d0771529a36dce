package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/placementhub/auth-service/internal/util"
)

// RateLimiter is a fixed-window counter over Redis, shared across server
// instances. Once a client exhausts the window it is blocked for the
// configured block time, not just until the window rolls over.
type RateLimiter struct {
	client *redis.Client
	cfg    *util.RateLimiterConfig
}

func NewRateLimiter(client *redis.Client, cfg *util.RateLimiterConfig) *RateLimiter {
	return &RateLimiter{client: client, cfg: cfg}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	blockKey := "ratelimit:block:" + key
	blocked, err := l.client.Exists(ctx, blockKey).Result()
	if err != nil {
		return false, fmt.Errorf("check block key: %w", err)
	}
	if blocked > 0 {
		return false, nil
	}

	countKey := "ratelimit:count:" + key
	count, err := l.client.Incr(ctx, countKey).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, countKey, l.cfg.Interval).Err(); err != nil {
			return false, fmt.Errorf("expire rate counter: %w", err)
		}
	}

	if count > int64(l.cfg.Limit) {
		if err := l.client.Set(ctx, blockKey, "blocked", l.cfg.BlockTime).Err(); err != nil {
			return false, fmt.Errorf("set block key: %w", err)
		}
		return false, nil
	}

	return true, nil
}
