package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// INCR and PEXPIRE run in one script so a crash between them cannot leave a
// counter without a TTL. A key that somehow lost its TTL gets it back.
var fixedWindowScript = redis.NewScript(`
    local count = redis.call('INCR', KEYS[1])
    if count == 1 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
    end
    local ttl = redis.call('PTTL', KEYS[1])
    if ttl < 0 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
        ttl = tonumber(ARGV[1])
    end
    return { count, ttl }
`)

// DECR keeps the TTL, so undoing never extends a window.
var undoScript = redis.NewScript(`
    local v = tonumber(redis.call('GET', KEYS[1]) or '0')
    if v > 0 then
        return redis.call('DECR', KEYS[1])
    end
    return 0
`)

// RedisLimiter is a fixed-window limiter backed by Redis counters.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	vals, err := fixedWindowScript.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis: %w", err)
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script result %#v", vals)
	}
	count := asInt64(arr[0])
	ttl := time.Duration(asInt64(arr[1])) * time.Millisecond
	return newResult(int(count), l.limit, ttl), nil
}

func (l *RedisLimiter) Undo(ctx context.Context, key string) error {
	if err := undoScript.Run(ctx, l.rdb, []string{key}).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis undo: %w", err)
	}
	return nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
