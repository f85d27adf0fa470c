// Package ratelimit implements fixed-window request counters keyed by an
// arbitrary string (usually "<prefix>:<name>:ip:<addr>").
//
// Two implementations are provided: RedisLimiter shares counters between
// instances, MemoryLimiter is only correct for a single process.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the state of a window after a request was counted.
type Result struct {
	Allowed    bool
	Count      int
	Limit      int
	Remaining  int
	RetryAfter time.Duration // time until the window resets
}

// Limiter counts requests per key.
type Limiter interface {
	// Allow increments the counter for key and reports whether the request
	// fits into the current window.
	Allow(ctx context.Context, key string) (Result, error)
	// Undo removes one request from the current window. It is used to stop
	// successful requests from counting against the limit.
	Undo(ctx context.Context, key string) error
}

func newResult(count, limit int, ttl time.Duration) Result {
	rem := limit - count
	if rem < 0 {
		rem = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	return Result{
		Allowed:    count <= limit,
		Count:      count,
		Limit:      limit,
		Remaining:  rem,
		RetryAfter: ttl,
	}
}
