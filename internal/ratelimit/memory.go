package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

type counter struct {
	count int
	reset time.Time
}

// MemoryLimiter keeps counters in process memory. It is used when Redis is
// not reachable at startup and in tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*counter
	calls   int
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*counter),
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &counter{reset: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++
	return newResult(w.count, l.limit, w.reset.Sub(now)), nil
}

func (l *MemoryLimiter) Undo(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.windows[key]; ok && w.count > 0 && l.now().Before(w.reset) {
		w.count--
	}
	return nil
}

// sweep drops expired windows. Caller holds mu.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.reset) {
			delete(l.windows, k)
		}
	}
}
