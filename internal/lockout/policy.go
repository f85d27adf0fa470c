// Package lockout decides whether a login attempt is allowed given the
// account's failure history. It holds no state; the counters live on the
// user row.
package lockout

import (
	"math"
	"time"
)

// Decision is the outcome of Evaluate.
type Decision struct {
	Permitted            bool
	RemainingLockSeconds int
}

// Policy locks an account for Duration once Threshold consecutive
// failures have been recorded.
type Policy struct {
	Threshold int
	Duration  time.Duration
}

// Default is 5 failures, 30 minute lock.
func Default() Policy {
	return Policy{Threshold: 5, Duration: 30 * time.Minute}
}

// Evaluate denies the attempt iff lockedUntil is set and still in the future.
func (p Policy) Evaluate(lockedUntil *time.Time, now time.Time) Decision {
	if lockedUntil == nil || !now.Before(*lockedUntil) {
		return Decision{Permitted: true}
	}
	secs := int(math.Ceil(lockedUntil.Sub(now).Seconds()))
	return Decision{Permitted: false, RemainingLockSeconds: secs}
}

// OnFailure returns the counter and lock timestamp to persist after a
// failed attempt. The store applies the same transition atomically; this
// is the reference form used to compute hints and in tests.
func (p Policy) OnFailure(failedAttempts int, now time.Time) (int, *time.Time) {
	n := failedAttempts + 1
	if n >= p.Threshold {
		until := p.LockUntil(now)
		return n, &until
	}
	return n, nil
}

// LockUntil is the lock expiry for a lock starting at now.
func (p Policy) LockUntil(now time.Time) time.Time {
	return now.Add(p.Duration)
}

// AttemptsRemaining is how many more failures are allowed before a lock.
func (p Policy) AttemptsRemaining(failedAttempts int) int {
	if r := p.Threshold - failedAttempts; r > 0 {
		return r
	}
	return 0
}
