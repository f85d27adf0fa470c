// Package resettoken issues and redeems one-time password reset secrets.
// Only the SHA-256 of a secret is ever persisted.
package resettoken

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/credit-repair-auth/internal/apperr"
	"github.com/iliyamo/credit-repair-auth/internal/repository"
	"github.com/iliyamo/credit-repair-auth/internal/utils"
)

// SecretBytes is the entropy of a reset secret (256 bits).
const SecretBytes = 32

// DefaultTTL is how long an issued secret stays valid.
const DefaultTTL = 10 * time.Minute

// ErrInvalidOrExpired is returned for every redeem failure that is not an
// infrastructure error. Wrong, expired and already used secrets all look
// the same to the caller.
var ErrInvalidOrExpired = apperr.New(apperr.InvalidOrExpiredToken, "Invalid or expired reset token")

// Store is the slice of the user repository the manager needs.
type Store interface {
	SetResetToken(ctx context.Context, userID uint64, tokenHash string, expires time.Time) error
	RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uint64, int64, error)
}

type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue generates a new secret for userID, overwriting any outstanding one,
// and returns the plaintext for out-of-band delivery.
func (m *Manager) Issue(ctx context.Context, userID uint64) (string, time.Time, error) {
	secret, err := utils.RandomHex(SecretBytes)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(err, apperr.StoreUnavailable, "an internal error occurred")
	}
	expires := m.now().Add(m.ttl).UTC()
	if err := m.store.SetResetToken(ctx, userID, utils.HashToken(secret), expires); err != nil {
		return "", time.Time{}, apperr.Store(err, "set reset token")
	}
	return secret, expires, nil
}

// Redemption is the outcome of a successful Redeem.
type Redemption struct {
	UserID          uint64
	SessionsRevoked int64 // refresh tokens deleted with the password change
}

// Redeem validates secret and, in the same store transaction, clears it,
// stores passwordHash and revokes the user's refresh tokens. Nothing is
// changed when it fails.
func (m *Manager) Redeem(ctx context.Context, secret, passwordHash string) (Redemption, error) {
	if secret == "" {
		return Redemption{}, ErrInvalidOrExpired
	}
	id, n, err := m.store.RedeemResetToken(ctx, utils.HashToken(secret), passwordHash, m.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return Redemption{}, ErrInvalidOrExpired
	}
	if err != nil {
		return Redemption{}, apperr.Store(err, "redeem reset token")
	}
	return Redemption{UserID: id, SessionsRevoked: n}, nil
}
