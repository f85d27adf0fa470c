package resettoken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/credit-repair-auth/internal/apperr"
	"github.com/iliyamo/credit-repair-auth/internal/repository"
	"github.com/iliyamo/credit-repair-auth/internal/utils"
)

type entry struct {
	hash    string
	expires time.Time
}

type fakeStore struct {
	mu        sync.Mutex
	rows      map[uint64]*entry
	passwords map[uint64]string
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[uint64]*entry{}, passwords: map[uint64]string{}}
}

func (f *fakeStore) SetResetToken(_ context.Context, id uint64, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows[id] = &entry{hash: hash, expires: exp}
	return nil
}

func (f *fakeStore) RedeemResetToken(_ context.Context, hash, pw string, now time.Time) (uint64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, 0, f.err
	}
	for id, e := range f.rows {
		if e.hash == hash && now.Before(e.expires) {
			delete(f.rows, id)
			f.passwords[id] = pw
			return id, 2, nil
		}
	}
	return 0, 0, repository.ErrNotFound
}

func TestIssueStoresOnlyHash(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewManager(store, 0).WithClock(func() time.Time { return now })

	secret, exp, err := m.Issue(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, secret, SecretBytes*2)
	assert.Equal(t, now.Add(DefaultTTL), exp)
	assert.Equal(t, utils.HashToken(secret), store.rows[5].hash)
	assert.NotEqual(t, secret, store.rows[5].hash)
}

func TestRedeemIsOneTime(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, 10*time.Minute)

	secret, _, err := m.Issue(context.Background(), 9)
	require.NoError(t, err)

	r, err := m.Redeem(context.Background(), secret, "h1")
	require.NoError(t, err)
	assert.Equal(t, Redemption{UserID: 9, SessionsRevoked: 2}, r)
	assert.Equal(t, "h1", store.passwords[9])

	_, err = m.Redeem(context.Background(), secret, "h2")
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpiredToken)
	assert.Equal(t, "h1", store.passwords[9])
}

func TestRedeemAfterExpiry(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewManager(store, 10*time.Minute).WithClock(func() time.Time { return now })

	secret, _, err := m.Issue(context.Background(), 1)
	require.NoError(t, err)

	now = now.Add(10*time.Minute + time.Second)
	_, err = m.Redeem(context.Background(), secret, "h")
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpiredToken)
}

func TestReissueInvalidatesPrevious(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, 10*time.Minute)

	first, _, err := m.Issue(context.Background(), 3)
	require.NoError(t, err)
	second, _, err := m.Issue(context.Background(), 3)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = m.Redeem(context.Background(), first, "h")
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpiredToken)
	r, err := m.Redeem(context.Background(), second, "h")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.UserID)
}

func TestRedeemRejectsEmptyAndUnknown(t *testing.T) {
	m := NewManager(newFakeStore(), 0)
	_, err := m.Redeem(context.Background(), "", "h")
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpiredToken)
	_, err = m.Redeem(context.Background(), "deadbeef", "h")
	assert.ErrorIs(t, err, apperr.ErrInvalidOrExpiredToken)
}

func TestStoreFailureIsNotATokenError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("i/o timeout")
	m := NewManager(store, 0)

	_, err := m.Redeem(context.Background(), "abc", "h")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrInvalidOrExpiredToken)

	_, _, err = m.Issue(context.Background(), 1)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestConcurrentRedeemSucceedsOnce(t *testing.T) {
	m := NewManager(newFakeStore(), 0)
	secret, _, err := m.Issue(context.Background(), 2)
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Redeem(context.Background(), secret, "h"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
