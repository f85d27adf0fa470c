// Package storetest provides an in-memory credential store with the same
// observable semantics as the MySQL repositories, for tests of the layers
// above them.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/credit-repair-auth/internal/model"
	"github.com/iliyamo/credit-repair-auth/internal/repository"
)

type refreshRow struct {
	userID  uint64
	expires time.Time
}

// Store implements the user, refresh token and blacklist stores. Every
// method holds one mutex, which gives the same atomicity the SQL versions
// get from single statements and transactions.
type Store struct {
	mu        sync.Mutex
	nextID    uint64
	users     map[uint64]*model.User
	byEmail   map[string]uint64
	refresh   map[string]refreshRow
	blacklist map[string]time.Time

	// Fail makes the named method return the error instead of running.
	Fail map[string]error
}

func New() *Store {
	return &Store{
		users:     map[uint64]*model.User{},
		byEmail:   map[string]uint64{},
		refresh:   map[string]refreshRow{},
		blacklist: map[string]time.Time{},
		Fail:      map[string]error{},
	}
}

func (s *Store) fail(op string) error { return s.Fail[op] }

// SetFail injects an error for op; nil clears it.
func (s *Store) SetFail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.Fail, op)
		return
	}
	s.Fail[op] = err
}

func (s *Store) Create(_ context.Context, u model.NewUser) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Create"); err != nil {
		return 0, err
	}
	email := repository.NormalizeEmail(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return 0, repository.ErrEmailExists
	}
	s.nextID++
	now := time.Now().UTC()
	s.users[s.nextID] = &model.User{
		ID: s.nextID, Email: email, PasswordHash: u.PasswordHash, FirstName: u.FirstName, LastName: u.LastName,
		Role: u.Role, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	s.byEmail[email] = s.nextID
	return s.nextID, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindByEmail"); err != nil {
		return model.User{}, err
	}
	id, ok := s.byEmail[repository.NormalizeEmail(email)]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return *s.users[id], nil
}

func (s *Store) FindByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindByID"); err != nil {
		return model.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return *u, nil
}

func (s *Store) RecordFailedLogin(_ context.Context, id uint64, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RecordFailedLogin"); err != nil {
		return 0, nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return 0, nil, repository.ErrNotFound
	}
	u.FailedLoginAttempts++
	u.LockedUntil = nil
	if u.FailedLoginAttempts >= threshold {
		t := lockUntil.UTC()
		u.LockedUntil = &t
	}
	return u.FailedLoginAttempts, u.LockedUntil, nil
}

func (s *Store) RecordSuccessfulLogin(_ context.Context, id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RecordSuccessfulLogin"); err != nil {
		return err
	}
	if u, ok := s.users[id]; ok {
		t := at.UTC()
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLogin = &t
	}
	return nil
}

func (s *Store) SetPassword(_ context.Context, id uint64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetPassword"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetResetToken(_ context.Context, id uint64, hash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("SetResetToken"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	t := expires.UTC()
	u.ResetTokenHash, u.ResetTokenExpires = &hash, &t
	return nil
}

func (s *Store) ClearResetToken(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.ResetTokenHash, u.ResetTokenExpires = nil, nil
	}
	return nil
}

func (s *Store) RedeemResetToken(_ context.Context, hash, passwordHash string, now time.Time) (uint64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("RedeemResetToken"); err != nil {
		return 0, 0, err
	}
	for id, u := range s.users {
		if u.IsActive && u.ResetTokenHash != nil && *u.ResetTokenHash == hash && now.Before(*u.ResetTokenExpires) {
			u.PasswordHash = passwordHash
			u.ResetTokenHash, u.ResetTokenExpires = nil, nil
			u.UpdatedAt = time.Now().UTC()
			var n int64
			for h, row := range s.refresh {
				if row.userID == id {
					delete(s.refresh, h)
					n++
				}
			}
			return id, n, nil
		}
	}
	return 0, 0, repository.ErrNotFound
}

func (s *Store) InsertRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertRefresh"); err != nil {
		return err
	}
	s.refresh[hash] = refreshRow{userID: userID, expires: exp}
	return nil
}

func (s *Store) FindRefresh(_ context.Context, hash string, now time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("FindRefresh"); err != nil {
		return 0, err
	}
	row, ok := s.refresh[hash]
	if !ok || !now.Before(row.expires) {
		return 0, repository.ErrNotFound
	}
	return row.userID, nil
}

func (s *Store) DeleteRefresh(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteRefresh"); err != nil {
		return false, err
	}
	_, ok := s.refresh[hash]
	delete(s.refresh, hash)
	return ok, nil
}

func (s *Store) DeleteRefreshForUser(_ context.Context, userID uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("DeleteRefreshForUser"); err != nil {
		return 0, err
	}
	var n int64
	for h, row := range s.refresh {
		if row.userID == userID {
			delete(s.refresh, h)
			n++
		}
	}
	return n, nil
}

// Insert blacklists a token hash (BlacklistStore).
func (s *Store) Insert(_ context.Context, hash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Insert"); err != nil {
		return err
	}
	if _, ok := s.blacklist[hash]; !ok {
		s.blacklist[hash] = exp
	}
	return nil
}

func (s *Store) IsBlacklisted(_ context.Context, hash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("IsBlacklisted"); err != nil {
		return false, err
	}
	exp, ok := s.blacklist[hash]
	return ok && now.Before(exp), nil
}

// Deactivate flips is_active off, as user management would.
func (s *Store) Deactivate(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsActive = false
	}
}

// SetRole changes a user's role, as user management would.
func (s *Store) SetRole(id uint64, r model.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Role = r
	}
}

// RefreshCount returns the number of stored refresh tokens of a user.
func (s *Store) RefreshCount(userID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.refresh {
		if row.userID == userID {
			n++
		}
	}
	return n
}

// BlacklistExpiry returns the stored expiry for a token hash.
func (s *Store) BlacklistExpiry(hash string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.blacklist[hash]
	return exp, ok
}
