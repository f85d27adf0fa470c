package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/credit-repair-auth/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "role", "is_active",
		"failed_login_attempts", "locked_until", "last_login", "reset_token_hash", "reset_token_expires",
		"created_at", "updated_at",
	})
}

func TestUserRepo_CreateNormalizesEmail(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("jane@example.com", "hash", "Jane", "Doe", "staff").
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := NewUserRepo(db).Create(context.Background(), model.NewUser{
		Email: "  Jane@Example.COM ", PasswordHash: "hash", FirstName: "Jane", LastName: "Doe", Role: model.RoleStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := NewUserRepo(db).Create(context.Background(), model.NewUser{Email: "a@b.co", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserRepo_FindByEmail(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lock := now.Add(30 * time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("jane@example.com").
		WillReturnRows(userRows().AddRow(7, "jane@example.com", "h", "Jane", "Doe", "admin", true,
			5, lock, nil, nil, nil, now, now))

	u, err := NewUserRepo(db).FindByEmail(context.Background(), "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u.ID)
	assert.Equal(t, model.RoleAdmin, u.Role)
	assert.True(t, u.IsActive)
	assert.Equal(t, 5, u.FailedLoginAttempts)
	require.NotNil(t, u.LockedUntil)
	assert.True(t, lock.Equal(*u.LockedUntil))
	assert.Nil(t, u.LastLogin)
	assert.Nil(t, u.ResetTokenHash)
}

func TestUserRepo_FindByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(9)).
		WillReturnRows(userRows())

	_, err := NewUserRepo(db).FindByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_RecordFailedLogin(t *testing.T) {
	db, mock := newMock(t)
	until := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs(5, until, uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT failed_login_attempts, locked_until FROM users")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "locked_until"}).AddRow(5, until))
	mock.ExpectCommit()

	n, locked, err := NewUserRepo(db).RecordFailedLogin(context.Background(), 3, 5, until)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NotNil(t, locked)
	assert.True(t, until.Equal(*locked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_RecordFailedLoginMissingUser(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := NewUserRepo(db).RecordFailedLogin(context.Background(), 3, 5, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_RedeemResetToken(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).
		WithArgs("abc", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?, reset_token_hash=NULL")).
		WithArgs("newhash", uint64(11), "abc").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id=?")).
		WithArgs(uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	id, revoked, err := NewUserRepo(db).RedeemResetToken(context.Background(), "abc", "newhash", now)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), id)
	assert.Equal(t, int64(3), revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_RedeemResetTokenUnknown(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, _, err := NewUserRepo(db).RedeemResetToken(context.Background(), "nope", "newhash", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_RedeemResetTokenRollsBackOnFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens")).
		WillReturnError(errors.New("lock wait timeout exceeded"))
	mock.ExpectRollback()

	_, _, err := NewUserRepo(db).RedeemResetToken(context.Background(), "abc", "newhash", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_SetPasswordMissing(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash=?")).
		WithArgs("h", uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, NewUserRepo(db).SetPassword(context.Background(), 1, "h"), ErrNotFound)
}

func TestTokenRepo_FindRefresh(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cols := []string{"user_id", "expires_at"}

	t.Run("valid", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
			WithArgs("h").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(4, now.Add(time.Hour)))
		id, err := NewTokenRepo(db).FindRefresh(context.Background(), "h", now)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), id)
	})

	t.Run("expired row counts as missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(4, now))
		_, err := NewTokenRepo(db).FindRefresh(context.Background(), "h", now)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).
			WillReturnRows(sqlmock.NewRows(cols))
		_, err := NewTokenRepo(db).FindRefresh(context.Background(), "h", now)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTokenRepo_DeleteRefreshReportsRace(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("h").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("h").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTokenRepo(db)
	first, err := repo.DeleteRefresh(context.Background(), "h")
	require.NoError(t, err)
	second, err := repo.DeleteRefresh(context.Background(), "h")
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
}

func TestTokenRepo_DeleteForUserAndPurge(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id=?")).
		WithArgs(uint64(2)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE expires_at <= ?")).
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 8))

	repo := NewTokenRepo(db)
	n, err := repo.DeleteRefreshForUser(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = repo.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlacklistRepo(t *testing.T) {
	db, mock := newMock(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO token_blacklist")).
		WithArgs("h", exp).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM token_blacklist")).
		WithArgs("h", now).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM token_blacklist")).
		WithArgs("other", now).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM token_blacklist")).
		WillReturnError(errors.New("connection reset"))

	repo := NewBlacklistRepo(db)
	require.NoError(t, repo.Insert(context.Background(), "h", exp))

	ok, err := repo.IsBlacklisted(context.Background(), "h", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsBlacklisted(context.Background(), "other", now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.IsBlacklisted(context.Background(), "x", now)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
