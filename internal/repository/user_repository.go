package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/credit-repair-auth/internal/model"
)

const mysqlDuplicateEntry = 1062

const userColumns = `id,email,password_hash,first_name,last_name,role,is_active,
failed_login_attempts,locked_until,last_login,reset_token_hash,reset_token_expires,created_at,updated_at`

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail lower-cases and trims an address before it is stored or
// compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, u model.NewUser) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, first_name, last_name, role, is_active) VALUES (?,?,?,?,?,1)",
		NormalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName, string(u.Role))
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// RecordFailedLogin increments the failure counter in a single UPDATE so
// concurrent failures cannot under-count, and sets locked_until when the
// new count reaches threshold. It returns the state after the increment.
//
// MySQL evaluates SET assignments left to right, so locked_until is
// computed before the counter is bumped.
func (r *UserRepo) RecordFailedLogin(ctx context.Context, id uint64, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE users SET
locked_until = CASE WHEN failed_login_attempts + 1 >= ? THEN ? ELSE NULL END,
failed_login_attempts = failed_login_attempts + 1
WHERE id = ?`, threshold, lockUntil.UTC(), id)
	if err != nil {
		return 0, nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, nil, ErrNotFound
	}

	var (
		attempts int
		locked   sql.NullTime
	)
	if err := tx.QueryRowContext(ctx,
		"SELECT failed_login_attempts, locked_until FROM users WHERE id=?", id).Scan(&attempts, &locked); err != nil {
		return 0, nil, err
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	return attempts, nullTimePtr(locked), nil
}

// RecordSuccessfulLogin clears the failure state and stamps last_login in
// one statement.
func (r *UserRepo) RecordSuccessfulLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_login_attempts=0, locked_until=NULL, last_login=? WHERE id=?",
		at.UTC(), id)
	return err
}

// SetPassword replaces the password hash.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=UTC_TIMESTAMP() WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken stores the hash of a reset secret, replacing any earlier one.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, tokenHash string, expires time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token_hash=?, reset_token_expires=? WHERE id=?",
		tokenHash, expires.UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearResetToken drops any outstanding reset token for the user.
func (r *UserRepo) ClearResetToken(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token_hash=NULL, reset_token_expires=NULL WHERE id=?", id)
	return err
}

// RedeemResetToken finds the active user holding tokenHash with an
// unexpired token, sets passwordHash, clears the token and deletes every
// refresh token of the user, all inside one transaction. It returns the
// user id and the number of refresh tokens removed. The row lock taken by
// SELECT ... FOR UPDATE plus the guarded UPDATE mean two racing requests
// cannot both redeem the same secret, and a failure at any step leaves
// the token usable and the old password in place.
func (r *UserRepo) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uint64, int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var id uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users
WHERE reset_token_hash=? AND reset_token_expires > ? AND is_active=1
LIMIT 1 FOR UPDATE`, tokenHash, now.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	}
	if err != nil {
		return 0, 0, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash=?, reset_token_hash=NULL, reset_token_expires=NULL, updated_at=UTC_TIMESTAMP()
WHERE id=? AND reset_token_hash=?`,
		passwordHash, id, tokenHash)
	if err != nil {
		return 0, 0, err
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return 0, 0, ErrNotFound
	}

	res, err = tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", id)
	if err != nil {
		return 0, 0, err
	}
	revoked, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return id, revoked, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u                      model.User
		role                   string
		lockedUntil, lastLogin sql.NullTime
		resetHash              sql.NullString
		resetExpires           sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.IsActive,
		&u.FailedLoginAttempts, &lockedUntil, &lastLogin, &resetHash, &resetExpires, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	u.LockedUntil = nullTimePtr(lockedUntil)
	u.LastLogin = nullTimePtr(lastLogin)
	u.ResetTokenExpires = nullTimePtr(resetExpires)
	if resetHash.Valid {
		h := resetHash.String
		u.ResetTokenHash = &h
	}
	return u, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
