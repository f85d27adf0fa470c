package repository

import (
	"context"
	"database/sql"
	"time"
)

// BlacklistRepo stores hashes of access tokens revoked before expiry.
type BlacklistRepo struct{ DB *sql.DB }

func NewBlacklistRepo(db *sql.DB) *BlacklistRepo { return &BlacklistRepo{DB: db} }

// Insert blacklists a token hash. Inserting the same hash twice is a no-op.
func (r *BlacklistRepo) Insert(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO token_blacklist (token_hash, expires_at) VALUES (?,?)",
		tokenHash, expiresAt.UTC())
	return err
}

// IsBlacklisted reports whether a non-expired entry exists for tokenHash.
func (r *BlacklistRepo) IsBlacklisted(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM token_blacklist WHERE token_hash=? AND expires_at > ? LIMIT 1",
		tokenHash, now.UTC()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PurgeExpired removes entries for tokens that would have expired anyway.
func (r *BlacklistRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM token_blacklist WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
