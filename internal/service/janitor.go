package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/credit-repair-auth/internal/audit"
)

// Purger deletes rows whose expiry has passed.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// PurgeResult reports how many rows a purge removed.
type PurgeResult struct {
	Blacklist     int64 `json:"blacklistEntries"`
	RefreshTokens int64 `json:"refreshTokens"`
}

// Janitor removes expired blacklist entries and refresh tokens. Expired
// rows are already ignored by every lookup, so this is storage hygiene
// only.
type Janitor struct {
	blacklist Purger
	refresh   Purger
	timeout   time.Duration
	log       *zap.Logger
	audit     audit.Recorder
	now       func() time.Time
}

func NewJanitor(blacklist, refresh Purger, timeout time.Duration, log *zap.Logger, rec audit.Recorder) *Janitor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Janitor{blacklist: blacklist, refresh: refresh, timeout: timeout, log: log, audit: rec, now: time.Now}
}

// Purge runs one pass. A failure in one table does not stop the other.
func (j *Janitor) Purge(ctx context.Context) (PurgeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	now := j.now().UTC()
	var res PurgeResult
	bl, blErr := j.blacklist.PurgeExpired(ctx, now)
	if blErr != nil {
		j.log.Error("purge blacklist failed", zap.Error(blErr))
	}
	rt, rtErr := j.refresh.PurgeExpired(ctx, now)
	if rtErr != nil {
		j.log.Error("purge refresh tokens failed", zap.Error(rtErr))
	}
	res.Blacklist, res.RefreshTokens = bl, rt

	if blErr != nil {
		return res, blErr
	}
	if rtErr != nil {
		return res, rtErr
	}
	j.log.Info("expired auth rows purged", zap.Int64("blacklist", bl), zap.Int64("refresh_tokens", rt))
	return res, nil
}

// Run purges every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if res, err := j.Purge(ctx); err == nil {
				j.audit.Record(ctx, audit.Event{
					Name: audit.EventStoragePurged, Success: true,
					Metadata: map[string]string{
						"trigger":        "schedule",
						"blacklist":      strconv.FormatInt(res.Blacklist, 10),
						"refresh_tokens": strconv.FormatInt(res.RefreshTokens, 10),
					},
				})
			}
		}
	}
}
