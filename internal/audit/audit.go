// Package audit records security-relevant state changes (lockouts, token
// revocation, password changes) as structured log events.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event names.
const (
	EventRegister         = "auth.register"
	EventLoginSuccess     = "auth.login.success"
	EventLoginFailure     = "auth.login.failure"
	EventLockout          = "auth.lockout"
	EventLogout           = "auth.logout"
	EventTokenBlacklisted = "auth.token.blacklisted"
	EventRefresh          = "auth.refresh"
	EventResetRequested   = "auth.password_reset.requested"
	EventResetConsumed    = "auth.password_reset.consumed"
	EventPasswordChanged  = "auth.password_changed"
	EventPermissionDenied = "auth.permission_denied"
	EventRateLimited      = "auth.rate_limited"
	EventSessionsRevoked  = "auth.sessions.revoked"
	EventStoragePurged    = "auth.storage.purged"
)

// Event is one audit record.
type Event struct {
	ID       string
	Time     time.Time
	Name     string
	UserID   uint64
	Email    string
	IP       string
	Success  bool
	Reason   string
	Metadata map[string]string
}

// Recorder emits audit events. Implementations must not block the caller
// on slow sinks.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// ZapRecorder writes events to a named zap logger.
type ZapRecorder struct {
	log *zap.Logger
	now func() time.Time
}

// NewZapRecorder derives an "audit" child logger from base.
func NewZapRecorder(base *zap.Logger) *ZapRecorder {
	return &ZapRecorder{log: base.Named("audit"), now: time.Now}
}

func (r *ZapRecorder) Record(_ context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = r.now().UTC()
	}
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("event", ev.Name),
		zap.Time("at", ev.Time),
		zap.Bool("success", ev.Success),
	}
	if ev.UserID != 0 {
		fields = append(fields, zap.Uint64("user_id", ev.UserID))
	}
	if ev.Email != "" {
		fields = append(fields, zap.String("email", ev.Email))
	}
	if ev.IP != "" {
		fields = append(fields, zap.String("ip", ev.IP))
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("reason", ev.Reason))
	}
	for k, v := range ev.Metadata {
		fields = append(fields, zap.String("meta."+k, v))
	}
	if ev.Success {
		r.log.Info("security event", fields...)
		return
	}
	r.log.Warn("security event", fields...)
}

// Nop drops events.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// Memory keeps events in a slice. Tests use it to assert on emitted events.
type Memory struct {
	mu     sync.Mutex
	Events []Event
}

func (m *Memory) Record(_ context.Context, ev Event) {
	m.mu.Lock()
	m.Events = append(m.Events, ev)
	m.mu.Unlock()
}

// Names returns the recorded event names in order.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, ev := range m.Events {
		out = append(out, ev.Name)
	}
	return out
}
