package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/credit-repair-auth/internal/audit"
	"github.com/iliyamo/credit-repair-auth/internal/model"
	"github.com/iliyamo/credit-repair-auth/internal/ratelimit"
	"github.com/iliyamo/credit-repair-auth/internal/repository"
	"github.com/iliyamo/credit-repair-auth/internal/token"
	"github.com/iliyamo/credit-repair-auth/internal/utils"
)

type fakeUsers struct {
	users map[uint64]model.User
	err   error
}

func (f *fakeUsers) FindByID(_ context.Context, id uint64) (model.User, error) {
	if f.err != nil {
		return model.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

type fakeBlacklist struct {
	mu     sync.Mutex
	hashes map[string]bool
	err    error
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, hash string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.hashes[hash], nil
}

func newIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	iss, err := token.NewIssuer(token.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "credit-repair-platform",
		Audience:      "credit-repair-users",
	})
	require.NoError(t, err)
	return iss
}

type authFixture struct {
	issuer    *token.Issuer
	users     *fakeUsers
	blacklist *fakeBlacklist
	auth      *Authenticator
	e         *echo.Echo
}

func newAuthFixture(t *testing.T) *authFixture {
	f := &authFixture{
		issuer: newIssuer(t),
		users: &fakeUsers{users: map[uint64]model.User{
			1: {ID: 1, Email: "jane@example.com", FirstName: "Jane", Role: model.RoleAdmin, IsActive: true},
			2: {ID: 2, Email: "off@example.com", Role: model.RoleUser, IsActive: false},
			3: {ID: 3, Email: "client@example.com", Role: model.RoleClient, IsActive: true},
		}},
		blacklist: &fakeBlacklist{hashes: map[string]bool{}},
		e:         echo.New(),
	}
	f.auth = NewAuthenticator(f.issuer, f.users, f.blacklist, time.Second, zap.NewNop())

	whoami := func(c echo.Context) error {
		ac, ok := AuthFrom(c)
		if !ok {
			return c.JSON(http.StatusOK, echo.Map{"anonymous": true})
		}
		raw, _ := AccessTokenFrom(c)
		return c.JSON(http.StatusOK, echo.Map{"id": ac.UserID, "role": ac.Role, "token": string(raw)})
	}
	f.e.GET("/required", whoami, f.auth.Require())
	f.e.GET("/optional", whoami, f.auth.Optional())
	return f
}

func (f *authFixture) token(t *testing.T, id uint64, role model.Role) token.AccessToken {
	t.Helper()
	tok, _, err := f.issuer.IssueAccess(id, "x@example.com", role)
	require.NoError(t, err)
	return tok
}

func do(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequire_MissingToken(t *testing.T) {
	f := newAuthFixture(t)
	rec := do(f.e, http.MethodGet, "/required", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Access token required", decode(t, rec)["error"])

	req := httptest.NewRequest(http.MethodGet, "/required", nil)
	req.Header.Set(echo.HeaderAuthorization, "Basic abc")
	rec = httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequire_MalformedAndExpired(t *testing.T) {
	f := newAuthFixture(t)

	rec := do(f.e, http.MethodGet, "/required", "not-a-jwt")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["error"])

	past := f.issuer.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	old, _, err := past.IssueAccess(1, "jane@example.com", model.RoleAdmin)
	require.NoError(t, err)
	rec = do(f.e, http.MethodGet, "/required", string(old))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Token expired", decode(t, rec)["error"])
}

func TestRequire_InactiveOrMissingUser(t *testing.T) {
	f := newAuthFixture(t)
	for _, id := range []uint64{2, 99} {
		rec := do(f.e, http.MethodGet, "/required", string(f.token(t, id, model.RoleUser)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid or inactive user", decode(t, rec)["error"])
	}
}

func TestRequire_RevokedToken(t *testing.T) {
	f := newAuthFixture(t)
	revoked := f.token(t, 1, model.RoleAdmin)
	other := f.token(t, 1, model.RoleAdmin)
	require.NotEqual(t, revoked, other)
	f.blacklist.hashes[utils.HashToken(string(revoked))] = true

	rec := do(f.e, http.MethodGet, "/required", string(revoked))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has been revoked", decode(t, rec)["error"])

	rec = do(f.e, http.MethodGet, "/required", string(other))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequire_StoreFailureIsNotASecurityDecision(t *testing.T) {
	f := newAuthFixture(t)
	f.users.err = context.DeadlineExceeded
	rec := do(f.e, http.MethodGet, "/required", string(f.token(t, 1, model.RoleAdmin)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	f.users.err = nil
	f.blacklist.err = errors.New("connection refused")
	rec = do(f.e, http.MethodGet, "/required", string(f.token(t, 1, model.RoleAdmin)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRequire_RoleComesFromStore(t *testing.T) {
	f := newAuthFixture(t)
	// token still says "user" but the row was promoted to admin
	rec := do(f.e, http.MethodGet, "/required", string(f.token(t, 1, model.RoleUser)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "admin", body["role"])
	assert.EqualValues(t, 1, body["id"])
}

func TestOptional(t *testing.T) {
	f := newAuthFixture(t)

	rec := do(f.e, http.MethodGet, "/optional", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["anonymous"])

	rec = do(f.e, http.MethodGet, "/optional", "garbage")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["anonymous"])

	rec = do(f.e, http.MethodGet, "/optional", string(f.token(t, 2, model.RoleUser)))
	assert.Equal(t, true, decode(t, rec)["anonymous"])

	rec = do(f.e, http.MethodGet, "/optional", string(f.token(t, 3, model.RoleClient)))
	assert.Equal(t, "client", decode(t, rec)["role"])

	f.users.err = errors.New("db down")
	rec = do(f.e, http.MethodGet, "/optional", string(f.token(t, 3, model.RoleClient)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRoleGate(t *testing.T) {
	f := newAuthFixture(t)
	rec := &audit.Memory{}
	gate := NewRoleGate(zap.NewNop(), rec)
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	f.e.GET("/admin", ok, f.auth.Require(), gate.RequireAdmin())
	f.e.GET("/staff", ok, f.auth.Require(), gate.RequireStaff())
	f.e.GET("/client", ok, f.auth.Require(), gate.RequireClient())
	f.e.GET("/ungated", ok, gate.RequireManager())

	admin := string(f.token(t, 1, model.RoleAdmin))
	client := string(f.token(t, 3, model.RoleClient))

	assert.Equal(t, http.StatusNoContent, do(f.e, http.MethodGet, "/admin", admin).Code)
	assert.Equal(t, http.StatusNoContent, do(f.e, http.MethodGet, "/staff", admin).Code)
	assert.Equal(t, http.StatusNoContent, do(f.e, http.MethodGet, "/client", client).Code)

	denied := do(f.e, http.MethodGet, "/client", admin)
	assert.Equal(t, http.StatusForbidden, denied.Code)
	body := decode(t, denied)
	assert.Equal(t, "Insufficient permissions", body["error"])
	assert.Equal(t, "Access denied. Required role(s): client", body["message"])

	assert.Equal(t, http.StatusForbidden, do(f.e, http.MethodGet, "/admin", client).Code)
	assert.Equal(t, []string{audit.EventPermissionDenied, audit.EventPermissionDenied}, rec.Names())

	assert.Equal(t, http.StatusUnauthorized, do(f.e, http.MethodGet, "/ungated", admin).Code)
}

func TestRoleGate_SuperAdminIsAdmin(t *testing.T) {
	e := echo.New()
	gate := NewRoleGate(nil, nil)
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				SetAuth(c, &model.AuthContext{UserID: 5, Role: model.RoleSuperAdmin}, "t", nil)
				return next(c)
			}
		},
		gate.RequireAdmin())
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", "").Code)
}

func loginLike(e *echo.Echo, ip string, succeed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":50000"
	if succeed {
		req.Header.Set("X-Test-Outcome", "ok")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newLimitedEcho(l ratelimit.Limiter, skip bool, rec audit.Recorder) *echo.Echo {
	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	h := func(c echo.Context) error {
		if c.Request().Header.Get("X-Test-Outcome") == "ok" {
			return c.JSON(http.StatusOK, echo.Map{"message": "Login successful"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid credentials"})
	}
	e.POST("/login", h, RateLimit(l, RateLimitOptions{
		Name: "auth", Prefix: "rl", SkipSuccessful: skip,
		Message: "Too many authentication attempts, please try again later.",
		Audit:   rec,
	}))
	return e
}

func TestRateLimit_SixthFailureRejected(t *testing.T) {
	events := &audit.Memory{}
	e := newLimitedEcho(ratelimit.NewMemoryLimiter(5, 15*time.Minute), true, events)

	for i := 0; i < 5; i++ {
		rec := loginLike(e, "10.0.0.1", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := loginLike(e, "10.0.0.1", true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
	body := decode(t, rec)
	assert.Equal(t, "Too many requests", body["error"])
	assert.EqualValues(t, 900, body["retryAfter"])
	assert.Equal(t, []string{audit.EventRateLimited}, events.Names())

	// a different client is unaffected
	assert.Equal(t, http.StatusOK, loginLike(e, "10.0.0.2", true).Code)
}

func TestRateLimit_SuccessfulRequestsDoNotCount(t *testing.T) {
	e := newLimitedEcho(ratelimit.NewMemoryLimiter(5, 15*time.Minute), true, nil)

	for i := 0; i < 4; i++ {
		loginLike(e, "10.0.0.3", false)
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, loginLike(e, "10.0.0.3", true).Code)
	}
	assert.Equal(t, http.StatusUnauthorized, loginLike(e, "10.0.0.3", false).Code)
	assert.Equal(t, http.StatusTooManyRequests, loginLike(e, "10.0.0.3", true).Code)
}

func TestRateLimit_WithoutSkipEverythingCounts(t *testing.T) {
	e := newLimitedEcho(ratelimit.NewMemoryLimiter(3, time.Hour), false, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, loginLike(e, "10.0.0.4", true).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, loginLike(e, "10.0.0.4", true).Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis: connection refused")
}
func (brokenLimiter) Undo(context.Context, string) error { return nil }

func TestRateLimit_FailsOpen(t *testing.T) {
	e := newLimitedEcho(brokenLimiter{}, true, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusUnauthorized, loginLike(e, "10.0.0.5", false).Code)
	}
}

func TestRateLimit_IgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	e := newLimitedEcho(ratelimit.NewMemoryLimiter(5, 15*time.Minute), true, nil)
	ext, err := ClientIP(nil)
	require.NoError(t, err)
	e.IPExtractor = ext

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.7:4242"
		req.Header.Set(echo.HeaderXForwardedFor, xff)
		req.Header.Set(echo.HeaderXRealIP, xff)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, send(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.99"))
}

func TestClientIP(t *testing.T) {
	req := func(remote, xff string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		if xff != "" {
			r.Header.Set(echo.HeaderXForwardedFor, xff)
		}
		return r
	}

	direct, err := ClientIP(nil)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", direct(req("203.0.113.7:4242", "198.51.100.1")))

	// a private peer is not trusted unless listed
	behind, err := ClientIP([]string{"192.0.2.10"})
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", behind(req("10.1.1.1:80", "198.51.100.1")))
	assert.Equal(t, "198.51.100.1", behind(req("192.0.2.10:80", "198.51.100.1")))
	// spoofed hops to the left of the real client are ignored
	assert.Equal(t, "198.51.100.1", behind(req("192.0.2.10:80", "1.2.3.4, 198.51.100.1")))

	lb, err := ClientIP([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.2", lb(req("10.3.0.1:80", "198.51.100.2, 10.9.9.9")))

	_, err = ClientIP([]string{"not-an-ip"})
	assert.Error(t, err)
	_, err = ClientIP([]string{"10.0.0.0/99"})
	assert.Error(t, err)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway) })

	rec := do(e, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "req-123", entries[1].ContextMap()["request_id"])
}
