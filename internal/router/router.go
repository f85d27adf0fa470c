package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/credit-repair-auth/internal/audit"
	"github.com/iliyamo/credit-repair-auth/internal/config"
	"github.com/iliyamo/credit-repair-auth/internal/handler"
	"github.com/iliyamo/credit-repair-auth/internal/middleware"
	"github.com/iliyamo/credit-repair-auth/internal/ratelimit"
)

// RegisterRoutes registers the probes. Ready may be nil, in which case
// only the liveness route is exposed.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// UseClientIP sets how e resolves the client address that the rate
// limiters key on. Forwarding headers are honored only when they arrive
// from one of the trusted proxies.
func UseClientIP(e *echo.Echo, trustedProxies []string) error {
	ext, err := middleware.ClientIP(trustedProxies)
	if err != nil {
		return err
	}
	e.IPExtractor = ext
	return nil
}

// AuthDeps is everything RegisterAuth wires together.
type AuthDeps struct {
	Handler       *handler.AuthHandler
	Authenticator *middleware.Authenticator
	Roles         *middleware.RoleGate
	RateLimit     config.RateLimitConfig
	AuthLimiter   ratelimit.Limiter // register + login
	ResetLimiter  ratelimit.Limiter // forgot-password
	Log           *zap.Logger
	Audit         audit.Recorder
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware. Credential endpoints live under /v1/auth; the
// maintenance endpoint lives under /v1/admin and requires an admin.
func RegisterAuth(e *echo.Echo, d AuthDeps) {
	a := d.Handler
	authLimit, resetLimit := limiters(d)

	g := e.Group("/v1/auth")
	// Failed attempts count against the per-IP budget; successful ones are
	// handed back so a busy office behind one NAT is not throttled.
	g.POST("/register", a.Register, authLimit...)
	g.POST("/login", a.Login, authLimit...)
	g.POST("/refresh", a.Refresh)
	g.POST("/forgot-password", a.ForgotPassword, resetLimit...)
	g.POST("/reset-password", a.ResetPassword)

	g.GET("/status", a.Status, d.Authenticator.Optional())
	g.POST("/logout", a.Logout, d.Authenticator.Require())
	g.GET("/me", a.Me, d.Authenticator.Require())
	g.POST("/change-password", a.ChangePassword, d.Authenticator.Require())

	admin := e.Group("/v1/admin", d.Authenticator.Require(), d.Roles.RequireAdmin())
	admin.POST("/auth/purge", a.Purge)
}

// limiters returns the middleware chains for the two limited route sets.
// Both are empty when rate limiting is disabled or no limiter is wired.
func limiters(d AuthDeps) (auth, reset []echo.MiddlewareFunc) {
	if !d.RateLimit.Enabled {
		return nil, nil
	}
	if d.AuthLimiter != nil {
		auth = append(auth, middleware.RateLimit(d.AuthLimiter, middleware.RateLimitOptions{
			Name:           "auth",
			Prefix:         d.RateLimit.Prefix,
			Message:        "Too many authentication attempts, please try again later.",
			SkipSuccessful: true,
			Logger:         d.Log,
			Audit:          d.Audit,
		}))
	}
	if d.ResetLimiter != nil {
		reset = append(reset, middleware.RateLimit(d.ResetLimiter, middleware.RateLimitOptions{
			Name:    "reset",
			Prefix:  d.RateLimit.Prefix,
			Message: "Too many password reset attempts, please try again later.",
			Logger:  d.Log,
			Audit:   d.Audit,
		}))
	}
	return auth, reset
}
