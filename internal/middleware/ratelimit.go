package middleware

import (
    "context"
    "errors"
    "math"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/credit-repair-auth/internal/apperr"
    "github.com/iliyamo/credit-repair-auth/internal/audit"
    "github.com/iliyamo/credit-repair-auth/internal/ratelimit"
)

// RateLimitOptions configures one named limiter instance.
type RateLimitOptions struct {
    Name           string // "auth" or "reset"; part of the key
    Prefix         string // key namespace, e.g. "rl"
    Message        string // client-facing message on 429
    SkipSuccessful bool   // undo the count when the handler answers < 400
    Logger         *zap.Logger
    Audit          audit.Recorder
}

// RateLimit counts requests per client IP in a fixed window and rejects
// the request with 429 before the handler runs once the window is full.
//
// If the limiter itself fails (Redis down) the request is let through and
// the failure is logged: the limiter throttles, it does not authenticate.
func RateLimit(l ratelimit.Limiter, opts RateLimitOptions) echo.MiddlewareFunc {
    log := opts.Logger
    if log == nil {
        log = zap.NewNop()
    }
    rec := opts.Audit
    if rec == nil {
        rec = audit.Nop{}
    }
    msg := opts.Message
    if msg == "" {
        msg = "Too many requests, please try again later."
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(opts.Prefix, opts.Name, c)
            ctx := c.Request().Context()

            res, err := l.Allow(ctx, key)
            if err != nil {
                log.Error("rate limiter unavailable, allowing request",
                    zap.String("limiter", opts.Name), zap.String("key", key), zap.Error(err))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
            h.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
            h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(res)))

            if !res.Allowed {
                secs := ceilSeconds(res)
                log.Warn("rate limit exceeded",
                    zap.String("limiter", opts.Name),
                    zap.String("ip", c.RealIP()),
                    zap.Int("count", res.Count),
                    zap.Int("retry_after", secs))
                rec.Record(context.WithoutCancel(ctx), audit.Event{
                    Name:     audit.EventRateLimited,
                    IP:       c.RealIP(),
                    Reason:   opts.Name + " limit exceeded",
                    Metadata: map[string]string{"path": c.Path()},
                })
                e := apperr.New(apperr.RateLimited, msg)
                e.RetryAfterSeconds = secs
                return RespondError(c, e)
            }

            err = next(c)

            if opts.SkipSuccessful && succeeded(c, err) {
                if uerr := l.Undo(context.WithoutCancel(ctx), key); uerr != nil {
                    log.Error("rate limiter undo failed",
                        zap.String("limiter", opts.Name), zap.String("key", key), zap.Error(uerr))
                }
            }
            return err
        }
    }
}

// succeeded reports whether the handler produced a response below 400.
// Handlers normally write their own response; a returned *echo.HTTPError
// carries the status Echo is about to write.
func succeeded(c echo.Context, err error) bool {
    if err != nil {
        var he *echo.HTTPError
        if errors.As(err, &he) {
            return he.Code < http.StatusBadRequest
        }
        return false
    }
    return c.Response().Status < http.StatusBadRequest
}

func ceilSeconds(res ratelimit.Result) int {
    secs := int(math.Ceil(res.RetryAfter.Seconds()))
    if secs < 1 {
        secs = 1
    }
    return secs
}

func buildRateKey(prefix, name string, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    parts := []string{}
    if prefix != "" {
        parts = append(parts, prefix)
    }
    parts = append(parts, name, "ip", ip)
    return strings.Join(parts, ":")
}
