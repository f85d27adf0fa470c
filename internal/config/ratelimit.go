package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// RateLimitConfig configures the per-IP fixed-window limiters placed in
// front of the credential endpoints.
type RateLimitConfig struct {
    Enabled bool
    Prefix  string
    Auth    WindowConfig // register + login
    Reset   WindowConfig // forgot-password

    // TrustedProxies lists the CIDRs or addresses of reverse proxies whose
    // X-Forwarded-For entries are believed. Empty means the socket peer is
    // the client.
    TrustedProxies []string
}

// WindowConfig is one fixed window: at most Max requests per Window.
type WindowConfig struct {
    Max    int
    Window time.Duration
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
        Auth: WindowConfig{
            Max:    envInt("AUTH_RATE_LIMIT_MAX", 5),
            Window: envDur("AUTH_RATE_LIMIT_WINDOW", 15*time.Minute),
        },
        Reset: WindowConfig{
            Max:    envInt("RESET_RATE_LIMIT_MAX", 3),
            Window: envDur("RESET_RATE_LIMIT_WINDOW", 60*time.Minute),
        },
        TrustedProxies: envList("TRUSTED_PROXIES"),
    }
    for _, w := range []*WindowConfig{&def.Auth, &def.Reset} {
        if w.Max < 1 { w.Max = 1 }
        if w.Window <= 0 { w.Window = time.Minute }
    }
    return def
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := ParseDuration(v); err == nil { return dur }
    return d
}
func envList(k string) []string {
    var out []string
    for _, v := range strings.Split(os.Getenv(k), ",") {
        if v = strings.TrimSpace(v); v != "" { out = append(out, v) }
    }
    return out
}
