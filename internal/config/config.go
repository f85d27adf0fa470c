package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets are required; policy knobs fall back to
// the platform defaults.
type Config struct {
    Env      string // application environment (e.g. "dev", "prod")
    Port     string // HTTP port to listen on
    LogLevel string // zap level name

    DBUser    string        // database username
    DBPass    string        // database password (optional)
    DBHost    string        // database host address
    DBPort    string        // database port number
    DBName    string        // database name
    DBTimeout time.Duration // upper bound for a single store operation

    JWTSecret        string        // secret used to sign access tokens
    JWTRefreshSecret string        // separate secret used to sign refresh tokens
    AccessTTL        time.Duration // access token lifetime
    RefreshTTL       time.Duration // refresh token lifetime
    JWTIssuer        string        // iss claim
    JWTAudience      string        // aud claim on access tokens
    BcryptCost       int           // bcrypt cost for password hashing

    LockoutThreshold int           // failed attempts before an account locks
    LockoutDuration  time.Duration // how long a lock lasts
    ResetTokenTTL    time.Duration // password reset link lifetime

    FrontendURL string // base URL used in reset links
    FromEmail   string // sender address for outbound mail

    JanitorInterval time.Duration // how often expired tokens are purged
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    cfg := Config{
        Env:      must("APP_ENV"),
        Port:     must("APP_PORT"),
        LogLevel: envStr("LOG_LEVEL", "info"),

        DBUser:    must("DB_USER"),
        DBPass:    os.Getenv("DB_PASS"), // empty allowed
        DBHost:    must("DB_HOST"),
        DBPort:    must("DB_PORT"),
        DBName:    must("DB_NAME"),
        DBTimeout: envDur("DB_TIMEOUT", 5*time.Second),

        JWTSecret:        must("JWT_SECRET"),
        JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
        AccessTTL:        mustDur("JWT_EXPIRES_IN", 24*time.Hour),
        RefreshTTL:       7 * 24 * time.Hour,
        JWTIssuer:        envStr("JWT_ISSUER", "credit-repair-platform"),
        JWTAudience:      envStr("JWT_AUDIENCE", "credit-repair-users"),
        BcryptCost:       envInt("BCRYPT_COST", 12),

        LockoutThreshold: envInt("LOCKOUT_THRESHOLD", 5),
        LockoutDuration:  envDur("LOCKOUT_DURATION", 30*time.Minute),
        ResetTokenTTL:    envDur("RESET_TOKEN_TTL", 10*time.Minute),

        FrontendURL: envStr("FRONTEND_URL", "http://localhost:4200"),
        FromEmail:   envStr("FROM_EMAIL", "no-reply@credit-repair.local"),

        JanitorInterval: envDur("JANITOR_INTERVAL", time.Hour),
    }
    if cfg.JWTSecret == cfg.JWTRefreshSecret {
        log.Fatalf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
    }
    if cfg.LockoutThreshold < 1 {
        cfg.LockoutThreshold = 1
    }
    return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustDur accepts Go durations ("24h", "90m") and whole days ("7d").
// An unset variable yields def; a set but unparsable one is fatal.
func mustDur(key string, def time.Duration) time.Duration {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    d, err := ParseDuration(s)
    if err != nil {
        log.Fatalf("invalid duration for %s: %q", key, s)
    }
    return d
}

// ParseDuration extends time.ParseDuration with a whole-day "Nd" form.
func ParseDuration(s string) (time.Duration, error) {
    if n := len(s); n > 1 && s[n-1] == 'd' {
        days, err := strconv.Atoi(s[:n-1])
        if err == nil {
            return time.Duration(days) * 24 * time.Hour, nil
        }
    }
    return time.ParseDuration(s)
}
