package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/credit-repair-auth/internal/audit"
	"github.com/iliyamo/credit-repair-auth/internal/config"
	"github.com/iliyamo/credit-repair-auth/internal/database"
	"github.com/iliyamo/credit-repair-auth/internal/handler"
	"github.com/iliyamo/credit-repair-auth/internal/lockout"
	"github.com/iliyamo/credit-repair-auth/internal/logger"
	"github.com/iliyamo/credit-repair-auth/internal/middleware"
	"github.com/iliyamo/credit-repair-auth/internal/queue"
	"github.com/iliyamo/credit-repair-auth/internal/ratelimit"
	"github.com/iliyamo/credit-repair-auth/internal/repository"
	"github.com/iliyamo/credit-repair-auth/internal/resettoken"
	"github.com/iliyamo/credit-repair-auth/internal/router"
	"github.com/iliyamo/credit-repair-auth/internal/service"
	"github.com/iliyamo/credit-repair-auth/internal/token"
	"github.com/iliyamo/credit-repair-auth/internal/utils"
)

// redisPinger adapts the Redis client to the readiness probe.
type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment wins anyway

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()
	msgCfg := config.LoadMessagingConfig()

	log := logger.New(cfg.Env, cfg.LogLevel, "credit-repair-auth")
	defer func() { _ = log.Sync() }()
	rec := audit.NewZapRecorder(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- store ----
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
	users := repository.NewUserRepo(db)
	refresh := repository.NewTokenRepo(db)
	blacklist := repository.NewBlacklistRepo(db)

	// ---- rate limit counters ----
	ready := map[string]handler.Pinger{"mysql": db}
	var authLimiter, resetLimiter ratelimit.Limiter
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable, rate limits are per process", zap.Error(err))
		authLimiter = ratelimit.NewMemoryLimiter(rlCfg.Auth.Max, rlCfg.Auth.Window)
		resetLimiter = ratelimit.NewMemoryLimiter(rlCfg.Reset.Max, rlCfg.Reset.Window)
	} else {
		defer rdb.Close()
		ready["redis"] = redisPinger{rdb}
		authLimiter = ratelimit.NewRedisLimiter(rdb, rlCfg.Auth.Max, rlCfg.Auth.Window)
		resetLimiter = ratelimit.NewRedisLimiter(rdb, rlCfg.Reset.Max, rlCfg.Reset.Window)
	}

	// ---- email ----
	mailer := service.NewEmailPublisher(msgCfg, cfg.FromEmail, log)
	defer mailer.Close()
	var deliverer queue.Deliverer = queue.LogDeliverer{Log: log}
	if msgCfg.SMTPHost != "" {
		port, err := strconv.Atoi(msgCfg.SMTPPort)
		if err != nil {
			log.Fatal("invalid SMTP_PORT", zap.String("value", msgCfg.SMTPPort))
		}
		deliverer = queue.NewSMTPDeliverer(msgCfg.SMTPHost, port, msgCfg.SMTPUser, msgCfg.SMTPPass, cfg.FromEmail)
	}
	go func() {
		if err := queue.StartEmailConsumer(ctx, msgCfg.AMQPURL, msgCfg.EmailQueue, deliverer, log); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("email consumer stopped", zap.Error(err))
		}
	}()

	// ---- auth core ----
	tokens, err := token.NewIssuer(token.Config{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
	})
	if err != nil {
		log.Fatal("token issuer", zap.Error(err))
	}
	auth := service.NewAuthService(service.Deps{
		Users:       users,
		Refresh:     refresh,
		Blacklist:   blacklist,
		Tokens:      tokens,
		Hasher:      utils.NewPasswordHasher(cfg.BcryptCost),
		Reset:       resettoken.NewManager(users, cfg.ResetTokenTTL),
		Lockout:     lockout.Policy{Threshold: cfg.LockoutThreshold, Duration: cfg.LockoutDuration},
		Mailer:      mailer,
		Audit:       rec,
		Log:         log,
		Timeout:     cfg.DBTimeout,
		FrontendURL: cfg.FrontendURL,
		ResetTTL:    cfg.ResetTokenTTL,
	})
	janitor := service.NewJanitor(blacklist, refresh, 30*time.Second, log, rec)
	go janitor.Run(ctx, cfg.JanitorInterval)

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	if err := router.UseClientIP(e, rlCfg.TrustedProxies); err != nil {
		log.Fatal("invalid TRUSTED_PROXIES", zap.Error(err))
	}
	e.Use(middleware.RequestLogger(log))
	router.RegisterRoutes(e, handler.Ready(ready))
	router.RegisterAuth(e, router.AuthDeps{
		Handler:       handler.NewAuthHandler(auth, janitor, log, rec),
		Authenticator: middleware.NewAuthenticator(tokens, users, blacklist, cfg.DBTimeout, log),
		Roles:         middleware.NewRoleGate(log, rec),
		RateLimit:     rlCfg,
		AuthLimiter:   authLimiter,
		ResetLimiter:  resetLimiter,
		Log:           log,
		Audit:         rec,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
}
