package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/aryan0dhankhar/leavedesk/internal/observability/metrics"
	"github.com/aryan0dhankhar/leavedesk/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/leavedesk/internal/security/middleware"
)

// RejectMessage is returned with 429 responses
const RejectMessage = "Too many requests from this IP. Please try again later."

// Config describes the per-IP budget
type Config struct {
	Requests int64
	Window   time.Duration
	Disabled bool
	Prefix   string
	// TrustForwardHeader keys clients by X-Forwarded-For / X-Real-IP
	TrustForwardHeader bool
	// ExemptPaths bypass limiting entirely
	ExemptPaths []string
}

// DefaultConfig allows 100 requests per 15 minutes per client IP
func DefaultConfig() Config {
	return Config{
		Requests:    100,
		Window:      15 * time.Minute,
		Prefix:      "leavedesk:ratelimit",
		ExemptPaths: []string{"/healthz", "/readyz", "/metrics"},
	}
}

type Limiter struct {
	lim     *limiter.Limiter
	breaker *circuitbreaker.CircuitBreaker
	cfg     Config
	exempt  map[string]bool
	log     *slog.Logger
}

// NewMemoryLimiter keeps counters in process memory
func NewMemoryLimiter(cfg Config, log *slog.Logger) *Limiter {
	store := memorystore.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          cfg.Prefix,
		CleanUpInterval: time.Minute,
	})
	return newLimiter(store, cfg, log)
}

// NewRedisLimiter shares counters across instances through Redis
func NewRedisLimiter(client *goredis.Client, cfg Config, log *slog.Logger) (*Limiter, error) {
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   cfg.Prefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis rate limit store: %w", err)
	}
	return newLimiter(store, cfg, log), nil
}

func newLimiter(store limiter.Store, cfg Config, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Requests <= 0 {
		cfg.Requests = def.Requests
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.ExemptPaths == nil {
		cfg.ExemptPaths = def.ExemptPaths
	}

	exempt := make(map[string]bool, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = true
	}

	breaker := circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second, nil)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		log.Warn("rate limit store breaker changed state",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	rate := limiter.Rate{Period: cfg.Window, Limit: cfg.Requests}
	return &Limiter{
		lim:     limiter.New(store, rate, limiter.WithTrustForwardHeader(cfg.TrustForwardHeader)),
		breaker: breaker,
		cfg:     cfg,
		exempt:  exempt,
		log:     log,
	}
}

// Allow consumes one request from key's budget
func (l *Limiter) Allow(ctx context.Context, key string) (limiter.Context, error) {
	var lc limiter.Context
	err := l.breaker.Execute(func() error {
		var err error
		lc, err = l.lim.Get(ctx, key)
		return err
	})
	return lc, err
}

// Middleware enforces the budget per client IP. Store failures let the request through.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l.cfg.Disabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := l.lim.GetIPKey(r)
			lc, err := l.Allow(r.Context(), key)
			if err != nil {
				metrics.IncRateLimitStoreError()
				l.log.Error("rate limit check failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))

			if lc.Reached {
				metrics.IncRateLimited()
				l.log.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("path", r.URL.Path),
				)
				retryAfter := lc.Reset - time.Now().Unix()
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				middleware.WriteError(w, http.StatusTooManyRequests, RejectMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
