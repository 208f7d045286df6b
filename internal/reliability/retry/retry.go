package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Config holds retry strategy configuration.
// The backoff doubles from InitialBackoff and is capped at MaxBackoff.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns sensible retry defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Retryable is a function that can be retried
type Retryable[T any] func(ctx context.Context) (T, error)

// Do executes fn until it succeeds, attempts run out, or ctx is done
func Do[T any](ctx context.Context, cfg *Config, log *slog.Logger, op string, fn Retryable[T]) (T, error) {
	var result T
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	maxAttempts := max(cfg.MaxAttempts, 1)

	attempt := 0
	err := goretry.Do(ctx, newBackoff(cfg), func(ctx context.Context) error {
		attempt++
		r, err := fn(ctx)
		if err != nil {
			if attempt < maxAttempts {
				log.Warn("operation failed, retrying",
					slog.String("operation", op),
					slog.Int("attempt", attempt),
					slog.Int("max_attempts", maxAttempts),
					slog.String("error", err.Error()),
				)
			}
			return goretry.RetryableError(err)
		}
		result = r
		return nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("operation '%s' failed after %d attempts: %w", op, attempt, err)
	}
	return result, nil
}

func newBackoff(cfg *Config) goretry.Backoff {
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = time.Millisecond
	}
	b := goretry.NewExponential(initial)
	if cfg.MaxBackoff > 0 {
		b = goretry.WithCappedDuration(cfg.MaxBackoff, b)
	}
	return goretry.WithMaxRetries(uint64(max(cfg.MaxAttempts, 1)-1), b)
}
