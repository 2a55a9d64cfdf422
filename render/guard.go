package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// GuardConfig configures a Guard.
type GuardConfig struct {
	// Name identifies the guarded provider in errors and logs.
	Name string

	// MaxRetries is the number of retries after the first attempt. Default: 2.
	// Negative disables retries.
	MaxRetries int

	// InitialInterval and MaxInterval bound the exponential backoff between
	// attempts. Defaults: 2s and 30s.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// BreakerThreshold consecutive failed renders open the breaker for
	// BreakerReset. Defaults: 3 and 5m.
	BreakerThreshold int
	BreakerReset     time.Duration

	// Now is the breaker clock. Default: time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (c *GuardConfig) defaults() {
	if c.Name == "" {
		c.Name = "upstream"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 2 * time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Guard wraps a provider with retries and a circuit breaker. Every error
// it returns wraps ErrUpstreamUnavailable.
type Guard struct {
	next    Provider
	cfg     GuardConfig
	breaker *Breaker
}

// NewGuard guards p.
func NewGuard(p Provider, cfg GuardConfig) *Guard {
	cfg.defaults()
	return &Guard{
		next:    p,
		cfg:     cfg,
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerReset, cfg.Now),
	}
}

// Breaker exposes the guard's breaker state.
func (g *Guard) Breaker() *Breaker { return g.breaker }

// Render calls the wrapped provider, retrying with exponential backoff.
// The breaker counts one failure per exhausted Render, not per attempt.
func (g *Guard) Render(ctx context.Context) (string, error) {
	if !g.breaker.Allow() {
		return "", &ErrCircuitOpen{Provider: g.cfg.Name}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = g.cfg.InitialInterval
	eb.MaxInterval = g.cfg.MaxInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(g.cfg.MaxRetries)), ctx)

	attempt := 0
	page, err := backoff.RetryNotifyWithData(
		func() (string, error) {
			attempt++
			page, err := g.next.Render(ctx)
			if err != nil && (ctx.Err() != nil || errors.Is(err, ErrInsufficient)) {
				return "", backoff.Permanent(err)
			}
			return page, err
		},
		policy,
		func(err error, d time.Duration) {
			g.cfg.Logger.WarnContext(ctx, "render: retrying",
				"provider", g.cfg.Name,
				"attempt", attempt,
				"backoff", d,
				"error", err)
		},
	)
	if err != nil {
		g.breaker.RecordFailure()
		return "", fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, g.cfg.Name, err)
	}
	g.breaker.RecordSuccess()
	return page, nil
}
