// Package schedule refreshes the timetable cache ahead of expiry.
//
// Every CheckInterval it looks at when the cached set was fetched and, if
// there is none or it is older than TTL minus Lead, asks the target for a
// new pass. Readers therefore rarely hit an expired cache.
package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Target is what the scheduler keeps warm.
type Target interface {
	FetchedAt() (time.Time, bool)
	Prefetch(ctx context.Context) error
}

// Config controls the scheduler behaviour.
type Config struct {
	// CheckInterval is how often the scheduler checks the cache age.
	CheckInterval time.Duration
	// TTL is the cache freshness window.
	TTL time.Duration
	// Lead is how long before expiry a refresh is triggered.
	Lead time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.Lead < 0 || c.Lead >= c.TTL {
		c.Lead = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Scheduler triggers refreshes of a Target.
type Scheduler struct {
	target Target
	config Config
	logger *slog.Logger
}

// New creates a refresh scheduler.
func New(t Target, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{target: t, config: cfg, logger: logger}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler: started",
		"check_interval", s.config.CheckInterval,
		"ttl", s.config.TTL,
		"lead", s.config.Lead)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return
		case <-ticker.C:
			if err := s.Check(ctx); err != nil {
				s.logger.Warn("scheduler: refresh failed", "error", err)
			}
		}
	}
}

// Check runs one iteration: refresh if the cache is missing or due.
func (s *Scheduler) Check(ctx context.Context) error {
	if !s.Due() {
		return nil
	}
	s.logger.Debug("scheduler: refreshing")
	return s.target.Prefetch(ctx)
}

// Due reports whether the target needs a refresh now.
func (s *Scheduler) Due() bool {
	at, ok := s.target.FetchedAt()
	if !ok {
		return true
	}
	return s.config.Now().Sub(at) >= s.config.TTL-s.config.Lead
}
