package timetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/mykonosbus/catalog"
	"github.com/hazyhaar/mykonosbus/observability"
	"github.com/hazyhaar/mykonosbus/timetable/internal/schedule"
	"github.com/hazyhaar/mykonosbus/timetable/internal/store"
)

// Config configures a Service.
type Config struct {
	Catalog  *catalog.Catalog
	Renderer Renderer

	// TTL is the freshness window of a cached set. Default 1h.
	TTL time.Duration
	// PassTimeout bounds one pass, rendering included. Default 90s.
	PassTimeout time.Duration

	// SnapshotPath enables SQLite persistence of good sets. Empty disables it.
	SnapshotPath  string
	KeepSnapshots int

	Metrics     *observability.Metrics
	Diagnostics Diagnostics
	Logger      *slog.Logger
	Now         Clock
	Extract     ExtractFunc
}

func (c *Config) defaults() {
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = 90 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Diagnostics == nil {
		c.Diagnostics = LogDiagnostics(c.Logger)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Extract == nil {
		c.Extract = ExtractTable
	}
}

// Service runs passes and caches their results. At most one pass runs at a
// time; concurrent callers share it.
type Service struct {
	cfg    Config
	cache  store.Memory[ScheduleSet]
	group  singleflight.Group
	diag   Diagnostics
	logger *slog.Logger

	// snapMu guards snaps; a detached pass may persist while Close runs.
	snapMu sync.RWMutex
	snaps  *store.Snapshots
}

// New creates a Service. It opens the snapshot database when
// cfg.SnapshotPath is set.
func New(cfg Config) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("timetable: catalog is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("timetable: renderer is required")
	}
	cfg.defaults()

	s := &Service{cfg: cfg, logger: cfg.Logger}
	s.diag = Tee(cfg.Diagnostics, DiagnosticsFunc(func(d Diagnostic) {
		cfg.Metrics.Diagnostic(string(d.Kind))
	}))

	if cfg.SnapshotPath != "" {
		snaps, err := store.Open(cfg.SnapshotPath, cfg.KeepSnapshots)
		if err != nil {
			return nil, fmt.Errorf("timetable: %w", err)
		}
		s.snaps = snaps
	}
	return s, nil
}

// Close releases the snapshot database once any in-flight save has
// finished. Passes after Close are no longer persisted.
func (s *Service) Close() error {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snaps == nil {
		return nil
	}
	err := s.snaps.Close()
	s.snaps = nil
	return err
}

// Catalog returns the route catalog the service assembles against.
func (s *Service) Catalog() *catalog.Catalog { return s.cfg.Catalog }

// Timetables returns the cached set if fresh, otherwise the result of a
// pass. When the pass fails and an older set exists, that set is returned
// with StateStale and a nil error.
func (s *Service) Timetables(ctx context.Context) (View, error) {
	if set, ok := s.cache.Fresh(s.cfg.Now(), s.cfg.TTL); ok {
		s.cfg.Metrics.CacheLookup("hit")
		return View{Set: set, State: StateFresh}, nil
	}
	s.cfg.Metrics.CacheLookup("miss")
	return s.pass(ctx, false)
}

// Refresh invalidates the cache and runs a pass. The previous set stays
// available as a stale fallback.
func (s *Service) Refresh(ctx context.Context) (View, error) {
	s.cache.Invalidate()
	return s.pass(ctx, true)
}

// Prefetch runs a pass without invalidating the cache first, so readers keep
// getting the current set until the new one lands.
func (s *Service) Prefetch(ctx context.Context) error {
	v, err := s.pass(ctx, true)
	if err != nil {
		return err
	}
	return v.Err
}

// FetchedAt returns when the cached set was produced.
func (s *Service) FetchedAt() (time.Time, bool) {
	e, ok := s.cache.Entry()
	if !ok {
		return time.Time{}, false
	}
	return e.StoredAt, true
}

// Route returns one route's schedule. name is matched case-insensitively.
func (s *Service) Route(ctx context.Context, name string) (RouteSchedule, View, error) {
	r, ok := s.cfg.Catalog.ByName(name)
	if !ok {
		return RouteSchedule{}, View{}, fmt.Errorf("%w: %q", ErrUnknownRoute, name)
	}
	v, err := s.Timetables(ctx)
	if err != nil {
		return RouteSchedule{}, View{}, err
	}
	return v.Set.Routes[r.CanonicalName], v, nil
}

// Restore loads the newest snapshot into the cache if nothing is cached yet.
// The snapshot keeps its original fetch time, so an old one is served as
// stale until the first pass succeeds.
func (s *Service) Restore(ctx context.Context) error {
	s.snapMu.RLock()
	if s.snaps == nil {
		s.snapMu.RUnlock()
		return nil
	}
	snap, err := s.snaps.Latest(ctx)
	s.snapMu.RUnlock()
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("timetable: restore: %w", err)
	}
	var set ScheduleSet
	if err := json.Unmarshal(snap.Payload, &set); err != nil {
		return fmt.Errorf("timetable: restore: decode %s: %w", snap.ID, err)
	}
	// Routes removed from the catalog since the snapshot are dropped, new
	// ones get the no service record.
	for name := range set.Routes {
		if _, ok := s.cfg.Catalog.ByName(name); !ok {
			delete(set.Routes, name)
		}
	}
	for _, r := range s.cfg.Catalog.Routes() {
		if _, ok := set.Routes[r.CanonicalName]; !ok {
			set.Routes[r.CanonicalName] = noService(s.cfg.Catalog, r)
		}
	}
	if _, ok := s.cache.Get(); ok {
		return nil
	}
	s.cache.Put(set, snap.FetchedAt)
	served, none := set.Counts()
	s.cfg.Metrics.SetRoutes(served, none)
	s.logger.Info("timetable: restored snapshot",
		"pass_id", snap.ID, "fetched_at", snap.FetchedAt, "served", served)
	return nil
}

// RunRefresher refreshes the cache ahead of expiry until ctx is cancelled.
// A zero interval returns immediately.
func (s *Service) RunRefresher(ctx context.Context, interval, lead time.Duration) {
	if interval <= 0 {
		return
	}
	schedule.New(s, schedule.Config{
		CheckInterval: interval,
		TTL:           s.cfg.TTL,
		Lead:          lead,
		Now:           s.cfg.Now,
	}, s.logger).Run(ctx)
}

const passKey = "pass"

func (s *Service) pass(ctx context.Context, force bool) (View, error) {
	ch := s.group.DoChan(passKey, func() (any, error) {
		if !force {
			// A pass that finished while this one queued may have filled the cache.
			if set, ok := s.cache.Fresh(s.cfg.Now(), s.cfg.TTL); ok {
				return View{Set: set, State: StateFresh}, nil
			}
		}
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PassTimeout)
		defer cancel()
		set, err := s.run(pctx)
		if err != nil {
			return nil, err
		}
		return View{Set: set, State: StateNew}, nil
	})

	select {
	case <-ctx.Done():
		return View{}, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(View), nil
		}
		if set, ok := s.cache.Get(); ok {
			return View{Set: set, State: StateStale, Err: res.Err}, nil
		}
		return View{}, res.Err
	}
}

// run performs one pass. It only touches the cache on success.
func (s *Service) run(ctx context.Context) (ScheduleSet, error) {
	start := time.Now()
	id := uuid.NewString()
	logger := s.logger.With("pass_id", id)

	page, err := s.cfg.Renderer.Render(ctx)
	if err != nil {
		s.cfg.Metrics.ObservePass("upstream_error", time.Since(start))
		logger.Warn("timetable: pass failed", "error", err)
		return ScheduleSet{}, fmt.Errorf("timetable: render: %w", err)
	}

	panels, err := Locate(page, s.cfg.Catalog, s.diag)
	if err != nil {
		s.cfg.Metrics.ObservePass("parse_error", time.Since(start))
		return ScheduleSet{}, err
	}
	located := 0
	counted := func(yield func(Panel) bool) {
		for p := range panels {
			located++
			if !yield(p) {
				return
			}
		}
	}
	set := Assemble(s.cfg.Catalog, counted, s.cfg.Extract, s.diag)
	if located == 0 {
		s.cfg.Metrics.ObservePass("no_panels", time.Since(start))
		logger.Warn("timetable: pass found no panels", "page_bytes", len(page))
		return ScheduleSet{}, ErrNoSchedule
	}

	set.FetchedAt = s.cfg.Now().UTC()
	set.PassID = id
	s.cache.Put(set, set.FetchedAt)

	served, none := set.Counts()
	s.cfg.Metrics.SetRoutes(served, none)
	s.cfg.Metrics.ObservePass("ok", time.Since(start))
	logger.Info("timetable: pass complete",
		"panels", located, "served", served, "no_service", none,
		"duration_ms", time.Since(start).Milliseconds())

	s.persist(ctx, set, served, logger)
	return set, nil
}

func (s *Service) persist(ctx context.Context, set ScheduleSet, served int, logger *slog.Logger) {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	if s.snaps == nil {
		return
	}
	payload, err := json.Marshal(set)
	if err != nil {
		logger.Warn("timetable: snapshot encode failed", "error", err)
		return
	}
	err = s.snaps.Save(ctx, store.Snapshot{
		ID:        set.PassID,
		FetchedAt: set.FetchedAt,
		Routes:    len(set.Routes),
		Served:    served,
		Payload:   payload,
	})
	if err != nil {
		logger.Warn("timetable: snapshot save failed", "error", err)
	}
}
