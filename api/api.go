// Package api is the HTTP facade of the timetable service.
//
//	GET /                        liveness text
//	GET /api/timetables          route name → schedule, cached
//	GET /api/refresh?secret=...  invalidate and run a pass
//	GET /metrics                 prometheus
//	/mcp                         MCP streamable HTTP, when configured
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/hazyhaar/mykonosbus/observability"
	"github.com/hazyhaar/mykonosbus/shield"
	"github.com/hazyhaar/mykonosbus/timetable"
)

// LivenessMessage is the body of GET /.
const LivenessMessage = "Mykonos Bus Map API is running!"

// Timetables is the part of timetable.Service the handlers use.
type Timetables interface {
	Timetables(ctx context.Context) (timetable.View, error)
	Refresh(ctx context.Context) (timetable.View, error)
}

// Config configures the router.
type Config struct {
	Service       Timetables
	RefreshSecret string
	Origins       []string
	RatePerMinute int
	// CacheSeconds is the public max-age of /api/timetables. Default 300.
	CacheSeconds int
	Metrics      *observability.Metrics
	// MCP is mounted on /mcp when non-nil.
	MCP    http.Handler
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.CacheSeconds == 0 {
		c.CacheSeconds = 300
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the HTTP handler of the service.
type Server struct {
	cfg     Config
	limiter *shield.RateLimiter
	router  chi.Router
}

// New builds the router.
func New(cfg Config) *Server {
	cfg.defaults()

	stack, limiter := shield.DefaultStack(shield.StackConfig{
		Origins:       cfg.Origins,
		RatePerMinute: cfg.RatePerMinute,
		Exclude:       []string{"/metrics"},
	})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observability.HTTPMetrics(cfg.Metrics))
	for _, mw := range stack {
		r.Use(mw)
	}

	s := &Server{cfg: cfg, limiter: limiter, router: r}

	r.Get("/", s.handleRoot)
	r.Group(func(r chi.Router) {
		r.Use(gzip)
		r.With(shield.CacheControl(cfg.CacheSeconds)).Get("/api/timetables", s.handleTimetables)
		r.With(shield.CacheControl(0)).Get("/api/refresh", s.handleRefresh)
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work of the middleware.
func (s *Server) Close() {
	s.limiter.Stop()
}

func gzip(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) }

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, LivenessMessage)
}

func (s *Server) handleTimetables(w http.ResponseWriter, r *http.Request) {
	v, err := s.cfg.Service.Timetables(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeView(w, r, v)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.authorised(r.URL.Query().Get("secret")) {
		shield.GetLogger(r.Context()).Warn("api: refresh rejected", "ip", shield.ExtractIP(r))
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Unauthorized"})
		return
	}
	v, err := s.cfg.Service.Refresh(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeView(w, r, v)
}

// authorised compares in constant time. An unset server secret disables
// the endpoint.
func (s *Server) authorised(secret string) bool {
	if s.cfg.RefreshSecret == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.RefreshSecret)) == 1
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, v timetable.View) {
	switch v.State {
	case timetable.StateFresh:
		w.Header().Set("X-Cache", "HIT")
	case timetable.StateStale:
		w.Header().Set("X-Cache", "STALE")
		shield.GetLogger(r.Context()).Warn("api: serving stale timetables",
			"fetched_at", v.Set.FetchedAt, "error", v.Err)
	default:
		w.Header().Set("X-Cache", "MISS")
	}
	if !v.Set.FetchedAt.IsZero() {
		w.Header().Set("Last-Modified", v.Set.FetchedAt.UTC().Format(http.TimeFormat))
		w.Header().Set("X-Fetched-At", v.Set.FetchedAt.UTC().Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, v.Set.Routes)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		// Client went away; nobody reads the response.
		return
	}
	shield.GetLogger(r.Context()).Error("api: timetables unavailable", "error", err)
	writeError(w, http.StatusInternalServerError, fmt.Errorf("timetables unavailable: %w", err))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
