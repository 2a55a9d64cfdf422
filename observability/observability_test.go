package observability

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"info":  slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "timetables")
	logger.Debug("hidden")
	logger.Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["service"] != "timetables" || rec["k"] != "v" {
		t.Errorf("record: %v", rec)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObservePass("ok", time.Second)
	m.SetRoutes(1, 2)
	m.CacheLookup("hit")
	m.Diagnostic("unknown_panel")
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()
	m.ObservePass("ok", 2*time.Second)
	m.ObservePass("failed", time.Second)
	m.SetRoutes(10, 6)
	m.CacheLookup("hit")
	m.CacheLookup("hit")
	m.Diagnostic("column_mismatch")

	if v := testutil.ToFloat64(m.PassesTotal.WithLabelValues("ok")); v != 1 {
		t.Errorf("passes ok: got %v", v)
	}
	if v := testutil.ToFloat64(m.Routes.WithLabelValues("no_service")); v != 6 {
		t.Errorf("routes no_service: got %v", v)
	}
	if v := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); v != 2 {
		t.Errorf("cache hit: got %v", v)
	}
	if v := testutil.ToFloat64(m.Diagnostics.WithLabelValues("column_mismatch")); v != 1 {
		t.Errorf("diagnostics: got %v", v)
	}
}

func TestHTTPMetrics_RoutePattern(t *testing.T) {
	// WHAT: Requests are labelled by chi route pattern, not raw path.
	// WHY: Raw paths would explode label cardinality.
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(HTTPMetrics(m))
	r.Get("/api/routes/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/routes/airport", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status: got %d", rec.Code)
	}

	if v := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/routes/{name}", "418")); v != 1 {
		t.Errorf("requests: got %v", v)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "timetables_http_requests_total") {
		t.Error("metrics output should include http request counter")
	}
}

func TestHTTPMetrics_Nil(t *testing.T) {
	h := HTTPMetrics(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("body: %q", rec.Body.String())
	}
}
