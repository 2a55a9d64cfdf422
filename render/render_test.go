package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const panelPage = `<html><body>
<div class="vc_tta-panel" id="1559047590770-061945df-35ac">
<table class="aligncenter"><tr><th>A</th><th>B</th></tr><tr><td>09:00</td><td>09:15</td></tr></table>
</div></body></html>`

func TestSufficient(t *testing.T) {
	if !Sufficient(panelPage) {
		t.Error("page with panel and table should be sufficient")
	}
	shell := `<html><body><div id="root"></div><script src="/app.js"></script></body></html>`
	if Sufficient(shell) {
		t.Error("script shell should not be sufficient")
	}
	noTable := `<div class="vc_tta-panel vc_active" id="x"><p>loading</p></div>`
	if Sufficient(noTable) {
		t.Error("panel without table should not be sufficient")
	}
}

func TestHTTP_Render(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Write([]byte(panelPage))
	}))
	defer srv.Close()

	page, err := NewHTTP(srv.URL).Render(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(page, "vc_tta-panel") {
		t.Error("page body missing")
	}
	if ua != DefaultUserAgent {
		t.Errorf("user agent: got %q", ua)
	}
}

func TestHTTP_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewHTTP(srv.URL).Render(context.Background()); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestHTTP_Strict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="app"></div></body></html>`))
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.URL, WithStrict(true)).Render(context.Background())
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("got %v, want ErrInsufficient", err)
	}
	if _, err := NewHTTP(srv.URL).Render(context.Background()); err != nil {
		t.Fatalf("lenient render: %v", err)
	}
}

func TestFile_Render(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(panelPage), 0o644); err != nil {
		t.Fatal(err)
	}
	page, err := File{Path: path}.Render(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if page != panelPage {
		t.Error("content mismatch")
	}

	if _, err := (File{Path: filepath.Join(t.TempDir(), "missing.html")}).Render(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func fastGuard(p Provider, now func() time.Time) *Guard {
	return NewGuard(p, GuardConfig{
		Name:             "test",
		MaxRetries:       2,
		InitialInterval:  time.Millisecond,
		MaxInterval:      2 * time.Millisecond,
		BreakerThreshold: 2,
		BreakerReset:     time.Minute,
		Now:              now,
	})
}

func TestGuard_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(ctx context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	page, err := fastGuard(p, nil).Render(context.Background())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if page != "ok" || calls.Load() != 3 {
		t.Errorf("page=%q calls=%d", page, calls.Load())
	}
}

func TestGuard_WrapsUpstreamUnavailable(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("boom")
	})

	_, err := fastGuard(p, nil).Render(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("got %v, want ErrUpstreamUnavailable", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls: got %d, want 3 (1 + 2 retries)", calls.Load())
	}
}

func TestGuard_BreakerOpensAndRecovers(t *testing.T) {
	// WHAT: Consecutive failed renders open the breaker; after the reset
	// timeout one probe is allowed and its success closes it.
	// WHY: A dead upstream must not be hit by every request.
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	var fail atomic.Bool
	fail.Store(true)
	var calls atomic.Int32
	p := ProviderFunc(func(ctx context.Context) (string, error) {
		calls.Add(1)
		if fail.Load() {
			return "", errors.New("down")
		}
		return "ok", nil
	})
	g := fastGuard(p, clock)

	for i := 0; i < 2; i++ {
		if _, err := g.Render(context.Background()); err == nil {
			t.Fatal("expected failure")
		}
	}
	if g.Breaker().State() != BreakerOpen {
		t.Fatalf("state: got %v, want open", g.Breaker().State())
	}

	before := calls.Load()
	_, err := g.Render(context.Background())
	var open *ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("ErrCircuitOpen should wrap ErrUpstreamUnavailable")
	}
	if calls.Load() != before {
		t.Error("open breaker must not call the provider")
	}

	now = now.Add(time.Minute)
	fail.Store(false)
	if _, err := g.Render(context.Background()); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if g.Breaker().State() != BreakerClosed {
		t.Errorf("state after probe: got %v, want closed", g.Breaker().State())
	}
}

func TestGuard_NoRetryOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	p := ProviderFunc(func(ctx context.Context) (string, error) {
		calls.Add(1)
		cancel()
		return "", ctx.Err()
	})

	if _, err := fastGuard(p, nil).Render(ctx); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls: got %d, want 1", calls.Load())
	}
}

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, time.Second, func() time.Time { return now })
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("open breaker should reject")
	}
	now = now.Add(time.Second)
	if !b.Allow() {
		t.Fatal("first half-open call should be admitted")
	}
	if b.Allow() {
		t.Fatal("second half-open call should wait for the probe")
	}
	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Errorf("failed probe should reopen, got %v", b.State())
	}
}

func TestFallback(t *testing.T) {
	primary := ProviderFunc(func(ctx context.Context) (string, error) {
		return "", errors.New("primary down")
	})
	secondary := ProviderFunc(func(ctx context.Context) (string, error) {
		return "from secondary", nil
	})

	page, err := Fallback(primary, secondary, nil).Render(context.Background())
	if err != nil || page != "from secondary" {
		t.Fatalf("page=%q err=%v", page, err)
	}

	failing := ProviderFunc(func(ctx context.Context) (string, error) {
		return "", ErrUpstreamUnavailable
	})
	_, err = Fallback(primary, failing, nil).Render(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("got %v, want wrapped secondary error", err)
	}
}

func TestFallback_CancelledSkipsSecondary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	primary := ProviderFunc(func(ctx context.Context) (string, error) { return "", ctx.Err() })
	secondary := ProviderFunc(func(ctx context.Context) (string, error) {
		called = true
		return "x", nil
	})
	if _, err := Fallback(primary, secondary, nil).Render(ctx); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("secondary should not run after cancellation")
	}
}

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true}
	if !shouldBlock(set, "Image") || !shouldBlock(set, "Font") {
		t.Error("images and fonts should be blocked")
	}
	if shouldBlock(set, "Document") || shouldBlock(set, "Script") {
		t.Error("documents and scripts must load")
	}
}
