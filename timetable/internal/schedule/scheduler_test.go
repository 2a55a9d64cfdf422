package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTarget struct {
	at       time.Time
	has      bool
	calls    atomic.Int32
	err      error
	prefetch chan struct{}
}

func (f *fakeTarget) FetchedAt() (time.Time, bool) { return f.at, f.has }

func (f *fakeTarget) Prefetch(ctx context.Context) error {
	f.calls.Add(1)
	if f.prefetch != nil {
		select {
		case f.prefetch <- struct{}{}:
		default:
		}
	}
	return f.err
}

func TestCheck(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		at   time.Time
		has  bool
		want int32
	}{
		{"empty cache", time.Time{}, false, 1},
		{"fresh", now.Add(-10 * time.Minute), true, 0},
		{"inside lead", now.Add(-55 * time.Minute), true, 1},
		{"expired", now.Add(-2 * time.Hour), true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeTarget{at: tt.at, has: tt.has}
			s := New(f, Config{TTL: time.Hour, Lead: 10 * time.Minute, Now: func() time.Time { return now }}, nil)
			if err := s.Check(context.Background()); err != nil {
				t.Fatalf("check: %v", err)
			}
			if got := f.calls.Load(); got != tt.want {
				t.Errorf("prefetch calls: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCheck_PropagatesError(t *testing.T) {
	f := &fakeTarget{err: errors.New("upstream down")}
	s := New(f, Config{}, nil)
	if err := s.Check(context.Background()); err == nil {
		t.Fatal("expected prefetch error")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{TTL: time.Minute, Lead: time.Hour}
	cfg.defaults()
	if cfg.Lead != 0 {
		t.Errorf("lead >= ttl should reset to 0, got %v", cfg.Lead)
	}
	if cfg.CheckInterval != 5*time.Minute {
		t.Errorf("check interval: %v", cfg.CheckInterval)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	// WHAT: Run ticks, refreshes a due target, and returns on cancel.
	// WHY: The refresher shares the server's lifetime.
	f := &fakeTarget{prefetch: make(chan struct{}, 1)}
	s := New(f, Config{CheckInterval: 5 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-f.prefetch:
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh within 2s")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
