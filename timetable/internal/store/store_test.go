package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestMemory_Empty(t *testing.T) {
	var m Memory[string]
	if _, ok := m.Get(); ok {
		t.Error("empty memory should report no value")
	}
	if _, ok := m.Fresh(time.Now(), time.Hour); ok {
		t.Error("empty memory should not be fresh")
	}
	m.Invalidate()
	if _, ok := m.Entry(); ok {
		t.Error("invalidate on empty memory should not create an entry")
	}
}

func TestMemory_FreshWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var m Memory[string]
	m.Put("set-1", now)

	if v, ok := m.Fresh(now.Add(59*time.Minute), time.Hour); !ok || v != "set-1" {
		t.Errorf("within window: got %q, %v", v, ok)
	}
	if _, ok := m.Fresh(now.Add(time.Hour), time.Hour); ok {
		t.Error("at ttl the value should be stale")
	}
}

func TestMemory_InvalidateKeepsValue(t *testing.T) {
	// WHAT: Invalidate clears freshness but Get still returns the old value.
	// WHY: A failed refresh after invalidation must still serve stale data.
	now := time.Now()
	var m Memory[string]
	m.Put("good", now)
	m.Invalidate()

	if _, ok := m.Fresh(now, time.Hour); ok {
		t.Error("invalidated value should not be fresh")
	}
	v, ok := m.Get()
	if !ok || v != "good" {
		t.Errorf("Get after invalidate: got %q, %v", v, ok)
	}
	e, _ := m.Entry()
	if !e.Invalidated || !e.StoredAt.Equal(now) {
		t.Errorf("entry: %+v", e)
	}

	m.Put("newer", now)
	if _, ok := m.Fresh(now, time.Hour); !ok {
		t.Error("Put should clear invalidation")
	}
}

func TestMemory_ConcurrentReadersSeeWholeValues(t *testing.T) {
	type pair struct{ a, b int }
	var m Memory[pair]
	m.Put(pair{0, 0}, time.Now())

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m.Put(pair{i, i}, time.Now())
		}(i)
		go func() {
			defer wg.Done()
			if p, _ := m.Get(); p.a != p.b {
				t.Errorf("torn read: %+v", p)
			}
		}()
	}
	wg.Wait()
}

func TestIsFresh(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ts   time.Time
		ttl  time.Duration
		want bool
	}{
		{"just stored", now, time.Hour, true},
		{"inside", now.Add(-30 * time.Minute), time.Hour, true},
		{"expired", now.Add(-time.Hour), time.Hour, false},
		{"zero ts", time.Time{}, time.Hour, false},
		{"zero ttl", now, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(tt.ts, now, tt.ttl); got != tt.want {
				t.Errorf("IsFresh = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSnapshots_LatestEmpty(t *testing.T) {
	s := OpenMemory(t, 3)
	if _, err := s.Latest(context.Background()); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("got %v, want ErrNoSnapshot", err)
	}
}

func TestSnapshots_SaveLatestPrune(t *testing.T) {
	ctx := context.Background()
	s := OpenMemory(t, 3)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		err := s.Save(ctx, Snapshot{
			ID:        fmt.Sprintf("snap-%d", i),
			FetchedAt: base.Add(time.Duration(i) * time.Hour),
			Routes:    16,
			Served:    10 + i,
			Payload:   []byte(fmt.Sprintf(`{"n":%d}`, i)),
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count: got %d, want 3", n)
	}

	snap, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap.ID != "snap-4" || snap.Served != 14 || snap.Routes != 16 {
		t.Errorf("latest: %+v", snap)
	}
	if !bytes.Equal(snap.Payload, []byte(`{"n":4}`)) {
		t.Errorf("payload: %s", snap.Payload)
	}
	if !snap.FetchedAt.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("fetched at: %v", snap.FetchedAt)
	}
}

func TestSnapshots_Reopen(t *testing.T) {
	// WHAT: A snapshot written to a file database is readable after reopening.
	// WHY: Restarts restore the last good set from disk.
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "snapshots.db")

	s, err := Open(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	payload := bytes.Repeat([]byte(`{"route":"x"}`), 100)
	if err := s.Save(ctx, Snapshot{ID: "a", FetchedAt: time.Now(), Routes: 1, Payload: payload}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s, err = Open(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	snap, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !bytes.Equal(snap.Payload, payload) {
		t.Error("payload did not survive reopen")
	}
}
