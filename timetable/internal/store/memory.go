// Package store holds the last assembled schedule set: an atomic in-memory
// slot for request handling and an optional SQLite table of snapshots that
// survives restarts.
package store

import (
	"sync/atomic"
	"time"
)

// Entry is one stored value with the time it was produced.
type Entry[T any] struct {
	Value       T
	StoredAt    time.Time
	Invalidated bool
}

// Memory keeps a single value. Writers replace the whole entry, so readers
// never observe a partial update.
type Memory[T any] struct {
	cur atomic.Pointer[Entry[T]]
}

// Put stores v as produced at ts, replacing any previous value.
func (m *Memory[T]) Put(v T, ts time.Time) {
	m.cur.Store(&Entry[T]{Value: v, StoredAt: ts})
}

// Get returns the stored value regardless of freshness.
func (m *Memory[T]) Get() (T, bool) {
	e := m.cur.Load()
	if e == nil {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Entry returns a copy of the current entry.
func (m *Memory[T]) Entry() (Entry[T], bool) {
	e := m.cur.Load()
	if e == nil {
		return Entry[T]{}, false
	}
	return *e, true
}

// Fresh returns the stored value only if it is fresh at now.
func (m *Memory[T]) Fresh(now time.Time, ttl time.Duration) (T, bool) {
	e := m.cur.Load()
	if e == nil || e.Invalidated || !IsFresh(e.StoredAt, now, ttl) {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Invalidate marks the current value stale. The value itself is kept and
// still returned by Get.
func (m *Memory[T]) Invalidate() {
	for {
		e := m.cur.Load()
		if e == nil || e.Invalidated {
			return
		}
		next := *e
		next.Invalidated = true
		if m.cur.CompareAndSwap(e, &next) {
			return
		}
	}
}

// IsFresh reports whether something produced at ts is still within ttl at
// now. A zero ts is never fresh.
func IsFresh(ts, now time.Time, ttl time.Duration) bool {
	if ts.IsZero() || ttl <= 0 {
		return false
	}
	return now.Sub(ts) < ttl
}
