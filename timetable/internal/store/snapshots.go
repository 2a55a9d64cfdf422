package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// DefaultKeep is the number of snapshots retained when Open is given 0.
const DefaultKeep = 24

// ErrNoSnapshot is returned by Latest on an empty table.
var ErrNoSnapshot = errors.New("store: no snapshot")

// Snapshot is one persisted schedule set. Payload is the uncompressed JSON.
type Snapshot struct {
	ID        string
	FetchedAt time.Time
	Routes    int
	Served    int
	Payload   []byte
}

// Snapshots persists the last good schedule sets in SQLite.
type Snapshots struct {
	DB   *sql.DB
	keep int
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Open opens (or creates) the snapshot database at path and applies Schema.
// keep bounds the number of retained rows.
func Open(path string, keep int) (*Snapshots, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return newSnapshots(db, keep)
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

func newSnapshots(db *sql.DB, keep int) (*Snapshots, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("store: zstd reader: %w", err)
	}
	return &Snapshots{DB: db, keep: keep, enc: enc, dec: dec}, nil
}

// OpenMemory opens an in-memory snapshot store for tests and closes it on
// cleanup.
func OpenMemory(t testing.TB, keep int) *Snapshots {
	t.Helper()
	s, err := Open(":memory:", keep)
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Close releases the codecs and the database.
func (s *Snapshots) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.DB.Close()
}

// Save stores a snapshot and prunes everything beyond the newest keep rows.
func (s *Snapshots) Save(ctx context.Context, snap Snapshot) error {
	payload := s.enc.EncodeAll(snap.Payload, nil)
	return s.runTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO snapshots (id, fetched_at, routes, served, payload, created_at)
			VALUES (?,?,?,?,?,?)`,
			snap.ID, snap.FetchedAt.UnixMilli(), snap.Routes, snap.Served, payload, time.Now().UnixMilli(),
		); err != nil {
			return fmt.Errorf("store: insert snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM snapshots WHERE id NOT IN (
				SELECT id FROM snapshots ORDER BY fetched_at DESC, created_at DESC LIMIT ?
			)`, s.keep,
		); err != nil {
			return fmt.Errorf("store: prune snapshots: %w", err)
		}
		return nil
	})
}

// Latest returns the most recent snapshot.
func (s *Snapshots) Latest(ctx context.Context) (Snapshot, error) {
	var (
		snap      Snapshot
		fetchedAt int64
		payload   []byte
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, fetched_at, routes, served, payload FROM snapshots
		ORDER BY fetched_at DESC, created_at DESC LIMIT 1`,
	).Scan(&snap.ID, &fetchedAt, &snap.Routes, &snap.Served, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: latest snapshot: %w", err)
	}
	snap.FetchedAt = time.UnixMilli(fetchedAt)
	snap.Payload, err = s.dec.DecodeAll(payload, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: decode snapshot %s: %w", snap.ID, err)
	}
	return snap, nil
}

// Count returns the number of retained snapshots.
func (s *Snapshots) Count(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n)
	return n, err
}

const maxBusyRetries = 3

// runTx runs fn in a transaction, retrying when SQLite reports BUSY.
func (s *Snapshots) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	var err error
	for i := range maxBusyRetries {
		if err = s.txOnce(ctx, fn); err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("store: retry cancelled: %w", ctx.Err())
		case <-time.After(time.Duration(100*(i+1)) * time.Millisecond):
		}
	}
	return err
}

func (s *Snapshots) txOnce(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
