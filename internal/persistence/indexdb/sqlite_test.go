package indexdb

import (
	"path/filepath"
	"testing"
	"time"

	"parkcraft.gg/internal/sim/engine"
)

func waitForTick(t *testing.T, s *SQLiteIndex, tick uint64) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		d, err := s.TickDigest(tick)
		if err != nil {
			t.Fatalf("tick digest: %v", err)
		}
		if d != "" {
			return d
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("tick %d never indexed", tick)
	return ""
}

func TestSQLiteIndex_WriteAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "park.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.WriteTick(engine.TickLogEntry{Tick: 1, Digest: "aaa"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.WriteTick(engine.TickLogEntry{
		Tick:   2,
		Digest: "bbb",
		Commands: []engine.RecordedCommand{
			{Actor: 1, Frame: []byte{1, 0, 0, 0}, Status: 0},
		},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if d := waitForTick(t, s, 2); d != "bbb" {
		t.Fatalf("tick 2 digest: %q", d)
	}
	tick, digest, err := s.LatestTick()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if tick != 2 || digest != "bbb" {
		t.Fatalf("latest: %d %q", tick, digest)
	}

	// Re-indexing the same tick replaces, not duplicates.
	if err := s.WriteTick(engine.TickLogEntry{Tick: 2, Digest: "ccc"}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		d, err := s.TickDigest(2)
		if err != nil {
			t.Fatalf("tick digest: %v", err)
		}
		if d == "ccc" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tick 2 not replaced, digest %q", d)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSQLiteIndex_EmptyDatabase(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "park.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	tick, digest, err := s.LatestTick()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if tick != 0 || digest != "" {
		t.Fatalf("empty db reported tick %d %q", tick, digest)
	}
	d, err := s.TickDigest(42)
	if err != nil || d != "" {
		t.Fatalf("unindexed tick: %q %v", d, err)
	}
}

func TestSQLiteIndex_ClosedRefusesWrites(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "park.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.WriteTick(engine.TickLogEntry{Tick: 1, Digest: "x"}); err == nil {
		t.Fatalf("write accepted after close")
	}
}
