package indexdb

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"parkcraft.gg/internal/sim/engine"
)

// SQLiteIndex is a read-model index of committed ticks and commands. It never
// feeds back into the simulation: writes are queued to a background goroutine
// so indexing cannot stall a tick, and losing the index loses nothing the
// command log cannot rebuild.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan engine.TickLogEntry
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Buffered so bursty ticks (many peers acting at once) don't stall.
		ch: make(chan engine.TickLogEntry, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	for _, p := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
	} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	for _, q := range []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			commands INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor INTEGER NOT NULL,
			status INTEGER NOT NULL,
			frame TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
	} {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// WriteTick implements engine.TickLogger. It never blocks the caller: if the
// buffer is full the entry is dropped (the zstd command log is the durable
// record, not this index).
func (s *SQLiteIndex) WriteTick(entry engine.TickLogEntry) error {
	if s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	select {
	case s.ch <- entry:
		return nil
	default:
		return fmt.Errorf("index backlog full, tick %d dropped", entry.Tick)
	}
}

func (s *SQLiteIndex) loop() {
	for entry := range s.ch {
		s.writeEntry(entry)
	}
}

func (s *SQLiteIndex) writeEntry(entry engine.TickLogEntry) {
	tx, err := s.db.Begin()
	if err != nil {
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO ticks (tick, digest, commands) VALUES (?, ?, ?)`,
		entry.Tick, entry.Digest, len(entry.Commands),
	); err != nil {
		return
	}
	for seq, c := range entry.Commands {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO commands (tick, seq, actor, status, frame) VALUES (?, ?, ?, ?, ?)`,
			entry.Tick, seq, c.Actor, c.Status, base64.StdEncoding.EncodeToString(c.Frame),
		); err != nil {
			return
		}
	}
	_ = tx.Commit()
}

// LatestTick returns the newest indexed tick and its digest.
func (s *SQLiteIndex) LatestTick() (uint64, string, error) {
	var tick uint64
	var digest string
	err := s.db.QueryRow(`SELECT tick, digest FROM ticks ORDER BY tick DESC LIMIT 1`).Scan(&tick, &digest)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}
	return tick, digest, nil
}

// TickDigest returns the digest recorded for a tick, or "" if unindexed.
func (s *SQLiteIndex) TickDigest(tick uint64) (string, error) {
	var digest string
	err := s.db.QueryRow(`SELECT digest FROM ticks WHERE tick = ?`, tick).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return digest, nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
