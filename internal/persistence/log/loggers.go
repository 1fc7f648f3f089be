package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"parkcraft.gg/internal/sim/engine"
)

// SegmentTicks is the number of ticks each command log file covers. File names
// carry the segment's first tick, so lexical order is replay order.
const SegmentTicks = 100_000

// CommandLogger is the durable replay record: one zstd-compressed JSONL entry
// per tick, segmented by tick range. Together with a snapshot it reconstructs
// the world exactly; cmd/replay re-commits the frames and verifies digests.
type CommandLogger struct {
	dir string

	mu       sync.Mutex
	open     bool
	segStart uint64
	f        *os.File
	enc      *zstd.Encoder
	w        *bufio.Writer
}

func NewCommandLogger(worldDir string) *CommandLogger {
	return &CommandLogger{dir: filepath.Join(worldDir, "commands")}
}

// WriteTick implements engine.TickLogger. Each entry is flushed through the
// encoder so a crash loses at most the entry being written.
func (l *CommandLogger) WriteTick(entry engine.TickLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	seg := entry.Tick - entry.Tick%SegmentTicks
	if !l.open || seg != l.segStart {
		if err := l.rotateLocked(seg); err != nil {
			return err
		}
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

func (l *CommandLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *CommandLogger) rotateLocked(segStart uint64) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(l.dir, fmt.Sprintf("commands-%012d.jsonl.zst", segStart))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 128*1024)
	l.segStart = segStart
	l.open = true
	return nil
}

func (l *CommandLogger) closeLocked() error {
	if !l.open {
		return nil
	}
	var err error
	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.w = nil
	l.open = false
	return err
}
