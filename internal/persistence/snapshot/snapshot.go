package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"parkcraft.gg/internal/sim/world"
)

// Write stores a snapshot as zstd-compressed JSON. The file is written to a
// temp path and renamed so a crash never leaves a truncated snapshot behind.
func Write(path string, s world.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := json.NewEncoder(enc).Encode(s); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func Read(path string) (world.Snapshot, error) {
	var s world.Snapshot
	f, err := os.Open(path)
	if err != nil {
		return s, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return s, err
	}
	defer dec.Close()

	if err := json.NewDecoder(dec).Decode(&s); err != nil {
		return s, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if s.Version != world.SnapshotVersion {
		return s, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return s, nil
}
