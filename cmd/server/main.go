package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"parkcraft.gg/internal/legacy"
	"parkcraft.gg/internal/persistence/indexdb"
	persistlog "parkcraft.gg/internal/persistence/log"
	"parkcraft.gg/internal/persistence/snapshot"
	"parkcraft.gg/internal/sim/engine"
	"parkcraft.gg/internal/sim/tuning"
	"parkcraft.gg/internal/sim/world"
	"parkcraft.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "park_1", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite tick/command index")

		legacyPath = flag.String("legacy", "", "path to a legacy park file to import (optional)")
		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	w, resumeTick, err := buildWorld(tune, *worldID, *seed, *legacyPath, *snapPath, *loadLatest, worldDir, logger)
	if err != nil {
		logger.Fatalf("build world: %v", err)
	}

	// Durable command log (replay record).
	cmdLog := persistlog.NewCommandLogger(worldDir)
	defer cmdLog.Close()

	// Optional read-model index; losing it never loses replay data.
	var tickLog engine.TickLogger = cmdLog
	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		tickLog = multiTickLogger{cmdLog, idx}
	}

	eng, err := engine.New(engine.Config{
		WorldID:            *worldID,
		TickRateHz:         tune.TickRateHz,
		StartTick:          resumeTick,
		InboxBuffer:        tune.InboxBuffer,
		SnapshotEveryTicks: uint64(tune.SnapshotEveryTicks),
	}, w, tickLog)
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}
	eng.SetLogger(logger)

	snapCh := make(chan world.Snapshot, 1)
	eng.SetSnapshotSink(snapCh)
	go writeSnapshots(snapCh, worldDir, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Fatalf("engine: %v", err)
		}
	}()

	wsServer := ws.NewServer(eng, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(rw, "ok tick=%d\n", eng.CurrentTick())
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Printf("world=%s listening on %s (tick rate %d Hz)", *worldID, *addr, tune.TickRateHz)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}
}

func buildWorld(tune tuning.Tuning, worldID string, seed int64, legacyPath, snapPath string, loadLatest bool, worldDir string, logger *log.Logger) (*world.World, uint64, error) {
	if legacyPath != "" {
		f, err := os.Open(legacyPath)
		if err != nil {
			return nil, 0, err
		}
		defer f.Close()
		w, err := legacy.Import(f, worldID)
		if err != nil {
			return nil, 0, fmt.Errorf("import legacy park: %w", err)
		}
		logger.Printf("imported legacy park from %s", legacyPath)
		return w, 0, nil
	}

	if snapPath == "" && loadLatest {
		snapPath = latestSnapshot(worldDir)
	}
	if snapPath != "" {
		s, err := snapshot.Read(snapPath)
		if err != nil {
			return nil, 0, err
		}
		w, err := world.New(world.Config{ID: s.WorldID, MapSize: s.MapSize, Seed: s.Seed})
		if err != nil {
			return nil, 0, err
		}
		if err := w.ImportSnapshot(s); err != nil {
			return nil, 0, err
		}
		logger.Printf("resumed from snapshot %s (tick %d)", snapPath, s.Tick)
		// The snapshot holds the state after its tick committed; the resumed
		// server continues the lineage at the next one.
		return w, s.Tick + 1, nil
	}

	w, err := world.New(world.Config{ID: worldID, MapSize: tune.MapSize, Seed: seed})
	return w, 0, err
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap.zst") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}

func writeSnapshots(ch <-chan world.Snapshot, worldDir string, logger *log.Logger) {
	for s := range ch {
		path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%s-%012d.snap.zst", s.WorldID, s.Tick))
		if err := snapshot.Write(path, s); err != nil {
			logger.Printf("write snapshot: %v", err)
			continue
		}
		logger.Printf("snapshot written: %s", path)
	}
}

type multiTickLogger []engine.TickLogger

func (m multiTickLogger) WriteTick(entry engine.TickLogEntry) error {
	var first error
	for _, l := range m {
		if err := l.WriteTick(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
