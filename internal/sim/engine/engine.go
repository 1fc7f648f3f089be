package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"parkcraft.gg/internal/protocol"
	"parkcraft.gg/internal/sim/actions"
	"parkcraft.gg/internal/sim/world"
)

type Config struct {
	WorldID    string
	TickRateHz int
	// StartTick is the first tick the engine will commit. A server resumed
	// from a snapshot continues the tick lineage instead of renumbering it.
	StartTick uint64
	// InboxBuffer caps the commands buffered between ticks. Zero means the
	// default of 1024.
	InboxBuffer int
	// SnapshotEveryTicks emits a world snapshot to the sink every N ticks.
	// Zero disables snapshots.
	SnapshotEveryTicks uint64
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// CommandEnvelope is one raw command from a connected client.
type CommandEnvelope struct {
	Actor uint32
	Ref   string
	Frame []byte
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry is the replay record of one tick: the exact frames committed in
// order plus the resulting state digest.
type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Commands []RecordedCommand `json:"commands,omitempty"`
	Digest   string            `json:"digest"`
}

type RecordedCommand struct {
	Actor  uint32 `json:"actor"`
	Frame  []byte `json:"frame"`
	Status uint8  `json:"status"`
}

// Engine runs the authoritative tick loop. All world access happens on the
// loop goroutine; clients talk to it through channels only.
type Engine struct {
	cfg Config
	w   *world.World
	d   *Dispatcher

	tick atomic.Uint64

	inbox chan CommandEnvelope
	join  chan JoinRequest
	leave chan uint32

	clients   map[uint32]chan []byte
	nextActor uint32

	// Optional tick logger (may be nil). Implemented in internal/persistence.
	tickLog         TickLogger
	tickLogFailures atomic.Uint64

	log *log.Logger

	// Optional snapshot sink (may be nil). Snapshot writing happens
	// off-thread; only the export runs on the loop.
	snapshotSink chan<- world.Snapshot
}

func New(cfg Config, w *world.World, tickLog TickLogger) (*Engine, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be positive, got %d", cfg.TickRateHz)
	}
	if err := actions.ValidateRegistry(); err != nil {
		return nil, fmt.Errorf("action registry: %w", err)
	}
	buf := cfg.InboxBuffer
	if buf <= 0 {
		buf = 1024
	}
	e := &Engine{
		cfg:     cfg,
		w:       w,
		d:       NewDispatcher(w),
		inbox:   make(chan CommandEnvelope, buf),
		join:    make(chan JoinRequest),
		leave:   make(chan uint32, 16),
		clients: make(map[uint32]chan []byte),
		tickLog: tickLog,
		log:     log.New(os.Stderr, "[engine] ", log.LstdFlags),
	}
	e.tick.Store(cfg.StartTick)
	return e, nil
}

// SetSnapshotSink installs the snapshot channel. Call before Run.
func (e *Engine) SetSnapshotSink(ch chan<- world.Snapshot) { e.snapshotSink = ch }

// SetLogger replaces the engine's diagnostic logger. Call before Run.
func (e *Engine) SetLogger(l *log.Logger) { e.log = l }

// TickLogFailures counts tick log writes that returned an error. The durable
// replay record stopping is an operational incident, not a silent condition.
func (e *Engine) TickLogFailures() uint64 { return e.tickLogFailures.Load() }

func (e *Engine) Inbox() chan<- CommandEnvelope { return e.inbox }
func (e *Engine) Join() chan<- JoinRequest      { return e.join }
func (e *Engine) Leave() chan<- uint32          { return e.leave }

func (e *Engine) CurrentTick() uint64 { return e.tick.Load() }

func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(e.cfg.TickRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case jr := <-e.join:
			e.handleJoin(jr)
		case actor := <-e.leave:
			delete(e.clients, actor)
		case <-ticker.C:
			e.stepTick()
		}
	}
}

func (e *Engine) handleJoin(jr JoinRequest) {
	e.nextActor++
	actor := e.nextActor
	e.clients[actor] = jr.Out
	jr.Resp <- JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ActorID:         actor,
		WorldID:         e.cfg.WorldID,
		Tick:            e.tick.Load(),
		TickRateHz:      e.cfg.TickRateHz,
		CodecVersion:    actions.CodecVersion,
	}}
}

func (e *Engine) stepTick() {
	now := e.tick.Load()

	// Drain whatever arrived since the last tick; admission order is the
	// commit order.
	var envs []CommandEnvelope
	for {
		select {
		case env := <-e.inbox:
			envs = append(envs, env)
			continue
		default:
		}
		break
	}

	for _, env := range envs {
		if err := e.d.AdmitFrame(env.Frame, env.Actor, env.Ref); err != nil {
			// A malformed frame drops that single command; the queue and
			// every other command stay intact.
			e.send(env.Actor, protocol.ErrorMsg{
				Type:            protocol.TypeError,
				ProtocolVersion: protocol.Version,
				Ref:             env.Ref,
				Code:            protocol.ErrBadFrame,
				Message:         err.Error(),
			})
		}
	}

	committed := e.d.CommitTick()
	for _, c := range committed {
		e.send(c.Actor, resultMsg(now, c))
		if c.Result.Status == actions.StatusOk {
			e.broadcastExcept(c.Actor, protocol.CommittedMsg{
				Type:            protocol.TypeCommitted,
				ProtocolVersion: protocol.Version,
				Tick:            now,
				Seq:             c.Seq,
				Actor:           c.Actor,
				Frame:           c.Frame,
			})
		}
	}

	if e.tickLog != nil {
		entry := TickLogEntry{Tick: now, Digest: e.w.StateDigest(now)}
		for _, c := range committed {
			entry.Commands = append(entry.Commands, RecordedCommand{
				Actor:  c.Actor,
				Frame:  c.Frame,
				Status: uint8(c.Result.Status),
			})
		}
		if err := e.tickLog.WriteTick(entry); err != nil {
			e.tickLogFailures.Add(1)
			e.log.Printf("tick %d: tick log write failed: %v", now, err)
		}
	}

	if e.snapshotSink != nil && e.cfg.SnapshotEveryTicks > 0 && now > 0 && now%e.cfg.SnapshotEveryTicks == 0 {
		select {
		case e.snapshotSink <- e.w.ExportSnapshot(now):
		default:
			// Writer is behind; skip this snapshot rather than stall.
		}
	}

	e.tick.Store(now + 1)
}

func resultMsg(tick uint64, c Committed) protocol.ResultMsg {
	m := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Ref:             c.Ref,
		Status:          uint8(c.Result.Status),
		StatusName:      c.Result.Status.String(),
		ErrorTitle:      uint16(c.Result.ErrorTitle),
		ErrorDetail:     uint16(c.Result.ErrorDetail),
		Cost:            c.Result.Cost,
	}
	if c.Result.PositionValid {
		m.Position = &[3]int32{c.Result.Position.X, c.Result.Position.Y, c.Result.Position.Z}
	}
	return m
}

func (e *Engine) send(actor uint32, v any) {
	out, ok := e.clients[actor]
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		// Slow client: drop rather than stall the tick.
	}
}

func (e *Engine) broadcastExcept(actor uint32, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for id, out := range e.clients {
		if id == actor {
			continue
		}
		select {
		case out <- b:
		default:
		}
	}
}
