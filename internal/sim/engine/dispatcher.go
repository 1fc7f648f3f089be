// Package engine owns action ordering: every mutation is admitted to a queue
// and committed serially within a simulation tick, so replicas fed the same
// ordered stream produce bit-identical world state.
package engine

import (
	"fmt"

	"parkcraft.gg/internal/sim/actions"
	"parkcraft.gg/internal/sim/world"
)

// Dispatcher queues actions for the current tick and commits them in
// admission order. It is not goroutine-safe: like the world it guards, it
// belongs to the simulation loop.
type Dispatcher struct {
	w     *world.World
	queue []queued
}

type queued struct {
	action actions.Action
	frame  []byte
	ref    string
}

// Committed is the record of one processed action: what ran, in which order,
// and how it ended. Frames of successfully committed actions replicate to
// peers and feed the replay log.
type Committed struct {
	Seq    int
	Actor  uint32
	Ref    string
	Kind   actions.Kind
	Frame  []byte
	Result actions.Result
}

func NewDispatcher(w *world.World) *Dispatcher {
	return &Dispatcher{w: w}
}

func (d *Dispatcher) World() *world.World { return d.w }

func (d *Dispatcher) QueueLen() int { return len(d.queue) }

// Submit validates a locally constructed action and, when the caller may
// proceed, admits it to the queue. The returned result gives the caller
// immediate feedback; the authoritative outcome still comes from the commit.
func (d *Dispatcher) Submit(a actions.Action, ref string) actions.Result {
	if res := d.checkPaused(a); res.Status != actions.StatusOk {
		return res
	}
	res := a.Validate(d.w)
	if res.Status != actions.StatusOk {
		return res
	}
	d.queue = append(d.queue, queued{action: a, frame: actions.Encode(a), ref: ref})
	return res
}

// AdmitFrame admits a network-originated wire frame. The sender's validation
// is never trusted: nothing is checked here beyond frame integrity and the
// kind being replicable; every world-state precondition runs at commit.
func (d *Dispatcher) AdmitFrame(frame []byte, actor uint32, ref string) error {
	a, err := actions.Decode(frame)
	if err != nil {
		return err
	}
	if a.Flags()&actions.FlagClientOnly != 0 {
		return fmt.Errorf("action kind %s is not replicable", a.Kind())
	}
	a.SetExecFlags(a.ExecFlags() | actions.ExecNetworked)
	a.SetActor(actor)
	d.queue = append(d.queue, queued{action: a, frame: actions.Encode(a), ref: ref})
	return nil
}

// CommitTick commits every queued action strictly in admission order and
// empties the queue. A failed commit reports its result and leaves no partial
// mutation; it never blocks the actions behind it.
func (d *Dispatcher) CommitTick() []Committed {
	out := make([]Committed, 0, len(d.queue))
	for i, q := range d.queue {
		var res actions.Result
		if res = d.checkPaused(q.action); res.Status == actions.StatusOk {
			res = q.action.Commit(d.w)
		}
		out = append(out, Committed{
			Seq:    i,
			Actor:  q.action.Actor(),
			Ref:    q.ref,
			Kind:   q.action.Kind(),
			Frame:  q.frame,
			Result: res,
		})
	}
	d.queue = d.queue[:0]
	return out
}

func (d *Dispatcher) checkPaused(a actions.Action) actions.Result {
	if !d.w.Paused() {
		return actions.OK()
	}
	if a.Flags()&actions.FlagAllowWhilePaused != 0 || a.ExecFlags()&actions.ExecAllowWhilePaused != 0 {
		return actions.OK()
	}
	return actions.Err(actions.StatusDisallowed, actions.StrGamePaused, actions.StrNone)
}
