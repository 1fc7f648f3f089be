package engine

import (
	"testing"

	"parkcraft.gg/internal/sim/actions"
	"parkcraft.gg/internal/sim/world"
)

// replica is one independently running copy of the same park.
type replica struct {
	w *world.World
	d *Dispatcher
}

func newReplica(t *testing.T) *replica {
	t.Helper()
	w, err := world.New(world.Config{ID: "park", MapSize: 8, Seed: 1234})
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	for _, id := range []world.RideID{1, 2} {
		if err := w.AddRide(world.NewRide(id)); err != nil {
			t.Fatalf("add ride: %v", err)
		}
	}
	return &replica{w: w, d: NewDispatcher(w)}
}

// TestReplicas_SameStreamSameState feeds two replicas the identical ordered
// frame stream across several ticks and requires bit-identical state digests
// and result sequences, including ticks where some commits fail.
func TestReplicas_SameStreamSameState(t *testing.T) {
	frame := func(a actions.Action) []byte { return actions.Encode(a) }

	ticks := [][][]byte{
		{
			frame(actions.NewEntrancePlace(world.CoordsXY{X: 32, Y: 32}, 0, 1, 0, false)),
			frame(actions.NewEntrancePlace(world.CoordsXY{X: 64, Y: 32}, 1, 1, 0, true)),
			// Duplicate placement: fails identically on both replicas.
			frame(actions.NewEntrancePlace(world.CoordsXY{X: 96, Y: 32}, 0, 1, 0, true)),
		},
		{
			frame(actions.NewRideSetStatus(1, world.RideStatusOpen)),
			// Removal against an open ride: deterministic refusal.
			frame(actions.NewEntranceRemove(world.CoordsXY{X: 64, Y: 32}, 1, 0, true)),
		},
		{
			frame(actions.NewRideSetStatus(1, world.RideStatusClosed)),
			frame(actions.NewEntranceRemove(world.CoordsXY{X: 64, Y: 32}, 1, 0, true)),
			frame(actions.NewEntrancePlace(world.CoordsXY{X: 32, Y: 64}, 2, 2, 1, false)),
		},
	}

	a := newReplica(t)
	b := newReplica(t)

	for tick, frames := range ticks {
		for i, f := range frames {
			if err := a.d.AdmitFrame(f, uint32(i+1), ""); err != nil {
				t.Fatalf("tick %d frame %d: replica a: %v", tick, i, err)
			}
			if err := b.d.AdmitFrame(f, uint32(i+1), ""); err != nil {
				t.Fatalf("tick %d frame %d: replica b: %v", tick, i, err)
			}
		}

		ca := a.d.CommitTick()
		cb := b.d.CommitTick()
		if len(ca) != len(cb) {
			t.Fatalf("tick %d: commit counts differ: %d vs %d", tick, len(ca), len(cb))
		}
		for i := range ca {
			if ca[i].Result.Status != cb[i].Result.Status {
				t.Fatalf("tick %d seq %d: statuses differ: %v vs %v",
					tick, i, ca[i].Result.Status, cb[i].Result.Status)
			}
		}

		da := a.w.StateDigest(uint64(tick))
		db := b.w.StateDigest(uint64(tick))
		if da != db {
			t.Fatalf("tick %d: digests diverged:\n  a=%s\n  b=%s", tick, da, db)
		}
	}
}

// TestReplicas_ReorderedStreamDiverges is the control: the same frames in a
// different order must not be expected to converge, which is why admission
// order is part of the protocol.
func TestReplicas_ReorderedStreamDiverges(t *testing.T) {
	place := actions.Encode(actions.NewEntrancePlace(world.CoordsXY{X: 32, Y: 32}, 0, 1, 0, true))
	remove := actions.Encode(actions.NewEntranceRemove(world.CoordsXY{X: 32, Y: 32}, 1, 0, true))

	a := newReplica(t)
	b := newReplica(t)

	for _, f := range [][]byte{place, remove} {
		if err := a.d.AdmitFrame(f, 1, ""); err != nil {
			t.Fatalf("replica a: %v", err)
		}
	}
	for _, f := range [][]byte{remove, place} {
		if err := b.d.AdmitFrame(f, 1, ""); err != nil {
			t.Fatalf("replica b: %v", err)
		}
	}

	a.d.CommitTick()
	b.d.CommitTick()

	// place-then-remove leaves nothing; remove-then-place leaves a bound exit.
	if a.w.StateDigest(0) == b.w.StateDigest(0) {
		t.Fatalf("reordered streams converged unexpectedly")
	}
}

// TestSnapshotResume_ContinuesDeterministically checks the save/resume path:
// a replica restored from a snapshot mid-stream tracks the original exactly.
func TestSnapshotResume_ContinuesDeterministically(t *testing.T) {
	orig := newReplica(t)

	setup := [][]byte{
		actions.Encode(actions.NewEntrancePlace(world.CoordsXY{X: 32, Y: 32}, 0, 1, 0, false)),
		actions.Encode(actions.NewEntrancePlace(world.CoordsXY{X: 64, Y: 32}, 0, 1, 0, true)),
	}
	for _, f := range setup {
		if err := orig.d.AdmitFrame(f, 1, ""); err != nil {
			t.Fatalf("admit: %v", err)
		}
	}
	orig.d.CommitTick()

	snap := orig.w.ExportSnapshot(1)

	resumed := newReplica(t)
	if err := resumed.w.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}

	tail := [][]byte{
		actions.Encode(actions.NewRideSetStatus(1, world.RideStatusOpen)),
		actions.Encode(actions.NewEntrancePlace(world.CoordsXY{X: 96, Y: 96}, 0, 2, 0, false)),
	}
	for _, f := range tail {
		if err := orig.d.AdmitFrame(f, 2, ""); err != nil {
			t.Fatalf("orig admit: %v", err)
		}
		if err := resumed.d.AdmitFrame(f, 2, ""); err != nil {
			t.Fatalf("resumed admit: %v", err)
		}
	}
	orig.d.CommitTick()
	resumed.d.CommitTick()

	if orig.w.StateDigest(2) != resumed.w.StateDigest(2) {
		t.Fatalf("resumed replica diverged from the original")
	}
}
