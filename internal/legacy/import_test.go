package legacy

import (
	"bytes"
	"encoding/binary"
	"testing"

	"parkcraft.gg/internal/sim/world"
)

type streamBuilder struct {
	buf bytes.Buffer
}

func newStream(mapSize uint16, seed int64) *streamBuilder {
	b := &streamBuilder{}
	b.buf.WriteString("PKL1")
	var hdr [10]byte
	binary.LittleEndian.PutUint16(hdr[0:2], mapSize)
	binary.LittleEndian.PutUint64(hdr[2:10], uint64(seed))
	b.buf.Write(hdr[:])
	return b
}

func (b *streamBuilder) record(kind world.ElementKind, dir uint8, flags byte, baseZ, clearZ byte, payload [4]byte) *streamBuilder {
	rec := [8]byte{byte(kind)<<2 | dir&3, flags, baseZ, clearZ}
	copy(rec[4:], payload[:])
	b.buf.Write(rec[:])
	return b
}

func (b *streamBuilder) surface(flags byte) *streamBuilder {
	return b.record(world.ElementSurface, 0, flags, 2, 2, [4]byte{})
}

func entrancePayload(et world.EntranceType, station world.StationIndex, ride world.RideID) [4]byte {
	var p [4]byte
	p[0] = byte(et)
	p[1] = byte(station)
	binary.LittleEndian.PutUint16(p[2:4], uint16(ride))
	return p
}

// park2x2 lays out a 2x2 park: a ride 5 entrance on tile (1,0), a maze track
// for ride 5 on (0,1), plain surfaces elsewhere.
func park2x2(entranceFlags byte) *bytes.Reader {
	b := newStream(2, 99)
	b.surface(flagLastTile) // (0,0)
	b.surface(0)            // (1,0)
	b.record(world.ElementEntrance, 1, entranceFlags|flagLastTile, 3, 9,
		entrancePayload(world.EntranceTypeRideEntrance, 0, 5))
	b.surface(0) // (0,1)
	b.record(world.ElementTrack, 0, flagIndestructible|flagLastTile, 2, 8,
		[4]byte{0b0110, 0, 5, 0})
	b.surface(flagLastTile) // (1,1)
	return bytes.NewReader(b.buf.Bytes())
}

func TestImport_BuildsWorldAndBindsSlots(t *testing.T) {
	w, err := Import(park2x2(0), "legacy")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if w.Config().MapSize != 2 || w.Config().Seed != 99 {
		t.Fatalf("config: %+v", w.Config())
	}

	// Tile (1,0): legacy surface plus the entrance, terminal flag on the last.
	seq := w.TileElements(world.CoordsXY{X: 32, Y: 0})
	if len(seq) != 2 {
		t.Fatalf("tile (1,0): %d elements, want 2", len(seq))
	}
	ent := seq[1]
	if ent.Kind != world.ElementEntrance || !ent.Last || seq[0].Last {
		t.Fatalf("tile (1,0) sequence malformed")
	}
	if ent.Direction != 1 || ent.BaseZ != 3 || ent.ClearZ != 9 {
		t.Fatalf("entrance fields: %+v", ent)
	}
	if ent.Entrance.RideID != 5 || ent.Entrance.EntranceType != world.EntranceTypeRideEntrance {
		t.Fatalf("entrance payload: %+v", ent.Entrance)
	}

	// The ride stub exists, carries the track's indestructible bit, and the
	// committed entrance is bound to its slot.
	r := w.Ride(5)
	if r == nil {
		t.Fatalf("ride 5 not created")
	}
	if r.LifecycleFlags&world.RideLifecycleIndestructible == 0 {
		t.Fatalf("indestructible flag not carried over")
	}
	slot := r.Stations[0].Entrance
	if slot.IsNull() || slot.X != 32 || slot.Y != 0 || slot.Z != 3 || slot.Direction != 1 {
		t.Fatalf("entrance slot: %+v", slot)
	}
	if !r.Stations[0].Exit.IsNull() {
		t.Fatalf("exit slot bound with no exit record")
	}

	// Track payload decoded.
	track := w.TileElements(world.CoordsXY{X: 0, Y: 32})[1]
	if track.Kind != world.ElementTrack || track.Track.RideID != 5 || track.Track.MazeWalls != 0b0110 {
		t.Fatalf("track element: %+v", track)
	}
}

func TestImport_GhostEntranceLeavesSlotUnbound(t *testing.T) {
	w, err := Import(park2x2(flagGhost), "legacy")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	ent := w.TileElements(world.CoordsXY{X: 32, Y: 0})[1]
	if !ent.Ghost {
		t.Fatalf("ghost flag not decoded")
	}
	if !w.Ride(5).Stations[0].Entrance.IsNull() {
		t.Fatalf("ghost entrance bound a slot")
	}
}

func TestImport_RejectsDuplicateCommittedEntrance(t *testing.T) {
	b := newStream(1, 0)
	b.surface(0)
	b.record(world.ElementEntrance, 0, 0, 2, 8,
		entrancePayload(world.EntranceTypeRideExit, 1, 3))
	b.record(world.ElementEntrance, 0, flagLastTile, 2, 8,
		entrancePayload(world.EntranceTypeRideExit, 1, 3))
	if _, err := Import(bytes.NewReader(b.buf.Bytes()), "x"); err == nil {
		t.Fatalf("duplicate committed entrance accepted")
	}
}

func TestImport_DuplicateGhostEntranceIsAllowed(t *testing.T) {
	b := newStream(1, 0)
	b.surface(0)
	b.record(world.ElementEntrance, 0, 0, 2, 8,
		entrancePayload(world.EntranceTypeRideExit, 1, 3))
	b.record(world.ElementEntrance, 0, flagGhost|flagLastTile, 2, 8,
		entrancePayload(world.EntranceTypeRideExit, 1, 3))
	w, err := Import(bytes.NewReader(b.buf.Bytes()), "x")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(w.TileElements(world.CoordsXY{X: 0, Y: 0})) != 3 {
		t.Fatalf("ghost shadow record missing")
	}
}

func TestImport_RejectsMalformedStreams(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		b := newStream(1, 0)
		data := b.buf.Bytes()
		data[0] = 'X'
		if _, err := Import(bytes.NewReader(data), "x"); err == nil {
			t.Fatalf("bad magic accepted")
		}
	})
	t.Run("zero map size", func(t *testing.T) {
		b := newStream(0, 0)
		if _, err := Import(bytes.NewReader(b.buf.Bytes()), "x"); err == nil {
			t.Fatalf("zero map size accepted")
		}
	})
	t.Run("truncated records", func(t *testing.T) {
		b := newStream(2, 0)
		b.surface(flagLastTile)
		if _, err := Import(bytes.NewReader(b.buf.Bytes()), "x"); err == nil {
			t.Fatalf("truncated stream accepted")
		}
	})
	t.Run("station out of range", func(t *testing.T) {
		b := newStream(1, 0)
		b.record(world.ElementEntrance, 0, flagLastTile, 2, 8,
			entrancePayload(world.EntranceTypeRideEntrance, world.MaxStations, 1))
		if _, err := Import(bytes.NewReader(b.buf.Bytes()), "x"); err == nil {
			t.Fatalf("out-of-range station accepted")
		}
	})
}

func TestImport_ResultSatisfiesDigestStability(t *testing.T) {
	w1, err := Import(park2x2(0), "legacy")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	w2, err := Import(park2x2(0), "legacy")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if w1.StateDigest(0) != w2.StateDigest(0) {
		t.Fatalf("importing the same stream twice produced different state")
	}
}
