// Package legacy decodes the predecessor on-disk park format: fixed-size,
// bit-packed tile records. The importer runs before any action does and must
// hand the simulation a world that already satisfies its invariants — correct
// terminal-flag sequencing and at most one committed entrance record per
// station slot.
package legacy

import (
	"encoding/binary"
	"fmt"
	"io"

	"parkcraft.gg/internal/sim/world"
)

const (
	magic      = "PKL1"
	recordSize = 8
)

// Record layout (8 bytes):
//
//	0    bits 0..1 direction, bits 2..7 element kind
//	1    flags
//	2    base height
//	3    clearance height
//	4..7 kind-specific payload
//
// Records run tile by tile in row-major order; the last-tile flag closes each
// tile's sequence.
const (
	flagGhost          = 1 << 4
	flagIndestructible = 1 << 6
	flagLastTile       = 1 << 7
)

type header struct {
	MapSize uint16
	Seed    int64
}

// Import decodes a legacy park stream into a live world.
func Import(r io.Reader, worldID string) (*world.World, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	w, err := world.New(world.Config{ID: worldID, MapSize: int32(hdr.MapSize), Seed: hdr.Seed})
	if err != nil {
		return nil, err
	}

	imp := &importer{w: w, seen: make(map[slotKey]bool)}
	total := int(hdr.MapSize) * int(hdr.MapSize)
	var rec [recordSize]byte
	for tile := 0; tile < total; {
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			return nil, fmt.Errorf("tile %d: truncated record stream: %w", tile, err)
		}
		k := world.TileKey{X: int32(tile % int(hdr.MapSize)), Y: int32(tile / int(hdr.MapSize))}
		last, err := imp.apply(k, rec)
		if err != nil {
			return nil, fmt.Errorf("tile (%d,%d): %w", k.X, k.Y, err)
		}
		if last {
			tile++
		}
	}

	imp.bindStations()
	return w, nil
}

func readHeader(r io.Reader) (header, error) {
	var h header
	var b [14]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if string(b[:4]) != magic {
		return h, fmt.Errorf("bad magic %q", b[:4])
	}
	h.MapSize = binary.LittleEndian.Uint16(b[4:6])
	if h.MapSize == 0 {
		return h, fmt.Errorf("zero map size")
	}
	h.Seed = int64(binary.LittleEndian.Uint64(b[6:14]))
	return h, nil
}

type slotKey struct {
	ride    world.RideID
	station world.StationIndex
	et      world.EntranceType
}

type importer struct {
	w    *world.World
	seen map[slotKey]bool

	// Non-ghost entrance elements, in decode order, for slot binding.
	entrances []placedEntrance
}

type placedEntrance struct {
	loc world.CoordsXY
	el  world.EntranceElement
	z   int32
	dir uint8
}

func (imp *importer) apply(k world.TileKey, rec [recordSize]byte) (last bool, err error) {
	kind := world.ElementKind(rec[0] >> 2)
	el := &world.Element{
		Kind:      kind,
		Direction: rec[0] & 3,
		Ghost:     rec[1]&flagGhost != 0,
		BaseZ:     int32(rec[2]),
		ClearZ:    int32(rec[3]),
	}
	loc := world.CoordsXY{X: k.X * world.TileSize, Y: k.Y * world.TileSize}

	switch kind {
	case world.ElementSurface:
		// The fresh world already has a surface; the legacy one replaces it.
		if seq := imp.w.TileElements(loc); len(seq) == 1 && seq[0].Kind == world.ElementSurface {
			imp.w.RemoveElement(loc, seq[0])
		}
	case world.ElementEntrance:
		el.Entrance = world.EntranceElement{
			RideID:       world.RideID(binary.LittleEndian.Uint16(rec[6:8])),
			StationIndex: world.StationIndex(rec[5]),
			EntranceType: world.EntranceType(rec[4]),
		}
		if el.Entrance.StationIndex >= world.MaxStations {
			return false, fmt.Errorf("station index %d out of range", el.Entrance.StationIndex)
		}
		if !el.Ghost && el.Entrance.EntranceType != world.EntranceTypePark {
			key := slotKey{el.Entrance.RideID, el.Entrance.StationIndex, el.Entrance.EntranceType}
			if imp.seen[key] {
				return false, fmt.Errorf("duplicate committed entrance for ride %d station %d", key.ride, key.station)
			}
			imp.seen[key] = true
			imp.entrances = append(imp.entrances, placedEntrance{loc: loc, el: el.Entrance, z: el.BaseZ, dir: el.Direction})
		}
		imp.ensureRide(el.Entrance.RideID, false)
	case world.ElementPath:
		el.Path = world.PathElement{
			Edges:     rec[4],
			IsQueue:   rec[5]&1 != 0,
			QueueRide: world.RideID(binary.LittleEndian.Uint16(rec[6:8])),
		}
	case world.ElementTrack:
		el.Track = world.TrackElement{
			RideID:    world.RideID(binary.LittleEndian.Uint16(rec[6:8])),
			MazeWalls: rec[4],
		}
		imp.ensureRide(el.Track.RideID, rec[1]&flagIndestructible != 0)
	case world.ElementScenery:
		// No payload.
	default:
		return false, fmt.Errorf("unknown element kind %d", kind)
	}

	imp.w.InsertElement(loc, el)
	return rec[1]&flagLastTile != 0, nil
}

func (imp *importer) ensureRide(id world.RideID, indestructible bool) {
	if id == world.RideIDNull {
		return
	}
	r := imp.w.Ride(id)
	if r == nil {
		r = world.NewRide(id)
		_ = imp.w.AddRide(r)
	}
	if indestructible {
		r.LifecycleFlags |= world.RideLifecycleIndestructible
	}
}

// bindStations points each ride's station slots at the committed entrance
// records found during decode.
func (imp *importer) bindStations() {
	for _, pe := range imp.entrances {
		r := imp.w.Ride(pe.el.RideID)
		if r == nil {
			continue
		}
		slot := world.CoordsXYZD{X: pe.loc.X, Y: pe.loc.Y, Z: pe.z, Direction: pe.dir}
		switch pe.el.EntranceType {
		case world.EntranceTypeRideEntrance:
			r.SetEntrance(pe.el.StationIndex, slot)
		case world.EntranceTypeRideExit:
			r.SetExit(pe.el.StationIndex, slot)
		}
	}
}
