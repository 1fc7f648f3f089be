package world

import (
	"fmt"
	"sort"
)

const SnapshotVersion = 1

// Snapshot is a complete, order-stable export of world state. Importing a
// snapshot must reproduce the exporting world's digest exactly; persistence
// code handles the file format around it.
type Snapshot struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	Seed    int64  `json:"seed"`
	MapSize int32  `json:"map_size"`
	Paused  bool   `json:"paused,omitempty"`

	Tiles  []SnapshotTile `json:"tiles"`
	Rides  []Ride         `json:"rides"`
	Guests []Guest        `json:"guests"`

	// Unowned lists tiles the park may not modify; ownership defaults to
	// true for every in-bounds tile.
	Unowned []TileKey `json:"unowned,omitempty"`

	NextGuestNum GuestID `json:"next_guest_num"`
}

type SnapshotTile struct {
	Key      TileKey   `json:"key"`
	Elements []Element `json:"elements"`
}

func (w *World) ExportSnapshot(tick uint64) Snapshot {
	s := Snapshot{
		Version:      SnapshotVersion,
		WorldID:      w.cfg.ID,
		Tick:         tick,
		Seed:         w.cfg.Seed,
		MapSize:      w.cfg.MapSize,
		Paused:       w.paused,
		NextGuestNum: w.nextGuestNum,
	}

	keys := make([]TileKey, 0, len(w.tiles))
	for k := range w.tiles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Y < keys[j].Y
	})
	for _, k := range keys {
		st := SnapshotTile{Key: k}
		for _, el := range w.tiles[k] {
			st.Elements = append(st.Elements, *el)
		}
		s.Tiles = append(s.Tiles, st)
		if !w.owned[k] {
			s.Unowned = append(s.Unowned, k)
		}
	}

	rideIDs := make([]RideID, 0, len(w.rides))
	for id := range w.rides {
		rideIDs = append(rideIDs, id)
	}
	sort.Slice(rideIDs, func(i, j int) bool { return rideIDs[i] < rideIDs[j] })
	for _, id := range rideIDs {
		s.Rides = append(s.Rides, *w.rides[id])
	}

	guestIDs := make([]GuestID, 0, len(w.guests))
	for id := range w.guests {
		guestIDs = append(guestIDs, id)
	}
	sort.Slice(guestIDs, func(i, j int) bool { return guestIDs[i] < guestIDs[j] })
	for _, id := range guestIDs {
		s.Guests = append(s.Guests, *w.guests[id])
	}

	return s
}

// ImportSnapshot replaces the world's state with the snapshot contents.
func (w *World) ImportSnapshot(s Snapshot) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.MapSize != w.cfg.MapSize {
		return fmt.Errorf("snapshot map size %d does not match world %d", s.MapSize, w.cfg.MapSize)
	}

	tiles := make(map[TileKey][]*Element, len(s.Tiles))
	for _, st := range s.Tiles {
		seq := make([]*Element, 0, len(st.Elements))
		for i := range st.Elements {
			el := st.Elements[i]
			seq = append(seq, &el)
		}
		if n := len(seq); n > 0 && !seq[n-1].Last {
			return fmt.Errorf("tile (%d,%d): missing terminal flag", st.Key.X, st.Key.Y)
		}
		tiles[st.Key] = seq
	}

	rides := make(map[RideID]*Ride, len(s.Rides))
	for i := range s.Rides {
		r := s.Rides[i]
		rides[r.ID] = &r
	}
	guests := make(map[GuestID]*Guest, len(s.Guests))
	for i := range s.Guests {
		g := s.Guests[i]
		guests[g.ID] = &g
	}
	owned := make(map[TileKey]bool, len(tiles))
	for k := range tiles {
		owned[k] = true
	}
	for _, k := range s.Unowned {
		owned[k] = false
	}

	w.tiles = tiles
	w.rides = rides
	w.guests = guests
	w.owned = owned
	w.paused = s.Paused
	w.nextGuestNum = s.NextGuestNum
	w.invalidated = nil
	w.queueChainPending = nil
	return nil
}
