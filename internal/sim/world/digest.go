package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
)

// StateDigest hashes every determinism-relevant field of the world. Two
// replicas that committed the same action stream must produce the same digest;
// any divergence is a determinism bug, not a tolerable drift.
func (w *World) StateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(w.cfg.Seed))
	digestWriteU64(h, &tmp, uint64(w.cfg.MapSize))
	if w.paused {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	w.digestTiles(h, &tmp)
	w.digestRides(h, &tmp)
	w.digestGuests(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func (w *World) digestTiles(h hash.Hash, tmp *[8]byte) {
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

	digestWriteU64(h, tmp, uint64(len(keys)))
	for _, k := range keys {
		digestWriteU64(h, tmp, uint64(uint32(k.X)))
		digestWriteU64(h, tmp, uint64(uint32(k.Y)))
		if !w.owned[k] {
			h.Write([]byte{0xFE})
		}
		for _, el := range w.tiles[k] {
			digestElement(h, tmp, el)
		}
	}
}

func digestElement(h hash.Hash, tmp *[8]byte, el *Element) {
	b := []byte{byte(el.Kind), 0, 0, el.Direction}
	if el.Ghost {
		b[1] = 1
	}
	if el.Last {
		b[2] = 1
	}
	h.Write(b)
	digestWriteU64(h, tmp, uint64(uint32(el.BaseZ)))
	digestWriteU64(h, tmp, uint64(uint32(el.ClearZ)))

	switch el.Kind {
	case ElementEntrance:
		digestWriteU64(h, tmp, uint64(el.Entrance.RideID))
		h.Write([]byte{byte(el.Entrance.StationIndex), byte(el.Entrance.EntranceType)})
	case ElementPath:
		q := byte(0)
		if el.Path.IsQueue {
			q = 1
		}
		h.Write([]byte{el.Path.Edges, q})
		digestWriteU64(h, tmp, uint64(el.Path.QueueRide))
	case ElementTrack:
		digestWriteU64(h, tmp, uint64(el.Track.RideID))
		h.Write([]byte{el.Track.MazeWalls})
	}
}

func (w *World) digestRides(h hash.Hash, tmp *[8]byte) {
	ids := make([]RideID, 0, len(w.rides))
	for id := range w.rides {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		r := w.rides[id]
		digestWriteU64(h, tmp, uint64(r.ID))
		uc := byte(0)
		if r.UnderConstruction {
			uc = 1
		}
		h.Write([]byte{byte(r.Status), uc})
		digestWriteU64(h, tmp, uint64(r.LifecycleFlags))
		for _, st := range r.Stations {
			digestCoordsXYZD(h, tmp, st.Entrance)
			digestCoordsXYZD(h, tmp, st.Exit)
			digestWriteU64(h, tmp, uint64(uint32(st.Start.X)))
			digestWriteU64(h, tmp, uint64(uint32(st.Start.Y)))
		}
		digestWriteU64(h, tmp, uint64(uint32(r.Results.Excitement)))
		digestWriteU64(h, tmp, uint64(uint32(r.Results.Intensity)))
		digestWriteU64(h, tmp, uint64(uint32(r.Results.MaxSpeed)))
	}
}

func digestCoordsXYZD(h hash.Hash, tmp *[8]byte, c CoordsXYZD) {
	digestWriteU64(h, tmp, uint64(uint32(c.X)))
	digestWriteU64(h, tmp, uint64(uint32(c.Y)))
	digestWriteU64(h, tmp, uint64(uint32(c.Z)))
	h.Write([]byte{c.Direction})
}

func (w *World) digestGuests(h hash.Hash, tmp *[8]byte) {
	ids := make([]GuestID, 0, len(w.guests))
	for id := range w.guests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	digestWriteU64(h, tmp, uint64(len(ids)))
	for _, id := range ids {
		g := w.guests[id]
		digestWriteU64(h, tmp, uint64(g.ID))
		digestWriteU64(h, tmp, uint64(g.OnRide))
		digestWriteU64(h, tmp, uint64(uint32(g.Pos.X)))
		digestWriteU64(h, tmp, uint64(uint32(g.Pos.Y)))
	}
}
