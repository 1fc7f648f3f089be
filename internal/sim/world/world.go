package world

import "fmt"

type Config struct {
	ID string
	// MapSize is the number of tiles per side.
	MapSize int32
	Seed    int64
}

// World is the authoritative park state. It is owned by the simulation loop:
// all access must come from the goroutine driving the current tick. The world
// itself never does I/O; callers pass it explicitly into action validation and
// commit.
type World struct {
	cfg Config

	tiles  map[TileKey][]*Element
	rides  map[RideID]*Ride
	guests map[GuestID]*Guest
	owned  map[TileKey]bool

	paused bool

	// Tiles whose on-screen region is stale. A rendering collaborator
	// consumes and clears this via TakeInvalidated.
	invalidated []TileKey

	// Queue paths whose chain state must be re-propagated before the end
	// of the current commit.
	queueChainPending []CoordsXY

	nextGuestNum GuestID
}

func New(cfg Config) (*World, error) {
	if cfg.MapSize <= 0 {
		return nil, fmt.Errorf("map size must be positive, got %d", cfg.MapSize)
	}
	w := &World{
		cfg:    cfg,
		tiles:  make(map[TileKey][]*Element),
		rides:  make(map[RideID]*Ride),
		guests: make(map[GuestID]*Guest),
		owned:  make(map[TileKey]bool),
	}
	// Every tile starts with a flat surface element so height sampling and
	// the terminal-flag invariant hold everywhere.
	for x := int32(0); x < cfg.MapSize; x++ {
		for y := int32(0); y < cfg.MapSize; y++ {
			k := TileKey{x, y}
			w.tiles[k] = []*Element{{Kind: ElementSurface, BaseZ: 2, ClearZ: 2, Last: true}}
			w.owned[k] = true
		}
	}
	return w, nil
}

func (w *World) Config() Config { return w.cfg }

func (w *World) Paused() bool     { return w.paused }
func (w *World) SetPaused(p bool) { w.paused = p }

// --- queries ---

func (w *World) Ride(id RideID) *Ride { return w.rides[id] }

func (w *World) AddRide(r *Ride) error {
	if _, ok := w.rides[r.ID]; ok {
		return fmt.Errorf("ride %d already exists", r.ID)
	}
	w.rides[r.ID] = r
	return nil
}

// TileElements returns the ordered record sequence of the tile containing loc.
// Callers must not retain element pointers across commits.
func (w *World) TileElements(loc CoordsXY) []*Element { return w.tiles[loc.ToTile()] }

func (w *World) InBounds(loc CoordsXY) bool {
	k := loc.ToTile()
	return loc.X >= 0 && loc.Y >= 0 && k.X < w.cfg.MapSize && k.Y < w.cfg.MapSize
}

// IsOwned reports whether the acting party may modify the tile containing loc.
func (w *World) IsOwned(loc CoordsXY) bool {
	return w.InBounds(loc) && w.owned[loc.ToTile()]
}

func (w *World) SetOwned(loc CoordsXY, owned bool) {
	if w.InBounds(loc) {
		w.owned[loc.ToTile()] = owned
	}
}

// TileElementHeight samples the tallest structural surface at loc, in world Z
// units.
func (w *World) TileElementHeight(loc CoordsXY) int32 {
	var h int32
	for _, el := range w.tiles[loc.ToTile()] {
		switch el.Kind {
		case ElementSurface, ElementPath, ElementTrack:
			if z := el.BaseZ * ZStep; z > h {
				h = z
			}
		}
	}
	return h
}

// --- mutations ---

// InsertElement appends el to the tile's record sequence, keeping the terminal
// flag on the new last record.
func (w *World) InsertElement(loc CoordsXY, el *Element) {
	k := loc.ToTile()
	seq := w.tiles[k]
	for _, e := range seq {
		e.Last = false
	}
	el.Last = true
	w.tiles[k] = append(seq, el)
}

// RemoveElement removes the given record (matched by identity) from the tile's
// sequence and restores the terminal flag on the new last record. It reports
// whether the record was present.
func (w *World) RemoveElement(loc CoordsXY, el *Element) bool {
	k := loc.ToTile()
	seq := w.tiles[k]
	for i, e := range seq {
		if e != el {
			continue
		}
		seq = append(seq[:i], seq[i+1:]...)
		if len(seq) > 0 {
			seq[len(seq)-1].Last = true
		}
		w.tiles[k] = seq
		return true
	}
	return false
}

// --- guests ---

func (w *World) SpawnGuest(pos CoordsXY) *Guest {
	w.nextGuestNum++
	g := &Guest{ID: w.nextGuestNum, OnRide: RideIDNull, Pos: pos}
	w.guests[g.ID] = g
	return g
}

func (w *World) Guest(id GuestID) *Guest { return w.guests[id] }

func (w *World) PutGuestOnRide(g *Guest, ride RideID) { g.OnRide = ride }

// EvictGuests removes every guest currently occupying the ride. Must run
// before the ride's boarding geometry changes.
func (w *World) EvictGuests(ride RideID) int {
	n := 0
	for _, g := range w.guests {
		if g.OnRide == ride {
			g.OnRide = RideIDNull
			n++
		}
	}
	return n
}

// ClearConstruction halts any in-progress construction session on the ride.
func (w *World) ClearConstruction(r *Ride) {
	r.UnderConstruction = false
}

// --- render invalidation ---

// InvalidateTileFull marks the tile containing loc as needing redraw.
func (w *World) InvalidateTileFull(loc CoordsXY) {
	w.invalidated = append(w.invalidated, loc.ToTile())
}

// TakeInvalidated hands the pending redraw regions to the rendering boundary
// and clears them.
func (w *World) TakeInvalidated() []TileKey {
	out := w.invalidated
	w.invalidated = nil
	return out
}
