package world

// Direction offsets, one tile per step. Opposite direction is d ^ 2.
var directionOffsets = [4]CoordsXY{
	{TileSize, 0},
	{0, TileSize},
	{-TileSize, 0},
	{0, -TileSize},
}

func offsetInDirection(loc CoordsXY, d uint8) CoordsXY {
	o := directionOffsets[d&3]
	return CoordsXY{loc.X + o.X, loc.Y + o.Y}
}

// QueueChainReset discards any queue-chain work pending from earlier
// mutations. Call it before starting a new connectivity edit so stale chain
// state never leaks into the current commit.
func (w *World) QueueChainReset() {
	w.queueChainPending = w.queueChainPending[:0]
}

// RemovePathEdgesAt detaches every neighbouring path edge that terminates at
// the element being removed. Queue paths that lose an edge are queued for
// chain re-propagation.
func (w *World) RemovePathEdgesAt(loc CoordsXY, el *Element) {
	for d := uint8(0); d < 4; d++ {
		nloc := offsetInDirection(loc, d)
		for _, ne := range w.tiles[nloc.ToTile()] {
			if ne.Kind != ElementPath || ne.BaseZ != el.BaseZ {
				continue
			}
			back := (d + 2) & 3
			if ne.Path.Edges&(1<<back) == 0 {
				continue
			}
			ne.Path.Edges &^= 1 << back
			if ne.Path.IsQueue {
				w.queueChainPending = append(w.queueChainPending, nloc)
			}
		}
	}
}

// ConnectPathEdgesAt attaches neighbouring path edges to a newly placed
// element, the mirror of RemovePathEdgesAt. Queue paths gaining an edge are
// queued for chain re-propagation.
func (w *World) ConnectPathEdgesAt(loc CoordsXY, el *Element) {
	for d := uint8(0); d < 4; d++ {
		nloc := offsetInDirection(loc, d)
		for _, ne := range w.tiles[nloc.ToTile()] {
			if ne.Kind != ElementPath || ne.BaseZ != el.BaseZ {
				continue
			}
			ne.Path.Edges |= 1 << ((d + 2) & 3)
			if ne.Path.IsQueue {
				w.queueChainPending = append(w.queueChainPending, nloc)
			}
		}
	}
}

// ReplaceBoundaryConnector restores the boundary wall on the adjacent maze
// track when a maze entrance terminus is removed, so the maze is not left
// with an opening into nothing.
func (w *World) ReplaceBoundaryConnector(loc CoordsXY, el *Element) {
	if el.Kind != ElementEntrance {
		return
	}
	ride := w.rides[el.Entrance.RideID]
	if ride == nil || !ride.IsMaze() {
		return
	}
	nloc := offsetInDirection(loc, el.Direction)
	for _, ne := range w.tiles[nloc.ToTile()] {
		if ne.Kind == ElementTrack && ne.Track.RideID == el.Entrance.RideID {
			ne.Track.MazeWalls |= 1 << ((el.Direction + 2) & 3)
		}
	}
}

// UpdateQueueChains re-propagates ride linkage over every queue chain touched
// since the last reset. A queue path belongs to the ride whose entrance its
// connected chain reaches; chains that no longer reach one are unlinked.
func (w *World) UpdateQueueChains() {
	for _, start := range w.queueChainPending {
		w.updateQueueChain(start)
	}
	w.queueChainPending = w.queueChainPending[:0]
}

func (w *World) updateQueueChain(start CoordsXY) {
	type node struct {
		loc CoordsXY
		el  *Element
	}
	var chain []node
	visited := map[TileKey]bool{}
	frontier := []CoordsXY{start}
	linked := RideIDNull

	// Walk connected queue paths in fixed direction order so the resulting
	// linkage is identical on every replica.
	for len(frontier) > 0 {
		loc := frontier[0]
		frontier = frontier[1:]
		k := loc.ToTile()
		if visited[k] {
			continue
		}
		visited[k] = true

		var qe *Element
		for _, e := range w.tiles[k] {
			if e.Kind == ElementPath && e.Path.IsQueue {
				qe = e
				break
			}
		}
		if qe == nil {
			continue
		}
		chain = append(chain, node{loc, qe})

		for d := uint8(0); d < 4; d++ {
			if qe.Path.Edges&(1<<d) == 0 {
				continue
			}
			nloc := offsetInDirection(loc, d)
			if linked == RideIDNull {
				if r := w.entranceRideAt(nloc); r != RideIDNull {
					linked = r
				}
			}
			frontier = append(frontier, nloc)
		}
	}

	for _, n := range chain {
		n.el.Path.QueueRide = linked
	}
}

func (w *World) entranceRideAt(loc CoordsXY) RideID {
	for _, e := range w.tiles[loc.ToTile()] {
		if e.Kind == ElementEntrance && !e.Ghost && e.Entrance.EntranceType == EntranceTypeRideEntrance {
			return e.Entrance.RideID
		}
	}
	return RideIDNull
}
