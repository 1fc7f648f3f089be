package actions

import "parkcraft.gg/internal/sim/world"

// EntranceRemoveAction removes a ride's entrance or exit element at a tile and
// unbinds the matching station slot.
type EntranceRemoveAction struct {
	base
	loc     world.CoordsXY
	ride    world.RideID
	station world.StationIndex
	isExit  bool
}

func NewEntranceRemove(loc world.CoordsXY, ride world.RideID, station world.StationIndex, isExit bool) *EntranceRemoveAction {
	return &EntranceRemoveAction{loc: loc, ride: ride, station: station, isExit: isExit}
}

func (a *EntranceRemoveAction) Kind() Kind { return KindEntranceRemove }

func (a *EntranceRemoveAction) AcceptParameters(v Visitor) {
	v.Coords("loc", &a.loc)
	v.Uint16("ride", (*uint16)(&a.ride))
	v.Uint8("station", (*uint8)(&a.station))
	v.Bool("isExit", &a.isExit)
}

func (a *EntranceRemoveAction) entranceType() world.EntranceType {
	if a.isExit {
		return world.EntranceTypeRideExit
	}
	return world.EntranceTypeRideEntrance
}

// findEntranceElement locates the target record by all four discriminants:
// ride, station, entrance type and ghost state. A ghost execution matches only
// ghost records; otherwise non-ghost records win over ghost ones at the same
// coordinates, so duplicate ghost/non-ghost pairs resolve the same way on
// every replica.
func findEntranceElement(w *world.World, loc world.CoordsXY, ride world.RideID, station world.StationIndex, et world.EntranceType, ghost bool) *world.Element {
	var ghostMatch *world.Element
	for _, el := range w.TileElements(loc) {
		if el.Kind != world.ElementEntrance {
			continue
		}
		if el.Entrance.RideID != ride {
			continue
		}
		if el.Entrance.StationIndex != station {
			continue
		}
		if el.Entrance.EntranceType != et {
			continue
		}
		if !el.Ghost {
			if ghost {
				continue
			}
			return el
		}
		if ghostMatch == nil {
			ghostMatch = el
		}
	}
	return ghostMatch
}

func (a *EntranceRemoveAction) Validate(w *world.World) Result {
	ride := w.Ride(a.ride)
	if ride == nil {
		return Err(StatusInvalidParameters, StrNone, StrNone)
	}

	if ride.Status != world.RideStatusClosed && ride.Status != world.RideStatusSimulating {
		return Err(StatusDisallowed, StrMustBeClosedFirst, StrNone)
	}

	if ride.LifecycleFlags&world.RideLifecycleIndestructible != 0 {
		return Err(StatusDisallowed, StrNotAllowedToModifyStation, StrNone)
	}

	if !w.IsOwned(a.loc) {
		return Err(StatusNotOwned, StrLandNotOwnedByPark, StrNone)
	}

	if findEntranceElement(w, a.loc, a.ride, a.station, a.entranceType(), a.isGhost()) == nil {
		return Err(StatusInvalidParameters, StrNone, StrNone)
	}

	return OK()
}

func (a *EntranceRemoveAction) Commit(w *world.World) Result {
	// Defensive re-validation: the world may have changed while this action
	// sat in the queue. No side effect happens before the last check passes.
	if res := a.Validate(w); res.Status != StatusOk {
		return res
	}

	ride := w.Ride(a.ride)

	// Ride-level cleanup must precede the record's disappearance: committed
	// removals change station geometry, so construction sessions, boarding
	// guests and measured results are all stale the moment it goes.
	if !a.isGhost() {
		w.ClearConstruction(ride)
		w.EvictGuests(a.ride)
		ride.InvalidateTestResults()
	}

	// Re-resolve; never reuse an element captured during validation.
	el := findEntranceElement(w, a.loc, a.ride, a.station, a.entranceType(), a.isGhost())
	if el == nil {
		return Err(StatusInvalidParameters, StrNone, StrNone)
	}

	res := OK()
	// Planar center offset from the action coordinates, with the height
	// sampled at that point.
	center := world.CoordsXY{X: a.loc.X + world.TileSize/2, Y: a.loc.Y + world.TileSize/2}
	res.Position = world.CoordsXYZ{X: center.X, Y: center.Y, Z: w.TileElementHeight(center)}
	res.PositionValid = true

	// Connectivity cleanup while the record is still present.
	w.QueueChainReset()
	w.ReplaceBoundaryConnector(a.loc, el)
	w.RemovePathEdgesAt(a.loc, el)

	w.RemoveElement(a.loc, el)

	// Exactly the targeted slot: entry and exit clearing are mutually
	// exclusive.
	if a.isExit {
		ride.ClearExit(a.station)
	} else {
		ride.ClearEntrance(a.station)
	}

	w.UpdateQueueChains()

	w.InvalidateTileFull(a.loc)
	return res
}
