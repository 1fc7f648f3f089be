package actions

import "parkcraft.gg/internal/sim/world"

// EntrancePlaceAction places a ride entrance or exit element and, for
// committed placements, binds the matching station slot. Ghost placements
// build the preview element only; the slot stays unbound so at most one
// non-ghost record ever fulfils it.
type EntrancePlaceAction struct {
	base
	loc       world.CoordsXY
	direction uint8
	ride      world.RideID
	station   world.StationIndex
	isExit    bool
}

func NewEntrancePlace(loc world.CoordsXY, direction uint8, ride world.RideID, station world.StationIndex, isExit bool) *EntrancePlaceAction {
	return &EntrancePlaceAction{loc: loc, direction: direction, ride: ride, station: station, isExit: isExit}
}

func (a *EntrancePlaceAction) Kind() Kind { return KindEntrancePlace }

func (a *EntrancePlaceAction) AcceptParameters(v Visitor) {
	v.Coords("loc", &a.loc)
	v.Uint8("direction", &a.direction)
	v.Uint16("ride", (*uint16)(&a.ride))
	v.Uint8("station", (*uint8)(&a.station))
	v.Bool("isExit", &a.isExit)
}

func (a *EntrancePlaceAction) entranceType() world.EntranceType {
	if a.isExit {
		return world.EntranceTypeRideExit
	}
	return world.EntranceTypeRideEntrance
}

func (a *EntrancePlaceAction) slotLocation(r *world.Ride) world.CoordsXYZD {
	if a.isExit {
		return r.Stations[a.station].Exit
	}
	return r.Stations[a.station].Entrance
}

func (a *EntrancePlaceAction) Validate(w *world.World) Result {
	ride := w.Ride(a.ride)
	if ride == nil {
		return Err(StatusInvalidParameters, StrNone, StrNone)
	}

	if a.station >= world.MaxStations || a.direction > 3 {
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

	// Committed placements need a free slot; previews may shadow a bound one.
	if !a.isGhost() && !a.slotLocation(ride).IsNull() {
		return Err(StatusDisallowed, StrSlotAlreadyBound, StrNone)
	}

	// The same record must not already exist; ghost and committed copies at
	// the same coordinates are distinct.
	if findEntranceElement(w, a.loc, a.ride, a.station, a.entranceType(), a.isGhost()) != nil {
		return Err(StatusDisallowed, StrSlotAlreadyBound, StrNone)
	}

	return OK()
}

func (a *EntrancePlaceAction) Commit(w *world.World) Result {
	if res := a.Validate(w); res.Status != StatusOk {
		return res
	}

	ride := w.Ride(a.ride)

	z := w.TileElementHeight(a.loc) / world.ZStep
	el := &world.Element{
		Kind:      world.ElementEntrance,
		Ghost:     a.isGhost(),
		BaseZ:     z,
		ClearZ:    z + 6,
		Direction: a.direction,
		Entrance: world.EntranceElement{
			RideID:       a.ride,
			StationIndex: a.station,
			EntranceType: a.entranceType(),
		},
	}
	w.InsertElement(a.loc, el)

	if !a.isGhost() {
		slot := world.CoordsXYZD{X: a.loc.X, Y: a.loc.Y, Z: z, Direction: a.direction}
		if a.isExit {
			ride.SetExit(a.station, slot)
		} else {
			ride.SetEntrance(a.station, slot)
		}
		ride.InvalidateTestResults()

		// A new entrance may complete an adjacent queue chain.
		w.QueueChainReset()
		w.ConnectPathEdgesAt(a.loc, el)
		w.UpdateQueueChains()
	}

	res := OK()
	center := world.CoordsXY{X: a.loc.X + world.TileSize/2, Y: a.loc.Y + world.TileSize/2}
	res.Position = world.CoordsXYZ{X: center.X, Y: center.Y, Z: w.TileElementHeight(center)}
	res.PositionValid = true

	w.InvalidateTileFull(a.loc)
	return res
}
