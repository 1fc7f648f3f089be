package actions

import "parkcraft.gg/internal/sim/world"

// RideSetStatusAction transitions a ride between closed, open, testing and
// simulating.
type RideSetStatusAction struct {
	base
	ride   world.RideID
	status uint8
}

func NewRideSetStatus(ride world.RideID, status world.RideStatus) *RideSetStatusAction {
	return &RideSetStatusAction{ride: ride, status: uint8(status)}
}

func (a *RideSetStatusAction) Kind() Kind { return KindRideSetStatus }

// Status changes survive into saved games.
func (a *RideSetStatusAction) Flags() uint16 { return FlagAllowWhilePaused | FlagAffectsPersistence }

func (a *RideSetStatusAction) AcceptParameters(v Visitor) {
	v.Uint16("ride", (*uint16)(&a.ride))
	v.Uint8("status", &a.status)
}

func (a *RideSetStatusAction) Validate(w *world.World) Result {
	ride := w.Ride(a.ride)
	if ride == nil {
		return Err(StatusInvalidParameters, StrNone, StrNone)
	}

	if a.status > uint8(world.RideStatusSimulating) {
		return Err(StatusInvalidParameters, StrNone, StrNone)
	}

	target := world.RideStatus(a.status)
	if target == ride.Status {
		return OK()
	}

	// Opening or testing needs a boardable station: entrance and exit both
	// bound on the first station.
	if target == world.RideStatusOpen || target == world.RideStatusTesting {
		if ride.Stations[0].Entrance.IsNull() {
			return Err(StatusDisallowed, StrEntranceNotYetBuilt, StrNone)
		}
		if ride.Stations[0].Exit.IsNull() {
			return Err(StatusDisallowed, StrExitNotYetBuilt, StrNone)
		}
		if ride.UnderConstruction {
			return Err(StatusDisallowed, StrMustBeClosedFirst, StrNone)
		}
	}

	return OK()
}

func (a *RideSetStatusAction) Commit(w *world.World) Result {
	if res := a.Validate(w); res.Status != StatusOk {
		return res
	}

	ride := w.Ride(a.ride)
	target := world.RideStatus(a.status)
	if target == ride.Status {
		return OK()
	}

	// Closing a running ride ends every boarding in progress.
	if target == world.RideStatusClosed {
		w.EvictGuests(a.ride)
	}
	if target == world.RideStatusTesting {
		ride.InvalidateTestResults()
	}
	ride.Status = target

	res := OK()
	start := ride.Stations[0].Start
	res.Position = world.CoordsXYZ{
		X: start.X + world.TileSize/2,
		Y: start.Y + world.TileSize/2,
		Z: w.TileElementHeight(world.CoordsXY{X: start.X + world.TileSize/2, Y: start.Y + world.TileSize/2}),
	}
	res.PositionValid = true
	return res
}
