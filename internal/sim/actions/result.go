package actions

import "parkcraft.gg/internal/sim/world"

// Status is the closed outcome set for Validate/Commit. Expected failures are
// reported here, never as Go errors.
type Status uint8

const (
	StatusOk Status = iota
	StatusInvalidParameters
	StatusDisallowed
	StatusNotOwned
	StatusNotClosed
	StatusNoFreeElements
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "OK"
	case StatusInvalidParameters:
		return "INVALID_PARAMETERS"
	case StatusDisallowed:
		return "DISALLOWED"
	case StatusNotOwned:
		return "NOT_OWNED"
	case StatusNotClosed:
		return "NOT_CLOSED"
	case StatusNoFreeElements:
		return "NO_FREE_ELEMENTS"
	}
	return "UNKNOWN"
}

// StringID references a user-facing message. The core never defines string
// content; presentation resolves these.
type StringID uint16

const (
	StrNone StringID = iota
	StrMustBeClosedFirst
	StrNotAllowedToModifyStation
	StrLandNotOwnedByPark
	StrEntranceNotYetBuilt
	StrExitNotYetBuilt
	StrSlotAlreadyBound
	StrGamePaused
)

// Result is the immutable outcome of one Validate or Commit.
type Result struct {
	Status      Status
	ErrorTitle  StringID
	ErrorDetail StringID

	// Position drives viewport invalidation for the caller; valid only
	// when PositionValid is set.
	Position      world.CoordsXYZ
	PositionValid bool

	// Cost is the currency delta of the mutation.
	Cost int64
}

func OK() Result { return Result{Status: StatusOk} }

func Err(status Status, title, detail StringID) Result {
	return Result{Status: status, ErrorTitle: title, ErrorDetail: detail}
}
