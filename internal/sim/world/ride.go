package world

type RideID uint16

const RideIDNull RideID = 0xFFFF

type StationIndex uint8

const MaxStations = 4

type RideStatus uint8

const (
	RideStatusClosed RideStatus = iota
	RideStatusOpen
	RideStatusTesting
	RideStatusSimulating
)

func (s RideStatus) String() string {
	switch s {
	case RideStatusClosed:
		return "CLOSED"
	case RideStatusOpen:
		return "OPEN"
	case RideStatusTesting:
		return "TESTING"
	case RideStatusSimulating:
		return "SIMULATING"
	}
	return "UNKNOWN"
}

// Ride lifecycle flags.
const (
	RideLifecycleIndestructible uint32 = 1 << 0
	RideLifecycleTested         uint32 = 1 << 1
	RideLifecycleMaze           uint32 = 1 << 2
)

// Station is a named binding point on a ride. Entrance and Exit are
// LocationNull while unbound.
type Station struct {
	Start    CoordsXY   `json:"start"`
	Entrance CoordsXYZD `json:"entrance"`
	Exit     CoordsXYZD `json:"exit"`
}

// TestResults are measured while a ride runs with RideStatusTesting. They
// depend on station geometry and are discarded when it changes.
type TestResults struct {
	Excitement int32 `json:"excitement"`
	Intensity  int32 `json:"intensity"`
	MaxSpeed   int32 `json:"max_speed"`
}

type Ride struct {
	ID             RideID               `json:"id"`
	Status         RideStatus           `json:"status"`
	LifecycleFlags uint32               `json:"lifecycle"`
	Stations       [MaxStations]Station `json:"stations"`
	Results        TestResults          `json:"results"`

	// UnderConstruction marks an in-progress construction session
	// (partially placed track awaiting completion).
	UnderConstruction bool `json:"under_construction,omitempty"`
}

func NewRide(id RideID) *Ride {
	r := &Ride{ID: id}
	for i := range r.Stations {
		r.Stations[i].Entrance = LocationNull
		r.Stations[i].Exit = LocationNull
	}
	return r
}

func (r *Ride) IsMaze() bool { return r.LifecycleFlags&RideLifecycleMaze != 0 }

func (r *Ride) ClearEntrance(station StationIndex) {
	if int(station) < len(r.Stations) {
		r.Stations[station].Entrance = LocationNull
	}
}

func (r *Ride) ClearExit(station StationIndex) {
	if int(station) < len(r.Stations) {
		r.Stations[station].Exit = LocationNull
	}
}

func (r *Ride) SetEntrance(station StationIndex, loc CoordsXYZD) {
	if int(station) < len(r.Stations) {
		r.Stations[station].Entrance = loc
	}
}

func (r *Ride) SetExit(station StationIndex, loc CoordsXYZD) {
	if int(station) < len(r.Stations) {
		r.Stations[station].Exit = loc
	}
}

// InvalidateTestResults discards measurements that depend on the ride's
// current geometry.
func (r *Ride) InvalidateTestResults() {
	r.LifecycleFlags &^= RideLifecycleTested
	r.Results = TestResults{}
}

type GuestID uint32

type Guest struct {
	ID GuestID `json:"id"`
	// OnRide is the ride the guest currently occupies, RideIDNull if none.
	OnRide RideID   `json:"on_ride"`
	Pos    CoordsXY `json:"pos"`
}
