package world

// Map geometry. Tiles are TileSize world units on a side; element heights are
// in Z units of ZStep.
const (
	TileSize = 32
	ZStep    = 8
)

type CoordsXY struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type CoordsXYZ struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// CoordsXYZD is a located, oriented point. Station entrance/exit slots use the
// null value when unbound.
type CoordsXYZD struct {
	X         int32 `json:"x"`
	Y         int32 `json:"y"`
	Z         int32 `json:"z"`
	Direction uint8 `json:"d"`
}

var LocationNull = CoordsXYZD{X: -1, Y: -1, Z: -1, Direction: 0xFF}

func (c CoordsXYZD) IsNull() bool { return c.X < 0 }

func (c CoordsXY) ToTile() TileKey { return TileKey{c.X >> 5, c.Y >> 5} }

type TileKey struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type ElementKind uint8

const (
	ElementSurface ElementKind = iota
	ElementPath
	ElementTrack
	ElementEntrance
	ElementScenery
)

func (k ElementKind) String() string {
	switch k {
	case ElementSurface:
		return "SURFACE"
	case ElementPath:
		return "PATH"
	case ElementTrack:
		return "TRACK"
	case ElementEntrance:
		return "ENTRANCE"
	case ElementScenery:
		return "SCENERY"
	}
	return "UNKNOWN"
}

type EntranceType uint8

const (
	EntranceTypeRideEntrance EntranceType = iota
	EntranceTypeRideExit
	EntranceTypePark
)

// Element is one record in a tile's ordered sequence. Order within a tile is
// significant (stacking/clearance), and the last record carries Last.
// Only the payload matching Kind is meaningful.
type Element struct {
	Kind      ElementKind `json:"kind"`
	Ghost     bool        `json:"ghost,omitempty"`
	Last      bool        `json:"last,omitempty"`
	BaseZ     int32       `json:"base_z"`
	ClearZ    int32       `json:"clear_z"`
	Direction uint8       `json:"dir"`

	Entrance EntranceElement `json:"entrance,omitempty"`
	Path     PathElement     `json:"path,omitempty"`
	Track    TrackElement    `json:"track,omitempty"`
}

type EntranceElement struct {
	RideID       RideID       `json:"ride"`
	StationIndex StationIndex `json:"station"`
	EntranceType EntranceType `json:"type"`
}

type PathElement struct {
	// Edges is a bitmask of the four connected directions.
	Edges     uint8  `json:"edges"`
	IsQueue   bool   `json:"queue,omitempty"`
	QueueRide RideID `json:"queue_ride,omitempty"`
}

type TrackElement struct {
	RideID RideID `json:"ride"`
	// MazeWalls is a bitmask of closed boundary segments, one bit per
	// direction. Meaningful only for maze-style rides.
	MazeWalls uint8 `json:"maze_walls,omitempty"`
}
