package actions

import "fmt"

// The registry is the closed kind-set. Dispatch is a flat map lookup; adding a
// kind means adding a constructor here and a name below, and the completeness
// check keeps the two in lockstep.
var registry = map[Kind]func() Action{
	KindEntranceRemove: func() Action { return &EntranceRemoveAction{} },
	KindEntrancePlace:  func() Action { return &EntrancePlaceAction{} },
	KindRideSetStatus:  func() Action { return &RideSetStatusAction{} },
}

var kindNames = map[Kind]string{
	KindEntranceRemove: "ENTRANCE_REMOVE",
	KindEntrancePlace:  "ENTRANCE_PLACE",
	KindRideSetStatus:  "RIDE_SET_STATUS",
}

// New constructs a zero-valued action of the given kind. An unknown kind is a
// programming or wire-corruption error, not an ordinary failure.
func New(k Kind) (Action, error) {
	ctor, ok := registry[k]
	if !ok {
		return nil, fmt.Errorf("unknown action kind %d", k)
	}
	return ctor(), nil
}

// ValidateRegistry checks that every registered kind has a name, every name a
// constructor, and every constructor reports the kind it is registered under.
func ValidateRegistry() error {
	if len(registry) != len(kindNames) {
		return fmt.Errorf("registry size mismatch: ctors=%d names=%d", len(registry), len(kindNames))
	}
	for k, ctor := range registry {
		if _, ok := kindNames[k]; !ok {
			return fmt.Errorf("kind %d has no name", k)
		}
		a := ctor()
		if a.Kind() != k {
			return fmt.Errorf("kind %d constructor returns kind %d", k, a.Kind())
		}
	}
	return nil
}
