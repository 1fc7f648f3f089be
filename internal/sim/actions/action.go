// Package actions defines the contract every world mutation goes through:
// construct, validate without side effects, then commit exactly once in
// deterministic tick order. Concrete actions form a closed kind-set dispatched
// through the registry; their parameters travel byte-exactly over the wire in
// the order AcceptParameters visits them.
package actions

import "parkcraft.gg/internal/sim/world"

// Kind tags an action for dispatch and serialization framing. Values are part
// of the wire format and must never be renumbered.
type Kind uint8

const (
	KindEntranceRemove Kind = 0
	KindEntrancePlace  Kind = 1
	KindRideSetStatus  Kind = 2
)

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "UNKNOWN"
}

// Per-kind scheduling flags, returned by Flags().
const (
	// FlagAllowWhilePaused admits the action while the simulation is paused.
	FlagAllowWhilePaused uint16 = 1 << 0
	// FlagClientOnly marks actions that never replicate to peers.
	FlagClientOnly uint16 = 1 << 1
	// FlagAffectsPersistence marks actions that change saved state.
	FlagAffectsPersistence uint16 = 1 << 2
)

// Per-instance execution flags. Part of the wire frame.
const (
	// ExecGhost targets preview objects only; a ghost execution must never
	// touch committed world records.
	ExecGhost uint32 = 1 << 0
	// ExecNetworked marks actions admitted from a remote peer. Local-only
	// authorization is skipped; world-state preconditions are not.
	ExecNetworked uint32 = 1 << 1
	// ExecAllowWhilePaused lets a single instance through a paused world.
	ExecAllowWhilePaused uint32 = 1 << 2
	// ExecNoSpend skips the currency charge.
	ExecNoSpend uint32 = 1 << 3
)

// Visitor walks every named parameter of an action. The same visitation order
// serves encoding, decoding and introspection, so it is the single source of
// truth for the wire layout.
type Visitor interface {
	Bool(name string, p *bool)
	Uint8(name string, p *uint8)
	Uint16(name string, p *uint16)
	Int32(name string, p *int32)
	Coords(name string, p *world.CoordsXY)
}

// Action is one self-contained mutation request. Instances are single-use:
// validated, committed at most once, then discarded.
//
// Validate must not have observable side effects on world state and must be
// safe to call repeatedly. Commit re-checks every precondition before its
// first side effect; world state may have changed while the action sat in the
// queue, and a reference resolved during Validate must never be reused.
type Action interface {
	Kind() Kind
	Flags() uint16

	ExecFlags() uint32
	SetExecFlags(uint32)
	Actor() uint32
	SetActor(uint32)

	AcceptParameters(v Visitor)

	Validate(w *world.World) Result
	Commit(w *world.World) Result
}

// base carries the protocol-internal fields shared by every action kind.
type base struct {
	exec  uint32
	actor uint32
}

func (b *base) Flags() uint16         { return 0 }
func (b *base) ExecFlags() uint32     { return b.exec }
func (b *base) SetExecFlags(f uint32) { b.exec = f }
func (b *base) Actor() uint32         { return b.actor }
func (b *base) SetActor(a uint32)     { b.actor = a }

func (b *base) isGhost() bool { return b.exec&ExecGhost != 0 }
