package protocol

// Transport-level error codes. Action-level outcomes travel as statuses in
// RESULT messages; these codes cover everything that fails before an action
// reaches the queue.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadFrame        = "E_BAD_FRAME"
	ErrUnknownKind     = "E_UNKNOWN_KIND"
	ErrNotReplicable   = "E_NOT_REPLICABLE"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadFrame:        {},
	ErrUnknownKind:     {},
	ErrNotReplicable:   {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
