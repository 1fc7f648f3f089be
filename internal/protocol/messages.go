package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ActorID         uint32 `json:"actor_id"`
	WorldID         string `json:"world_id"`
	Tick            uint64 `json:"tick"`
	TickRateHz      int    `json:"tick_rate_hz"`
	CodecVersion    int    `json:"codec_version"`
}

// COMMAND (client -> server): one encoded action frame. Frame is the binary
// wire encoding, base64 in JSON. Ref correlates the eventual RESULT.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref"`
	Frame           []byte `json:"frame"`
}

// RESULT (server -> client): outcome of the caller's own command.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Ref             string `json:"ref"`
	Status          uint8  `json:"status"`
	StatusName      string `json:"status_name"`
	ErrorTitle      uint16 `json:"error_title,omitempty"`
	ErrorDetail     uint16 `json:"error_detail,omitempty"`
	// Position is x,y,z of the affected region, present only when the
	// commit produced one.
	Position *[3]int32 `json:"position,omitempty"`
	Cost     int64     `json:"cost,omitempty"`
}

// COMMITTED (server -> client): an action another peer committed, in commit
// order. Applying these frames in order reproduces the server's world.
type CommittedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	Seq             int    `json:"seq"`
	Actor           uint32 `json:"actor"`
	Frame           []byte `json:"frame"`
}

// ERROR (server -> client): transport-level rejection, before queueing.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
