package ws

const (
	// client - server
	MsgPing = "ping"

	// server - client
	MsgTick    = "tick"
	MsgReady   = "ready"
	MsgIdle    = "idle"
	MsgClaimed = "claimed"
	MsgPong    = "pong"
	MsgError   = "error"
)
