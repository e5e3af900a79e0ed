package ws

const (
	// client - server
	MsgPing  = "ping"
	MsgLeave = "leave"

	// server - client
	MsgReady = "ready"
	MsgEvent = "event"
	MsgPong  = "pong"
	MsgError = "error"
)
