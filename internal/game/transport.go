package game

// Conn is a single client connection. The hub owns the socket; the game core
// only needs best-effort sends and the (room, player) binding scratch.
type Conn interface {
	// Send delivers one event envelope to this connection. Best-effort:
	// a dead or slow connection must never block a room.
	Send(event string, data interface{})

	// Bind attaches the connection to a room and player. Empty strings
	// clear the binding.
	Bind(roomCode, playerID string)

	// Binding returns the current attachment.
	Binding() (roomCode, playerID string)
}

// Transport fans events out to every connection subscribed to a room.
// Implemented by the websocket hub; rooms treat broadcast as fire-and-forget.
type Transport interface {
	Join(roomCode string, c Conn)
	Leave(roomCode string, c Conn)
	Broadcast(roomCode, event string, data interface{})
}
