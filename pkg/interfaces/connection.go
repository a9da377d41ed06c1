package interfaces

// Connection is the engine's view of one player's duplex connection. The
// engine never owns connection lifecycle; it only writes to it, checks
// liveness before each send, and asks the transport to close not-ready
// members at join-timeout.
type Connection interface {
	// WriteJSON sends a JSON message to the client. Implementations must be
	// safe for use from timer callbacks and handler goroutines alike.
	WriteJSON(v interface{}) error

	// IsAlive reports whether the underlying socket is still open. Broadcast
	// paths skip dead connections silently instead of erroring.
	IsAlive() bool

	// CloseWithCode closes the connection with a WebSocket close code and
	// reason, used when evicting not-ready members at join-timeout.
	CloseWithCode(code int, reason string) error

	// Close closes the connection and releases its resources.
	Close() error

	// PlayerID returns the opaque id supplied at connection time.
	PlayerID() string
}
