package websocket

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry tracks the one live connection per player id. It is pure
// connection bookkeeping; matchmaking state lives in the engine, which holds
// non-owning references to these connections.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
	}
}

// Register adds a connection, closing and replacing any existing connection
// for the same player id. The old connection is closed asynchronously so a
// reconnect is never blocked on the dying socket.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.connections[conn.PlayerID()]; ok {
		go func() {
			if err := existing.Close(); err != nil {
				log.Warn().Err(err).Str("player_id", conn.PlayerID()).Msg("failed to close replaced connection")
			}
		}()
	}
	r.connections[conn.PlayerID()] = conn
	return nil
}

// Unregister removes a connection if it is still the registered instance for
// its player id. Idempotent; an already-replaced connection is left alone so
// a dying socket cannot unregister its successor.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if registered, ok := r.connections[conn.PlayerID()]; ok && registered == conn {
		delete(r.connections, conn.PlayerID())
	}
}

// Get returns the live connection for a player id.
func (r *Registry) Get(playerID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[playerID]
	return conn, ok
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
