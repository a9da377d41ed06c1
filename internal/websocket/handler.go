package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"raceway/internal/config"
	"raceway/pkg/interfaces"
	"raceway/pkg/types"
)

// SessionEngine is the handler's view of the matchmaking engine. Narrow
// interface so handler tests can run against a recording fake.
type SessionEngine interface {
	AddPlayer(conn interfaces.Connection)
	HandleMessage(playerID string, data []byte)
	HandleDisconnect(playerID string)
}

// Handler upgrades race connections and pumps inbound frames into the
// engine. It owns connection lifecycle; the engine only borrows references.
type Handler struct {
	registry *Registry
	engine   SessionEngine
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewHandler(registry *Registry, engine SessionEngine, httpCfg config.HTTPConfig, wsCfg config.WebSocketConfig) *Handler {
	return &Handler{
		registry: registry,
		engine:   engine,
		wsCfg:    wsCfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      originChecker(httpCfg.AllowedOrigins),
		},
	}
}

// originChecker allows any origin when the allow-list is empty, otherwise
// requires a substring match the way the frontend hosts are configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if strings.Contains(origin, a) {
				return true
			}
		}
		return false
	}
}

// HandleRace serves GET /normal_match/{playerId}: validates the player id,
// upgrades the socket, and hands the player to the engine for matchmaking.
func (h *Handler) HandleRace(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("playerId")
	if !types.IsValidPlayerID(playerID) {
		http.Error(w, types.ErrInvalidPlayerID.Error(), http.StatusBadRequest)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("player_id", playerID).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(wsConn, playerID, h.wsCfg)
	if err := h.registry.Register(conn); err != nil {
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to register connection")
		_ = conn.Close()
		return
	}

	h.engine.AddPlayer(conn)

	go h.readPump(conn)
}

// readPump reads frames until the connection dies, forwarding text frames to
// the engine. Binary frames are logged and ignored; the connection stays
// open. On exit the player is unregistered and reported disconnected.
func (h *Handler) readPump(conn *Connection) {
	defer func() {
		h.registry.Unregister(conn)
		h.engine.HandleDisconnect(conn.PlayerID())
		_ = conn.Close()
		log.Info().Str("player_id", conn.PlayerID()).Msg("connection closed")
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.wsCfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.wsCfg.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("player_id", conn.PlayerID()).Msg("websocket read error")
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			h.engine.HandleMessage(conn.PlayerID(), data)
		case websocket.BinaryMessage:
			log.Warn().Str("player_id", conn.PlayerID()).Msg("ignoring binary frame")
		}
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.wsCfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.wsCfg.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-conn.ctx.Done():
			return
		}
	}
}
