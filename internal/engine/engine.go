package engine

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"raceway/internal/config"
	"raceway/pkg/interfaces"
	"raceway/pkg/types"
)

// WebSocket close code sent when evicting not-ready members at join-timeout.
const closeCodeNormal = 1000

const resultWriteTimeout = 5 * time.Second

// Engine is the session orchestrator. It exclusively owns the matchmaking
// queue and the room directory; one engine instance exists per process,
// created at startup and discarded at shutdown.
//
// All state mutation is serialized behind a single mutex, so message
// handlers and timer callbacks interleave but never run concurrently. No
// operation blocks while holding the lock: sends are fire-and-forget through
// the connection's buffered writer, and history writes happen on their own
// goroutine.
type Engine struct {
	mu sync.Mutex

	cfg     config.MatchConfig
	queue   queue
	rooms   map[string]*Room
	conns   map[string]interfaces.Connection
	results interfaces.ResultStore

	// Seams for tests; production values are set by New.
	sched   Scheduler
	now     func() time.Time
	pickMap func(min, max int) int
}

// New creates the engine. results may be nil to disable history recording.
func New(cfg config.MatchConfig, results interfaces.ResultStore) *Engine {
	return &Engine{
		cfg:     cfg,
		rooms:   make(map[string]*Room),
		conns:   make(map[string]interfaces.Connection),
		results: results,
		sched:   timerScheduler{},
		now:     time.Now,
		pickMap: func(min, max int) int {
			return min + rand.IntN(max-min+1)
		},
	}
}

// AddPlayer registers a player's connection, enqueues them for matching and
// immediately runs a match cycle.
func (e *Engine) AddPlayer(conn interfaces.Connection) {
	e.mu.Lock()
	defer e.mu.Unlock()

	playerID := conn.PlayerID()
	e.conns[playerID] = conn

	player := &RuntimePlayer{
		Player: types.Player{ID: playerID},
		Conn:   conn,
	}
	e.queue.push(player)
	log.Info().Str("player_id", playerID).Int("queue_size", e.queue.len()).Msg("player added to matchmaking queue")

	e.send(conn, types.Notice{
		Type:    types.EnvelopeNormal,
		Cmd:     types.CmdInQueue,
		Code:    types.CodeQueued,
		Message: "You have been added to the matchmaking queue.",
	})

	e.matchLocked()
}

// HandleMessage dispatches one inbound text frame from a player. Malformed
// payloads are logged and swallowed; unknown types are silently ignored.
// The connection is never closed for a bad payload.
func (e *Engine) HandleMessage(playerID string, data []byte) {
	var msg types.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Err(err).Str("player_id", playerID).Msg("failed to parse client message")
		return
	}

	switch msg.Type {
	case types.ClientMessageReady:
		e.handleReady(playerID)
	case types.ClientMessageFinish:
		e.handleFinish(playerID)
	default:
		// Unknown message types are ignored.
	}
}

// HandleDisconnect drops the player from active-connection tracking and from
// the queue if still queued. Room membership is left alone: broadcast paths
// skip dead connections, and the join-timeout or completion paths sweep the
// member out with the room.
func (e *Engine) HandleDisconnect(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.conns, playerID)
	if e.queue.removeByID(playerID) {
		log.Info().Str("player_id", playerID).Msg("removed disconnected player from queue")
	}
}

// matchLocked runs one matching cycle. Callers hold e.mu.
//
// Dequeued players whose connection died between enqueue and now are dropped
// permanently; if the survivors no longer meet the threshold they go back to
// the head of the queue and the cycle aborts, to be retried on the next
// trigger.
func (e *Engine) matchLocked() {
	if e.queue.len() < e.cfg.MinPlayersToStart {
		return
	}

	candidates := e.queue.takeFront(e.cfg.MinPlayersToStart)
	alive := candidates[:0]
	for _, p := range candidates {
		if p.Conn.IsAlive() {
			alive = append(alive, p)
		}
	}

	if len(alive) < e.cfg.MinPlayersToStart {
		log.Warn().Int("alive", len(alive)).Int("needed", e.cfg.MinPlayersToStart).Msg("not enough live players, pushing survivors back")
		e.queue.pushFront(alive)
		return
	}

	roomID := uuid.NewString()
	mapID := e.pickMap(e.cfg.MinMapID, e.cfg.MaxMapID)

	for i, p := range alive {
		p.Player.TeamID = i
		p.Player.Index = i
	}

	room := newRoom(roomID, mapID, alive, e.cfg.RaceDuration, e.now())
	e.rooms[roomID] = room
	log.Info().Str("room_id", roomID).Int("map_id", mapID).Int("players", len(alive)).Msg("match found, room created")

	roster := room.roster()
	for _, p := range alive {
		e.send(p.Conn, types.MatchFound{
			Type:    types.EnvelopeNormal,
			Cmd:     types.CmdMatchFound,
			Code:    types.CodeOK,
			RoomID:  roomID,
			MapID:   mapID,
			Index:   p.Player.Index,
			Players: roster,
		})
	}

	e.sched.AfterFunc(e.cfg.JoinWait, func() { e.handleJoinTimeout(roomID) })
}

// handleReady processes a ready signal. A ready arriving after the countdown
// started re-sends the original deadline (fresh start, same end) so a
// resyncing client can recover the countdown; it never extends it.
func (e *Engine) handleReady(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, player := e.findRoomByPlayer(playerID)
	if room == nil {
		log.Warn().Str("player_id", playerID).Msg("ready signal from player not in any room")
		return
	}

	player.IsReady = true

	if room.CountdownStarted {
		log.Debug().Str("room_id", room.ID).Str("player_id", playerID).Msg("late ready, resending countdown deadline")
		e.resendCountdownLocked(room)
		return
	}

	log.Info().Str("room_id", room.ID).Str("player_id", playerID).Msg("player ready")
	if room.allReady() {
		e.startCountdownLocked(room)
	}
}

// startCountdownLocked transitions a room to counting down. Idempotent: a
// second call on an already-started room is a no-op. Callers hold e.mu.
func (e *Engine) startCountdownLocked(room *Room) {
	if room.CountdownStarted {
		return
	}
	room.CountdownStarted = true

	now := e.now()
	startSec := now.Unix()
	endSec := startSec + int64(e.cfg.Countdown/time.Second)
	room.CountdownStart = now
	room.CountdownEndUnix = endSec

	log.Info().Str("room_id", room.ID).Int64("end_time", endSec).Msg("starting countdown")

	msg := types.StartCountdown{
		Type:         types.EnvelopeNormal,
		Cmd:          types.CmdStartCountdown,
		Code:         types.CodeOK,
		StartTime:    startSec,
		EndTime:      endSec,
		RaceDuration: int(room.RaceDuration / time.Second),
	}
	for _, p := range room.Players {
		if p.Conn.IsAlive() {
			p.RaceStart = now
			e.send(p.Conn, msg)
		}
	}

	roomID := room.ID
	e.sched.AfterFunc(room.RaceDuration, func() { e.handleRaceTimeout(roomID) })
}

// resendCountdownLocked re-broadcasts the countdown with the original end
// time and backdates each live member's race start to the original countdown
// start, keeping durations comparable across resyncs. Callers hold e.mu.
func (e *Engine) resendCountdownLocked(room *Room) {
	msg := types.StartCountdown{
		Type:         types.EnvelopeNormal,
		Cmd:          types.CmdStartCountdown,
		Code:         types.CodeOK,
		StartTime:    e.now().Unix(),
		EndTime:      room.CountdownEndUnix,
		RaceDuration: int(room.RaceDuration / time.Second),
	}
	for _, p := range room.Players {
		if p.Conn.IsAlive() {
			p.RaceStart = room.CountdownStart
			e.send(p.Conn, msg)
		}
	}
}

// handleFinish records a player's finish report. Idempotent per player: only
// the first report stamps a time and produces a ranking broadcast.
func (e *Engine) handleFinish(playerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, player := e.findRoomByPlayer(playerID)
	if room == nil {
		log.Warn().Str("player_id", playerID).Msg("finish signal from player not in any room")
		return
	}
	if player.finished() {
		return
	}

	player.RaceFinish = e.now()
	if !player.RaceStart.IsZero() {
		d := player.RaceFinish.Sub(player.RaceStart)
		player.RaceDuration = &d
		log.Info().Str("room_id", room.ID).Str("player_id", playerID).Dur("duration", d).Msg("player finished race")
	}
	room.Finished = append(room.Finished, player)

	e.broadcastRankingLocked(room, player)
}

// broadcastRankingLocked recomputes the live ranking after a finish, tells
// the whole room the finisher's rank, and on full completion broadcasts the
// final ranking and destroys the room. Callers hold e.mu.
func (e *Engine) broadcastRankingLocked(room *Room, justFinished *RuntimePlayer) {
	ranked := rankedFinishers(room.Finished)
	rank := rankOf(ranked, justFinished.Player.ID)

	msg := types.FinishRanking{
		Type:     types.EnvelopeNormal,
		Cmd:      types.CmdFinishRanking,
		Code:     types.CodeOK,
		Rank:     rank,
		PlayerID: justFinished.Player.ID,
		Duration: justFinished.durationMS(),
	}
	for _, p := range room.Players {
		if p.Conn.IsAlive() {
			e.send(p.Conn, msg)
		}
	}

	if len(room.Finished) < len(room.Players) {
		return
	}

	entries := rankEntries(ranked)
	final := types.RaceRanking{
		Type:     types.EnvelopeNormal,
		Cmd:      types.CmdRaceRanking,
		Code:     types.CodeOK,
		Rankings: entries,
	}
	for _, p := range room.Players {
		if p.Conn.IsAlive() {
			e.send(p.Conn, final)
		}
	}

	log.Info().Str("room_id", room.ID).Int("finishers", len(entries)).Msg("race complete, closing room")
	e.recordResults(room.ID, room.MapID, entries)
	delete(e.rooms, room.ID)
}

// handleJoinTimeout fires once per room, JoinWait after creation. Meaningful
// only while the countdown has not started; the started flag is the no-op
// guard, directory absence covers rooms that already finished.
func (e *Engine) handleJoinTimeout(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, exists := e.rooms[roomID]
	if !exists || room.CountdownStarted {
		return
	}

	ready, notReady := room.readyPartition()
	if len(ready) >= e.cfg.MinPlayersReady {
		log.Info().Str("room_id", roomID).Int("ready", len(ready)).Int("evicted", len(notReady)).Msg("join timeout, force-starting with ready players")
		for _, p := range notReady {
			if p.Conn.IsAlive() {
				if err := p.Conn.CloseWithCode(closeCodeNormal, "Timeout: Did not ready up in time."); err != nil {
					log.Warn().Err(err).Str("player_id", p.Player.ID).Msg("failed to close not-ready player connection")
				}
			}
		}
		room.Players = ready
		e.startCountdownLocked(room)
		return
	}

	log.Info().Str("room_id", roomID).Int("ready", len(ready)).Msg("join timeout, not enough ready players, failing match")
	msg := types.Notice{
		Type:    types.EnvelopeNormal,
		Cmd:     types.CmdMatchFailed,
		Code:    types.CodeMatchFailed,
		Message: "Match failed to start due to other players not readying up.",
	}
	for _, p := range room.Players {
		if p.Conn.IsAlive() {
			e.send(p.Conn, msg)
		}
	}
	delete(e.rooms, roomID)
}

// handleRaceTimeout fires RaceDuration after countdown start. The timer is
// never cancelled; a room already destroyed by full completion is detected
// by its absence from the directory.
func (e *Engine) handleRaceTimeout(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	room, exists := e.rooms[roomID]
	if !exists {
		return
	}

	log.Info().Str("room_id", roomID).Int("finishers", len(room.Finished)).Msg("race timed out, cleaning up room")
	msg := types.Notice{
		Type:    types.EnvelopeNormal,
		Cmd:     types.CmdRaceTimeout,
		Code:    types.CodeRaceTimeout,
		Message: "Race has ended due to time limit.",
	}
	for _, p := range room.Players {
		if p.Conn.IsAlive() && !p.finished() {
			e.send(p.Conn, msg)
		}
	}

	if len(room.Finished) > 0 {
		e.recordResults(room.ID, room.MapID, rankEntries(rankedFinishers(room.Finished)))
	}
	delete(e.rooms, roomID)
}

// findRoomByPlayer scans live rooms for the one containing the player. A
// player belongs to at most one room. O(rooms x members), fine at this
// scale; a player-id index would preserve the same observable semantics if
// it ever matters.
func (e *Engine) findRoomByPlayer(playerID string) (*Room, *RuntimePlayer) {
	for _, room := range e.rooms {
		if p := room.member(playerID); p != nil {
			return room, p
		}
	}
	return nil, nil
}

// send delivers a message if the connection is still open. Delivery failures
// are logged and otherwise ignored; the protocol has no acknowledgments.
func (e *Engine) send(conn interfaces.Connection, v interface{}) {
	if !conn.IsAlive() {
		return
	}
	if err := conn.WriteJSON(v); err != nil {
		log.Warn().Err(err).Str("player_id", conn.PlayerID()).Msg("failed to send message")
	}
}

// recordResults writes a finished room's ranking to the history store off
// the engine's lock path.
func (e *Engine) recordResults(roomID string, mapID int, entries []types.RankEntry) {
	if e.results == nil || len(entries) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultWriteTimeout)
		defer cancel()
		if err := e.results.RecordResults(ctx, roomID, mapID, entries); err != nil {
			log.Error().Err(err).Str("room_id", roomID).Msg("failed to record race results")
		}
	}()
}
