package engine

import (
	"time"

	"raceway/pkg/interfaces"
	"raceway/pkg/types"
)

// RuntimePlayer is a player's live session state. The connection is a
// non-owning reference into the transport layer's registry; the engine only
// writes to it and checks liveness.
type RuntimePlayer struct {
	Player types.Player
	Conn   interfaces.Connection

	IsReady bool

	// RaceStart is stamped once when the countdown starts (or backdated to
	// the original countdown start on a late-ready resync). Zero means the
	// race has not started for this player.
	RaceStart time.Time

	// RaceFinish is set at most once, on the first finish report.
	RaceFinish time.Time

	// RaceDuration is finish minus start. Nil when the start time was never
	// known; ranking sorts such entries last.
	RaceDuration *time.Duration
}

func (p *RuntimePlayer) finished() bool {
	return !p.RaceFinish.IsZero()
}

// durationMS is the wire representation of the player's race duration in
// milliseconds, zero when unknown.
func (p *RuntimePlayer) durationMS() int64 {
	if p.RaceDuration == nil {
		return 0
	}
	return p.RaceDuration.Milliseconds()
}

// Room is one match: a bounded-lifetime grouping of matched players sharing
// a countdown/race timeline. Membership is fixed at creation except for the
// one-time eviction of not-ready members at join-timeout. A room is owned by
// the engine's directory entry; removal from the directory is its terminal
// state and the only cancellation signal its timers observe.
type Room struct {
	ID    string
	MapID int

	Players []*RuntimePlayer

	// CountdownStarted flips true exactly once.
	CountdownStarted bool

	// CountdownStart and CountdownEndUnix are immutable after the countdown
	// starts. The end is kept in whole epoch seconds because that is what
	// goes on the wire, including on late-ready resends of the original
	// deadline.
	CountdownStart   time.Time
	CountdownEndUnix int64

	MatchFoundAt time.Time

	// Finished is append-only; a player appears at most once.
	Finished []*RuntimePlayer

	// RaceDuration is the room-level race length.
	RaceDuration time.Duration
}

func newRoom(id string, mapID int, players []*RuntimePlayer, raceDuration time.Duration, now time.Time) *Room {
	return &Room{
		ID:           id,
		MapID:        mapID,
		Players:      players,
		MatchFoundAt: now,
		RaceDuration: raceDuration,
	}
}

func (r *Room) member(playerID string) *RuntimePlayer {
	for _, p := range r.Players {
		if p.Player.ID == playerID {
			return p
		}
	}
	return nil
}

func (r *Room) allReady() bool {
	for _, p := range r.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

// readyPartition splits members into ready and not-ready, preserving order.
func (r *Room) readyPartition() (ready, notReady []*RuntimePlayer) {
	for _, p := range r.Players {
		if p.IsReady {
			ready = append(ready, p)
		} else {
			notReady = append(notReady, p)
		}
	}
	return ready, notReady
}

// roster is the full member list as wire identities.
func (r *Room) roster() []types.Player {
	players := make([]types.Player, len(r.Players))
	for i, p := range r.Players {
		players[i] = p.Player
	}
	return players
}
