package engine

import (
	"sort"
	"time"
)

// Room lifecycle states as reported over the HTTP API. Finished is absent:
// a finished room is removed from the directory and never listed.
const (
	RoomStateWaiting      = "waiting"
	RoomStateCountingDown = "countingDown"
	RoomStateRacing       = "racing"
)

// RoomSummary is a read-only view of one live room.
type RoomSummary struct {
	ID           string    `json:"id"`
	MapID        int       `json:"map_id"`
	State        string    `json:"state"`
	Players      int       `json:"players"`
	Finished     int       `json:"finished"`
	MatchFoundAt time.Time `json:"match_found_at"`
}

// Stats summarizes engine occupancy for the health endpoint.
type Stats struct {
	QueueLength       int `json:"queue_length"`
	ActiveConnections int `json:"active_connections"`
	LiveRooms         int `json:"live_rooms"`
}

// Rooms returns summaries of all live rooms ordered by creation time.
func (e *Engine) Rooms() []RoomSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	summaries := make([]RoomSummary, 0, len(e.rooms))
	for _, room := range e.rooms {
		summaries = append(summaries, RoomSummary{
			ID:           room.ID,
			MapID:        room.MapID,
			State:        roomState(room, now),
			Players:      len(room.Players),
			Finished:     len(room.Finished),
			MatchFoundAt: room.MatchFoundAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].MatchFoundAt.Before(summaries[j].MatchFoundAt)
	})
	return summaries
}

// GetStats returns current engine occupancy.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Stats{
		QueueLength:       e.queue.len(),
		ActiveConnections: len(e.conns),
		LiveRooms:         len(e.rooms),
	}
}

// roomState derives the observable state. Racing has no explicit flag; it is
// inferred from the countdown deadline having passed.
func roomState(room *Room, now time.Time) string {
	switch {
	case !room.CountdownStarted:
		return RoomStateWaiting
	case now.Unix() < room.CountdownEndUnix:
		return RoomStateCountingDown
	default:
		return RoomStateRacing
	}
}
