package types

import (
	"time"
)

// Wire envelope type shared by every outbound message.
const EnvelopeNormal = "normal"

// Outbound command discriminators. CmdFinishRanking keeps the wire spelling
// used by existing clients and must not be corrected server-side.
const (
	CmdInQueue        = "in_queue"
	CmdMatchFound     = "matchFound"
	CmdStartCountdown = "startCountdown"
	CmdFinishRanking  = "racfinisheRanking"
	CmdRaceRanking    = "raceRanking"
	CmdRaceTimeout    = "raceTimeout"
	CmdMatchFailed    = "matchFailed"
)

// Status codes carried in outbound messages.
const (
	CodeOK          = 200
	CodeQueued      = 202
	CodeRaceTimeout = 400
	CodeMatchFailed = 408
)

// Inbound message types clients may send over the race socket.
const (
	ClientMessageReady  = "ready"
	ClientMessageFinish = "finish"
)

// ClientMessage is the inbound frame shape. Unknown types are ignored.
type ClientMessage struct {
	Type string `json:"type"`
}

// Player is a member's identity within a room. TeamID and Index are assigned
// at match time as the player's 0-based position in match order.
type Player struct {
	ID     string `json:"id"`
	TeamID int    `json:"teamId"`
	Index  int    `json:"index"`
}

// Notice is the generic outbound message for in_queue, raceTimeout and
// matchFailed, which carry only a human-readable explanation.
type Notice struct {
	Type    string `json:"type"`
	Cmd     string `json:"cmd"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// MatchFound tells one member that a room was formed. Index is the
// recipient's own slot; Players is the full roster so clients can render
// opponents.
type MatchFound struct {
	Type    string   `json:"type"`
	Cmd     string   `json:"cmd"`
	Code    int      `json:"code"`
	RoomID  string   `json:"roomId"`
	MapID   int      `json:"mapId"`
	Index   int      `json:"index"`
	Players []Player `json:"players"`
}

// StartCountdown carries the countdown window in whole epoch seconds and the
// race length in seconds.
type StartCountdown struct {
	Type         string `json:"type"`
	Cmd          string `json:"cmd"`
	Code         int    `json:"code"`
	StartTime    int64  `json:"startTime"`
	EndTime      int64  `json:"endTime"`
	RaceDuration int    `json:"raceDuration"`
}

// FinishRanking announces one player's live rank after their finish report.
// Duration is in milliseconds.
type FinishRanking struct {
	Type     string `json:"type"`
	Cmd      string `json:"cmd"`
	Code     int    `json:"code"`
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Duration int64  `json:"duration"`
}

// RankEntry is one row of a final ranking. Duration is in milliseconds.
type RankEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Duration int64  `json:"duration"`
}

// RaceRanking is the terminal broadcast listing every finished player in
// rank order.
type RaceRanking struct {
	Type     string      `json:"type"`
	Cmd      string      `json:"cmd"`
	Code     int         `json:"code"`
	Rankings []RankEntry `json:"rankings"`
}

// RaceResult is one persisted row of the race history audit log.
type RaceResult struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	MapID      int       `json:"map_id"`
	PlayerID   string    `json:"player_id"`
	Rank       int       `json:"rank"`
	DurationMS int64     `json:"duration_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}
