package engine

import (
	"sort"

	"raceway/pkg/types"
)

// rankedFinishers returns the finished players ordered by ascending race
// duration. An unknown duration sorts last; ties keep finish order.
func rankedFinishers(finished []*RuntimePlayer) []*RuntimePlayer {
	ranked := make([]*RuntimePlayer, len(finished))
	copy(ranked, finished)
	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := ranked[i].RaceDuration, ranked[j].RaceDuration
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
	return ranked
}

// rankOf is the 1-based position of a player in a ranked slice, 0 if absent.
func rankOf(ranked []*RuntimePlayer, playerID string) int {
	for i, p := range ranked {
		if p.Player.ID == playerID {
			return i + 1
		}
	}
	return 0
}

// rankEntries converts a ranked slice into wire/storage rows.
func rankEntries(ranked []*RuntimePlayer) []types.RankEntry {
	entries := make([]types.RankEntry, len(ranked))
	for i, p := range ranked {
		entries[i] = types.RankEntry{
			Rank:     i + 1,
			PlayerID: p.Player.ID,
			Duration: p.durationMS(),
		}
	}
	return entries
}
