package types

import "regexp"

// Compiled once; player ids arrive on every connection attempt.
var playerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidPlayerID checks the opaque player id supplied at connection time.
// 1-64 characters, alphanumeric plus underscore/hyphen. The id is opaque to
// the engine but constrained so it is safe to log and store.
func IsValidPlayerID(playerID string) bool {
	if len(playerID) < 1 || len(playerID) > 64 {
		return false
	}
	return playerIDRegex.MatchString(playerID)
}
