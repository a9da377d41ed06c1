package engine

// queue is the FIFO waiting list of players not yet matched. Insertion order
// defines matching priority. Not safe for concurrent use; the engine's lock
// guards it.
type queue struct {
	players []*RuntimePlayer
}

// push appends a player to the tail. A player appears at most once: an
// existing entry with the same id is replaced, keeping the new tail position
// so a reconnecting player does not hold a stale slot with a dead connection.
func (q *queue) push(p *RuntimePlayer) {
	q.removeByID(p.Player.ID)
	q.players = append(q.players, p)
}

// pushFront reinserts players at the head, preserving their priority after
// an aborted match cycle.
func (q *queue) pushFront(players []*RuntimePlayer) {
	q.players = append(players, q.players...)
}

// takeFront removes and returns the first n players.
func (q *queue) takeFront(n int) []*RuntimePlayer {
	if n > len(q.players) {
		n = len(q.players)
	}
	taken := q.players[:n:n]
	q.players = q.players[n:]
	return taken
}

// removeByID drops a queued player, reporting whether an entry was removed.
// O(n) scan; the queue stays short in practice.
func (q *queue) removeByID(playerID string) bool {
	for i, p := range q.players {
		if p.Player.ID == playerID {
			q.players = append(q.players[:i], q.players[i+1:]...)
			return true
		}
	}
	return false
}

func (q *queue) len() int {
	return len(q.players)
}
