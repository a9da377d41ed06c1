package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"raceway/internal/config"
	"raceway/pkg/types"
)

// fakeConn records every message written to it and can be flipped dead to
// simulate a closed peer.
type fakeConn struct {
	mu sync.Mutex

	id       string
	alive    bool
	messages []interface{}

	closeCode   int
	closeReason string
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, alive: true}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, v)
	return nil
}

func (c *fakeConn) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeConn) CloseWithCode(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = false
	c.closeCode = code
	c.closeReason = reason
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = false
	return nil
}

func (c *fakeConn) PlayerID() string { return c.id }

func (c *fakeConn) kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive = false
}

// byCmd returns the recorded messages carrying the given cmd discriminator.
func (c *fakeConn) byCmd(cmd string) []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []interface{}
	for _, m := range c.messages {
		if cmdOf(m) == cmd {
			matched = append(matched, m)
		}
	}
	return matched
}

func cmdOf(v interface{}) string {
	switch m := v.(type) {
	case types.Notice:
		return m.Cmd
	case types.MatchFound:
		return m.Cmd
	case types.StartCountdown:
		return m.Cmd
	case types.FinishRanking:
		return m.Cmd
	case types.RaceRanking:
		return m.Cmd
	default:
		return ""
	}
}

// fakeScheduler captures deferred callbacks so tests fire them explicitly.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []fakeTimer
}

type fakeTimer struct {
	delay time.Duration
	fn    func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append(s.timers, fakeTimer{delay: d, fn: fn})
}

// fire runs the i-th scheduled callback.
func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	timer := s.timers[i]
	s.mu.Unlock()
	timer.fn()
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingStore captures RecordResults calls for assertions. Writes happen
// on the engine's history goroutine, hence the channel.
type recordingStore struct {
	calls chan recordedBatch
}

type recordedBatch struct {
	roomID   string
	mapID    int
	rankings []types.RankEntry
}

func newRecordingStore() *recordingStore {
	return &recordingStore{calls: make(chan recordedBatch, 8)}
}

func (s *recordingStore) RecordResults(_ context.Context, roomID string, mapID int, rankings []types.RankEntry) error {
	s.calls <- recordedBatch{roomID: roomID, mapID: mapID, rankings: rankings}
	return nil
}

func (s *recordingStore) ListRecentResults(context.Context, int) ([]*types.RaceResult, error) {
	return nil, nil
}

func (s *recordingStore) HealthCheck(context.Context) error { return nil }
func (s *recordingStore) Close() error                      { return nil }

// newTestEngine builds an engine with deterministic seams: manual scheduler,
// manual clock, fixed map picker.
func newTestEngine(cfg config.MatchConfig) (*Engine, *fakeScheduler, *fakeClock) {
	e := New(cfg, nil)
	sched := &fakeScheduler{}
	clock := newFakeClock()
	e.sched = sched
	e.now = clock.Now
	e.pickMap = func(min, max int) int { return min }
	return e, sched, clock
}

func defaultMatchConfig() config.MatchConfig {
	return config.Default().Match
}

// ready and finish build inbound frames the way a client would send them.
func readyFrame() []byte {
	data, _ := json.Marshal(types.ClientMessage{Type: types.ClientMessageReady})
	return data
}

func finishFrame() []byte {
	data, _ := json.Marshal(types.ClientMessage{Type: types.ClientMessageFinish})
	return data
}
