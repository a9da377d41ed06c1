package engine

import "time"

// Scheduler fires one-shot deferred callbacks. There is deliberately no
// cancellation API: a callback must re-resolve its target room by id and
// treat absence from the directory as "already handled".
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// timerScheduler is the production Scheduler backed by the runtime timer
// wheel.
type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
