// internal/game/scheduler.go
package game

import "time"

// Scheduler runs f once after d. Scheduled work is never cancelled; callbacks re-check
// state when they fire and do nothing if it moved on.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
