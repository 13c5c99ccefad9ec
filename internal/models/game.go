// internal/models/game.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus is one-directional: in_progress, then reviewing for deferred kinds, then
// finished.
type GameStatus string

const (
	GameInProgress GameStatus = "in_progress"
	GameReviewing  GameStatus = "reviewing"
	GameFinished   GameStatus = "finished"
)

// CanTransitionTo reports whether moving from s to target keeps status monotonic.
func (s GameStatus) CanTransitionTo(target GameStatus) bool {
	switch s {
	case GameInProgress:
		return target == GameReviewing || target == GameFinished
	case GameReviewing:
		return target == GameFinished
	}
	return false
}

// Game is the play state of a started lobby. Its ID equals the lobby ID.
type Game struct {
	ID        uuid.UUID   `json:"id"`
	Status    GameStatus  `json:"status"`
	Kind      RoundKind   `json:"kind"`
	TimedMode bool        `json:"timedMode"`
	Rounds    []RoundItem `json:"rounds"`
	// Players is the membership snapshot taken at start; live scores are on the store's
	// Player records.
	Players []Player `json:"players"`

	// CurrentRound only grows, and only while Status is in_progress.
	CurrentRound int `json:"currentRound"`
	// Dispatched is the highest round index announced to clients, -1 before the first.
	Dispatched int `json:"-"`

	// Graded holds review results by round index so a round is never scored twice.
	Graded map[int][]GradedAnswer `json:"graded,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Current returns the round at CurrentRound, if any remain.
func (g Game) Current() (RoundItem, bool) {
	if g.CurrentRound < 0 || g.CurrentRound >= len(g.Rounds) {
		return RoundItem{}, false
	}
	return g.Rounds[g.CurrentRound], true
}

// Live reports whether the current round has been announced and is accepting answers.
func (g Game) Live() bool {
	return g.Status == GameInProgress && g.Dispatched == g.CurrentRound && g.CurrentRound < len(g.Rounds)
}
