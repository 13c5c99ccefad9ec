// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus only moves from waiting to in_progress.
type LobbyStatus string

const (
	LobbyWaiting    LobbyStatus = "waiting"
	LobbyInProgress LobbyStatus = "in_progress"
)

// Lobby is a named waiting room. PlayerCount is a cache of the store's membership index
// and is rewritten by the store every time membership changes.
type Lobby struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	HostID      uuid.UUID   `json:"hostId"`
	MaxPlayers  int         `json:"maxPlayers"`
	PlayerCount int         `json:"playerCount"`
	Status      LobbyStatus `json:"status"`
	Config      RoundConfig `json:"config"`
	TimedMode   bool        `json:"timedMode"`
	CreatedAt   time.Time   `json:"createdAt"`

	// Rounds are generated at creation and handed to the game on start.
	Rounds []RoundItem `json:"-"`
}

// IsFull reports whether another member would exceed MaxPlayers.
func (l Lobby) IsFull() bool {
	return l.PlayerCount >= l.MaxPlayers
}
