// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is one participant bound to one live connection.
type Player struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  string    `json:"displayName"`
	ConnectionID uuid.UUID `json:"-"`
	Score        int       `json:"score"`
	Ready        bool      `json:"ready"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Standing is a player's final position in a finished game.
type Standing struct {
	PlayerID    uuid.UUID `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
}
