// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/models"
)

// EventType names a server-to-client message.
type EventType string

const (
	EventLobbyListUpdated    EventType = "lobby_list_updated"
	EventLobbyJoined         EventType = "lobby_joined"
	EventLobbyLeft           EventType = "lobby_left"
	EventLobbyData           EventType = "lobby_data"
	EventPlayerJoined        EventType = "player_joined"
	EventPlayerLeft          EventType = "player_left"
	EventLobbyPlayersUpdated EventType = "lobby_players_updated"

	EventGameStarted     EventType = "game_started"
	EventGameData        EventType = "game_data"
	EventRoundDispatched EventType = "round_dispatched"
	EventPlayerAnswered  EventType = "player_answered"
	EventAnswerResult    EventType = "answer_result"
	EventScoresUpdated   EventType = "scores_updated"
	EventReviewStarted   EventType = "review_started"
	EventReviewAdvanced  EventType = "review_advanced"
	EventGradesReady     EventType = "grades_ready"
	EventGameFinished    EventType = "game_finished"

	EventError EventType = "error"
	EventPong  EventType = "pong"
)

// Event is what the gateway serializes onto a connection.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// Broadcaster delivers events. Implementations must not block and must not call back
// into the Engine.
type Broadcaster interface {
	// Send delivers to one connection.
	Send(connID uuid.UUID, ev Event)
	// Broadcast delivers to every connection in a room.
	Broadcast(room uuid.UUID, ev Event)
	// BroadcastExcept delivers to a room minus one connection.
	BroadcastExcept(room, exceptConnID uuid.UUID, ev Event)
	// BroadcastAll delivers to every open connection.
	BroadcastAll(ev Event)

	JoinRoom(connID, room uuid.UUID)
	LeaveRoom(connID, room uuid.UUID)
	// CloseRoom drops a room and all of its subscriptions.
	CloseRoom(room uuid.UUID)
}

type LobbyPayload struct {
	Lobby   models.Lobby    `json:"lobby"`
	Players []models.Player `json:"players"`
}

type LobbyListPayload struct {
	Lobbies []models.Lobby `json:"lobbies"`
}

type LobbyLeftPayload struct {
	LobbyID uuid.UUID `json:"lobbyId"`
}

type PlayerPayload struct {
	Player models.Player `json:"player"`
}

type PlayerLeftPayload struct {
	PlayerID uuid.UUID `json:"playerId"`
	HostID   uuid.UUID `json:"hostId"`
}

type PlayersPayload struct {
	Players []models.Player `json:"players"`
}

// GamePayload carries the game with live player records, since Game.Players is only the
// snapshot taken at start. Game.Rounds holds only the rounds dispatched so far; Total is
// the full count.
type GamePayload struct {
	Game    models.Game     `json:"game"`
	Total   int             `json:"total"`
	Players []models.Player `json:"players"`
}

func newGamePayload(g models.Game, players []models.Player) GamePayload {
	total := len(g.Rounds)
	if g.Status == models.GameInProgress {
		shown := min(max(g.Dispatched+1, 0), total)
		g.Rounds = g.Rounds[:shown:shown]
	}
	return GamePayload{Game: g, Total: total, Players: players}
}

type RoundPayload struct {
	Round models.RoundItem `json:"round"`
	// Index is zero-based; Total is the number of rounds in the game.
	Index int `json:"index"`
	Total int `json:"total"`
}

type PlayerAnsweredPayload struct {
	PlayerID uuid.UUID `json:"playerId"`
	RoundID  uuid.UUID `json:"roundId"`
}

// AnswerResultPayload is the submitter's private receipt. Correct and CorrectAnswer are
// only set for rounds scored on submit.
type AnswerResultPayload struct {
	RoundID       uuid.UUID `json:"roundId"`
	Accepted      bool      `json:"accepted"`
	Correct       *bool     `json:"correct,omitempty"`
	CorrectAnswer *int      `json:"correctAnswer,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

type ReviewPayload struct {
	Rounds []models.RoundItem `json:"rounds"`
	// Answers is roundID -> playerID -> response.
	Answers map[uuid.UUID]map[uuid.UUID]string `json:"answers"`
}

type ReviewIndexPayload struct {
	Index int `json:"index"`
}

type GradesPayload struct {
	Index   int                   `json:"index"`
	RoundID uuid.UUID             `json:"roundId"`
	Grades  []models.GradedAnswer `json:"grades"`
}

type FinishedPayload struct {
	Standings []models.Standing  `json:"standings"`
	Rounds    []models.RoundItem `json:"rounds"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
