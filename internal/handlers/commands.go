// internal/handlers/commands.go
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/game"
	"github.com/jason-s-yu/partyrounds/internal/models"
)

// Command is a client-to-server message. Only the fields its Type uses are read.
type Command struct {
	Type string `json:"type"`

	LobbyID string `json:"lobbyId,omitempty"`
	GameID  string `json:"gameId,omitempty"`
	RoundID string `json:"roundId,omitempty"`

	DisplayName string `json:"displayName,omitempty"`
	LobbyName   string `json:"lobbyName,omitempty"`
	MaxPlayers  int    `json:"maxPlayers,omitempty"`
	RoundCount  int    `json:"roundCount,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	Theme       string `json:"theme,omitempty"`
	TimedMode   bool   `json:"timedMode,omitempty"`

	Answer string `json:"answer,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

var errNoPlayer = errors.New("join a lobby first")

// route runs one command. Engine errors have already been reported to the client by the
// engine; errors raised here are reported before returning.
func route(ctx context.Context, srv *Server, s *session, cmd Command) error {
	fail := func(err error) error {
		srv.Hub.Send(s.conn.ID, errorEvent(game.UserMessage(err)))
		return err
	}
	// needPlayer reports a session without a live player.
	needPlayer := func(err error) error {
		if errors.Is(err, game.ErrUnknownPlayer) {
			s.playerID = uuid.Nil
			srv.Hub.Send(s.conn.ID, errorEvent(errNoPlayer.Error()))
		}
		return err
	}
	if requiresPlayer(cmd.Type) && s.playerID == uuid.Nil {
		srv.Hub.Send(s.conn.ID, errorEvent(errNoPlayer.Error()))
		return errNoPlayer
	}

	switch cmd.Type {
	case "ping":
		srv.Hub.Send(s.conn.ID, game.Event{Type: game.EventPong})
		return nil

	case "list_lobbies":
		srv.Engine.ListLobbies(s.conn.ID)
		return nil

	case "create_lobby":
		leaveCurrent(srv, s)
		player, _, err := srv.Engine.CreateLobby(ctx, s.conn.ID, game.CreateLobbyRequest{
			Name:        cmd.LobbyName,
			DisplayName: cmd.DisplayName,
			MaxPlayers:  cmd.MaxPlayers,
			TimedMode:   cmd.TimedMode,
			Kind:        models.RoundKind(cmd.Kind),
			Theme:       cmd.Theme,
			Difficulty:  models.Difficulty(cmd.Difficulty),
			RoundCount:  cmd.RoundCount,
		})
		if err != nil {
			return err
		}
		s.playerID = player.ID
		return nil

	case "join_lobby":
		lobbyID, err := parseID("lobbyId", cmd.LobbyID)
		if err != nil {
			return fail(err)
		}
		leaveCurrent(srv, s)
		player, _, err := srv.Engine.JoinLobby(s.conn.ID, lobbyID, cmd.DisplayName)
		if err != nil {
			return err
		}
		s.playerID = player.ID
		return nil

	case "leave_lobby":
		err := srv.Engine.Leave(s.playerID)
		s.playerID = uuid.Nil
		return err

	case "set_ready":
		return needPlayer(srv.Engine.SetReady(s.playerID))

	case "start_game":
		return needPlayer(srv.Engine.StartGame(s.playerID))

	case "get_lobby":
		lobbyID, err := parseID("lobbyId", cmd.LobbyID)
		if err != nil {
			return fail(err)
		}
		return srv.Engine.LobbyData(s.conn.ID, lobbyID)

	case "get_game":
		raw := cmd.GameID
		if raw == "" {
			raw = cmd.LobbyID
		}
		gameID, err := parseID("gameId", raw)
		if err != nil {
			return fail(err)
		}
		return srv.Engine.GameData(s.conn.ID, gameID)

	case "submit_answer":
		roundID, err := parseID("roundId", cmd.RoundID)
		if err != nil {
			return fail(err)
		}
		return needPlayer(srv.Engine.SubmitAnswer(s.playerID, roundID, cmd.Answer))

	case "request_next_round":
		return srv.Engine.RequestNextRound(s.playerID)

	case "advance_review":
		if cmd.Index == nil {
			return fail(fmt.Errorf("%w: index is required", game.ErrValidation))
		}
		return srv.Engine.AdvanceReview(ctx, s.playerID, *cmd.Index)

	case "finish_review":
		return srv.Engine.FinishReview(s.playerID)

	default:
		return fail(fmt.Errorf("%w: unknown command type %q", game.ErrValidation, cmd.Type))
	}
}

func requiresPlayer(cmdType string) bool {
	switch cmdType {
	case "leave_lobby", "set_ready", "start_game", "submit_answer",
		"request_next_round", "advance_review", "finish_review":
		return true
	}
	return false
}

// leaveCurrent drops the session's previous player before it creates or joins another.
func leaveCurrent(srv *Server, s *session) {
	if s.playerID == uuid.Nil {
		return
	}
	if err := srv.Engine.Leave(s.playerID); err != nil && !errors.Is(err, game.ErrNotFound) {
		s.log.WithError(err).Warn("failed to leave previous lobby")
	}
	s.playerID = uuid.Nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid id", game.ErrValidation, field)
	}
	return id, nil
}
