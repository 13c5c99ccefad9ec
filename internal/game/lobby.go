// internal/game/lobby.go
package game

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/content"
	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/jason-s-yu/partyrounds/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	maxDisplayNameLen = 32
	maxLobbyNameLen   = 64
)

// CreateLobbyRequest is a host's lobby setup. Zero values take the engine defaults.
type CreateLobbyRequest struct {
	Name        string
	DisplayName string
	MaxPlayers  int
	TimedMode   bool
	Kind        models.RoundKind
	Theme       string
	Difficulty  models.Difficulty
	RoundCount  int
}

func validateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationf("display name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return "", validationf("display name must be at most %d characters", maxDisplayNameLen)
	}
	return name, nil
}

// resolveConfig validates req and fills defaults.
func (e *Engine) resolveConfig(req CreateLobbyRequest) (CreateLobbyRequest, error) {
	var err error
	if req.DisplayName, err = validateDisplayName(req.DisplayName); err != nil {
		return req, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return req, validationf("lobby name is required")
	}
	if utf8.RuneCountInString(req.Name) > maxLobbyNameLen {
		return req, validationf("lobby name must be at most %d characters", maxLobbyNameLen)
	}

	if req.Kind == "" {
		req.Kind = models.KindTrivia
	}
	if !req.Kind.Valid() {
		return req, validationf("unknown round kind %q", req.Kind)
	}
	if req.Difficulty == "" {
		req.Difficulty = models.DifficultyMedium
	}
	if !req.Difficulty.Valid() {
		return req, validationf("unknown difficulty %q", req.Difficulty)
	}

	if req.RoundCount == 0 {
		req.RoundCount = e.settings.DefaultRoundCount
	}
	if req.RoundCount < e.settings.MinRounds || req.RoundCount > e.settings.MaxRounds {
		return req, validationf("round count must be between %d and %d", e.settings.MinRounds, e.settings.MaxRounds)
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = e.settings.DefaultMaxPlayers
	}
	if req.MaxPlayers < 1 {
		return req, validationf("max players must be at least 1")
	}
	req.Theme = strings.TrimSpace(req.Theme)
	return req, nil
}

// generateRounds asks the provider for content and falls back to the built-in set when
// it fails. The result always has exactly cfg.RoundCount items.
func (e *Engine) generateRounds(ctx context.Context, cfg models.RoundConfig) []models.RoundItem {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.settings.ContentTimeout)
	defer cancel()

	items, err := e.content.GenerateRounds(ctx, cfg)
	if err != nil || len(items) == 0 {
		if err == nil {
			err = errors.New("empty result")
		}
		e.log.WithFields(logrus.Fields{"kind": cfg.Kind, "rounds": cfg.RoundCount}).
			WithError(errors.Join(ErrUpstream, err)).Warn("content generation failed, using built-in content")
		return content.Fallback(cfg)
	}

	if len(items) > cfg.RoundCount {
		items = items[:cfg.RoundCount]
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].Kind = cfg.Kind
	}
	if missing := cfg.RoundCount - len(items); missing > 0 {
		padCfg := cfg
		padCfg.RoundCount = missing
		items = append(items, content.Fallback(padCfg)...)
	}
	return items
}

// CreateLobby makes a lobby hosted by a new player bound to connID. Content is generated
// before the lobby becomes visible.
func (e *Engine) CreateLobby(ctx context.Context, connID uuid.UUID, req CreateLobbyRequest) (models.Player, models.Lobby, error) {
	req, err := e.resolveConfig(req)
	if err != nil {
		e.mu.Lock()
		e.sendError(connID, err)
		e.mu.Unlock()
		return models.Player{}, models.Lobby{}, err
	}
	cfg := models.RoundConfig{Kind: req.Kind, Theme: req.Theme, Difficulty: req.Difficulty, RoundCount: req.RoundCount}

	rounds := e.generateRounds(ctx, cfg)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	player := models.Player{ID: uuid.New(), DisplayName: req.DisplayName, ConnectionID: connID, JoinedAt: now}
	lobby := models.Lobby{
		ID:         uuid.New(),
		Name:       req.Name,
		HostID:     player.ID,
		MaxPlayers: req.MaxPlayers,
		Status:     models.LobbyWaiting,
		Config:     cfg,
		TimedMode:  req.TimedMode,
		CreatedAt:  now,
		Rounds:     rounds,
	}
	e.store.AddPlayer(player)
	e.store.AddLobby(lobby)
	if err := e.store.AddMember(lobby.ID, player.ID); err != nil {
		e.store.DeleteLobby(lobby.ID)
		e.store.DeletePlayer(player.ID)
		e.sendError(connID, err)
		return models.Player{}, models.Lobby{}, err
	}
	lobby, _ = e.store.Lobby(lobby.ID)

	e.out.JoinRoom(connID, lobby.ID)
	e.out.Send(connID, Event{Type: EventLobbyJoined, Payload: LobbyPayload{Lobby: lobby, Players: e.store.PlayersInLobby(lobby.ID)}})
	e.broadcastLobbyListLocked()

	e.logAction(lobby.ID, player.ID, "lobby_created", map[string]interface{}{
		"name":      lobby.Name,
		"kind":      cfg.Kind,
		"rounds":    len(rounds),
		"timedMode": lobby.TimedMode,
	})
	e.log.WithFields(logrus.Fields{"lobby": lobby.ID, "player": player.ID, "kind": cfg.Kind}).Info("lobby created")
	return player, lobby, nil
}

// JoinLobby adds a new player bound to connID to a waiting lobby.
func (e *Engine) JoinLobby(connID, lobbyID uuid.UUID, displayName string) (models.Player, models.Lobby, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fail := func(err error) (models.Player, models.Lobby, error) {
		e.sendError(connID, err)
		return models.Player{}, models.Lobby{}, err
	}

	name, err := validateDisplayName(displayName)
	if err != nil {
		return fail(err)
	}
	lobby, ok := e.store.Lobby(lobbyID)
	if !ok {
		return fail(notFoundf("lobby not found"))
	}
	if lobby.Status != models.LobbyWaiting {
		return fail(ErrAlreadyStarted)
	}
	if lobby.IsFull() {
		return fail(ErrLobbyFull)
	}

	player := models.Player{ID: uuid.New(), DisplayName: name, ConnectionID: connID, JoinedAt: e.Now()}
	e.store.AddPlayer(player)
	if err := e.store.AddMember(lobbyID, player.ID); err != nil {
		e.store.DeletePlayer(player.ID)
		if errors.Is(err, store.ErrLobbyFull) {
			return fail(ErrLobbyFull)
		}
		return fail(notFoundf("lobby not found"))
	}
	lobby, _ = e.store.Lobby(lobbyID)
	players := e.store.PlayersInLobby(lobbyID)

	e.out.JoinRoom(connID, lobbyID)
	e.out.Send(connID, Event{Type: EventLobbyJoined, Payload: LobbyPayload{Lobby: lobby, Players: players}})
	e.out.BroadcastExcept(lobbyID, connID, Event{Type: EventPlayerJoined, Payload: PlayerPayload{Player: player}})
	e.broadcastLobbyListLocked()

	e.logAction(lobbyID, player.ID, "player_joined", map[string]interface{}{"displayName": name})
	e.log.WithFields(logrus.Fields{"lobby": lobbyID, "player": player.ID, "count": lobby.PlayerCount}).Info("player joined")
	return player, lobby, nil
}

// SetReady marks the player ready. Repeating it is harmless.
func (e *Engine) SetReady(playerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.Player(playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	lobbyID, ok := e.store.LobbyOf(playerID)
	if !ok {
		err := notFoundf("not in a lobby")
		e.sendError(p.ConnectionID, err)
		return err
	}
	e.store.UpdatePlayer(playerID, func(p *models.Player) { p.Ready = true })
	e.out.Broadcast(lobbyID, Event{Type: EventLobbyPlayersUpdated, Payload: PlayersPayload{Players: e.store.PlayersInLobby(lobbyID)}})
	e.logAction(lobbyID, playerID, "player_ready", nil)
	return nil
}

// Leave removes the player from its lobby and from the store. It is also the disconnect
// path. The earliest-joined remaining member inherits the host role; an emptied lobby is
// deleted along with its game.
func (e *Engine) Leave(playerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.Player(playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	lobbyID, inLobby := e.store.LobbyOf(playerID)
	if !inLobby {
		e.store.DeletePlayer(playerID)
		return nil
	}
	lobby, _ := e.store.Lobby(lobbyID)

	e.store.RemoveMember(lobbyID, playerID)
	e.store.DeletePlayer(playerID)
	e.out.Send(p.ConnectionID, Event{Type: EventLobbyLeft, Payload: LobbyLeftPayload{LobbyID: lobbyID}})
	e.out.LeaveRoom(p.ConnectionID, lobbyID)
	e.logAction(lobbyID, playerID, "player_left", nil)

	fields := logrus.Fields{"lobby": lobbyID, "player": playerID}
	remaining := e.store.PlayersInLobby(lobbyID)
	if len(remaining) == 0 {
		e.dropSessionLocked(lobbyID)
		e.broadcastLobbyListLocked()
		e.log.WithFields(fields).Info("last player left")
		return nil
	}

	hostChanged := lobby.HostID == playerID
	if hostChanged {
		lobby, _ = e.store.UpdateLobby(lobbyID, func(l *models.Lobby) { l.HostID = remaining[0].ID })
		e.logAction(lobbyID, lobby.HostID, "host_migrated", map[string]interface{}{"previousHost": playerID})
		e.log.WithFields(fields).WithField("newHost", lobby.HostID).Info("host migrated")
	} else {
		lobby, _ = e.store.Lobby(lobbyID)
	}

	e.out.Broadcast(lobbyID, Event{Type: EventPlayerLeft, Payload: PlayerLeftPayload{PlayerID: playerID, HostID: lobby.HostID}})
	if hostChanged {
		e.out.Broadcast(lobbyID, Event{Type: EventLobbyData, Payload: LobbyPayload{Lobby: lobby, Players: remaining}})
	}
	e.checkProgressLocked(lobbyID)
	e.broadcastLobbyListLocked()
	e.log.WithFields(fields).Info("player left")
	return nil
}

// StartGame moves a waiting lobby into play. Only the host may start, and every other
// member must be ready. The first round is dispatched after the start delay.
func (e *Engine) StartGame(playerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.Player(playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	fail := func(err error) error {
		e.sendError(p.ConnectionID, err)
		return err
	}
	lobbyID, ok := e.store.LobbyOf(playerID)
	if !ok {
		return fail(notFoundf("not in a lobby"))
	}
	lobby, ok := e.store.Lobby(lobbyID)
	if !ok {
		return fail(notFoundf("lobby not found"))
	}
	if lobby.HostID != playerID {
		return fail(ErrNotHost)
	}
	if lobby.Status != models.LobbyWaiting {
		return fail(ErrAlreadyStarted)
	}
	members := e.store.PlayersInLobby(lobbyID)
	for _, m := range members {
		if m.ID != lobby.HostID && !m.Ready {
			return fail(ErrNotReady)
		}
	}

	e.store.UpdateLobby(lobbyID, func(l *models.Lobby) { l.Status = models.LobbyInProgress })
	g := models.Game{
		ID:           lobbyID,
		Status:       models.GameInProgress,
		Kind:         lobby.Config.Kind,
		TimedMode:    lobby.TimedMode,
		Rounds:       lobby.Rounds,
		Players:      members,
		CurrentRound: 0,
		Dispatched:   -1,
		StartedAt:    e.Now(),
	}
	e.store.AddGame(g)

	e.out.Broadcast(lobbyID, Event{Type: EventGameStarted, Payload: newGamePayload(g, members)})
	e.broadcastLobbyListLocked()
	e.logAction(lobbyID, playerID, "game_started", map[string]interface{}{"rounds": len(g.Rounds), "players": len(members)})
	e.log.WithFields(logrus.Fields{"game": lobbyID, "rounds": len(g.Rounds), "players": len(members)}).Info("game started")

	e.Scheduler.AfterFunc(e.settings.StartDelay, func() { e.dispatchFirstRound(lobbyID) })
	return nil
}

// ListLobbies unicasts the waiting lobbies to connID.
func (e *Engine) ListLobbies(connID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out.Send(connID, Event{Type: EventLobbyListUpdated, Payload: LobbyListPayload{Lobbies: e.waitingLobbiesLocked()}})
}

// WaitingLobbies returns lobbies that can still be joined.
func (e *Engine) WaitingLobbies() []models.Lobby {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waitingLobbiesLocked()
}

// LobbyData subscribes connID to the lobby's room and unicasts the lobby state.
func (e *Engine) LobbyData(connID, lobbyID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	lobby, ok := e.store.Lobby(lobbyID)
	if !ok {
		err := notFoundf("lobby not found")
		e.sendError(connID, err)
		return err
	}
	e.out.JoinRoom(connID, lobbyID)
	e.out.Send(connID, Event{Type: EventLobbyData, Payload: LobbyPayload{Lobby: lobby, Players: e.store.PlayersInLobby(lobbyID)}})
	return nil
}

// GameData subscribes connID to the game's room and unicasts the game state.
func (e *Engine) GameData(connID, gameID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.store.Game(gameID)
	if !ok {
		err := notFoundf("game not found")
		e.sendError(connID, err)
		return err
	}
	e.out.JoinRoom(connID, gameID)
	e.out.Send(connID, Event{Type: EventGameData, Payload: newGamePayload(g, e.store.PlayersInLobby(gameID))})
	return nil
}
