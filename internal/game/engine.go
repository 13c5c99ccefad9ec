// internal/game/engine.go
package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/cache"
	"github.com/jason-s-yu/partyrounds/internal/content"
	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/jason-s-yu/partyrounds/internal/store"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Settings are the engine's timing and scoring knobs.
type Settings struct {
	RoundDuration  time.Duration
	StartDelay     time.Duration
	CleanupGrace   time.Duration
	ContentTimeout time.Duration
	FinishedMaxAge time.Duration

	MinRounds         int
	MaxRounds         int
	DefaultRoundCount int
	DefaultMaxPlayers int
	CorrectPoints     int
}

// DefaultSettings mirrors the config defaults.
func DefaultSettings() Settings {
	return Settings{
		RoundDuration:     15 * time.Second,
		StartDelay:        3 * time.Second,
		CleanupGrace:      30 * time.Second,
		ContentTimeout:    20 * time.Second,
		FinishedMaxAge:    time.Hour,
		MinRounds:         1,
		MaxRounds:         20,
		DefaultRoundCount: 10,
		DefaultMaxPlayers: 8,
		CorrectPoints:     10,
	}
}

// ActionPublisher receives one record per state change. cache.Feed implements it.
type ActionPublisher interface {
	Publish(ctx context.Context, rec cache.ActionRecord) error
}

type gradingKey struct {
	gameID uuid.UUID
	index  int
}

// Engine owns every lobby and game. All state changes happen with mu held, so the
// engine behaves like a single event loop: provider calls run with mu released and
// everything after them re-reads the store before acting.
type Engine struct {
	mu sync.Mutex

	store    *store.Store
	content  content.Provider
	out      Broadcaster
	settings Settings
	log      *logrus.Entry

	// Scheduler runs round timers, the start delay and post-game cleanup.
	Scheduler Scheduler
	// Actions, if set, receives the session's action feed.
	Actions ActionPublisher
	// Now is the engine clock.
	Now func() time.Time

	actionSeq map[uuid.UUID]int
	grading   map[gradingKey]bool
}

// NewEngine wires an engine to its store, content source and outbound transport.
func NewEngine(st *store.Store, provider content.Provider, out Broadcaster, settings Settings, logger *logrus.Logger) *Engine {
	return &Engine{
		store:     st,
		content:   provider,
		out:       out,
		settings:  settings,
		log:       logger.WithField("component", "engine"),
		Scheduler: wallClock{},
		Now:       time.Now,
		actionSeq: make(map[uuid.UUID]int),
		grading:   make(map[gradingKey]bool),
	}
}

// sendError unicasts err's user-facing message. Assumes lock is held.
func (e *Engine) sendError(connID uuid.UUID, err error) {
	e.out.Send(connID, Event{Type: EventError, Payload: ErrorPayload{Message: UserMessage(err)}})
}

// waitingLobbiesLocked lists lobbies still accepting players.
func (e *Engine) waitingLobbiesLocked() []models.Lobby {
	return lo.Filter(e.store.Lobbies(), func(l models.Lobby, _ int) bool {
		return l.Status == models.LobbyWaiting
	})
}

func (e *Engine) broadcastLobbyListLocked() {
	e.out.BroadcastAll(Event{Type: EventLobbyListUpdated, Payload: LobbyListPayload{Lobbies: e.waitingLobbiesLocked()}})
}

// dropSessionLocked deletes a lobby, its game, its answers and its members.
func (e *Engine) dropSessionLocked(lobbyID uuid.UUID) {
	members := e.store.PlayersInLobby(lobbyID)
	e.store.DeleteGame(lobbyID)
	e.store.DeleteLobby(lobbyID)
	for _, p := range members {
		e.store.DeletePlayer(p.ID)
	}
	e.out.CloseRoom(lobbyID)
	e.logAction(lobbyID, uuid.Nil, cache.ActionSessionClosed, nil)
	delete(e.actionSeq, lobbyID)
	for key := range e.grading {
		if key.gameID == lobbyID {
			delete(e.grading, key)
		}
	}
	e.log.WithField("lobby", lobbyID).Info("session removed")
}

// logAction publishes an action record for the historian. Assumes lock is held;
// the publish itself runs in the background.
func (e *Engine) logAction(lobbyID, actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	if e.Actions == nil {
		return
	}
	e.actionSeq[lobbyID]++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	rec := cache.ActionRecord{
		LobbyID:       lobbyID,
		ActionIndex:   e.actionSeq[lobbyID],
		ActorID:       actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     e.Now().UnixMilli(),
	}
	publisher := e.Actions
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := publisher.Publish(ctx, rec); err != nil {
			e.log.WithFields(logrus.Fields{"lobby": rec.LobbyID, "action": rec.ActionType}).WithError(err).Warn("failed to publish action")
		}
	}()
}
