// internal/store/store.go
package store

import (
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/models"
)

var (
	// ErrNotFound is returned when the referenced lobby or player does not exist.
	ErrNotFound = errors.New("not found")
	// ErrLobbyFull is returned by AddMember when the lobby is at capacity.
	ErrLobbyFull = errors.New("lobby is full")
)

// Store is the in-memory registry of players, lobbies, games and answers. All reads
// return copies; writes go through the Add/Update/Delete methods so the membership index
// and the cached Lobby.PlayerCount never drift apart.
type Store struct {
	mu sync.RWMutex

	players map[uuid.UUID]*models.Player
	lobbies map[uuid.UUID]*models.Lobby
	games   map[uuid.UUID]*models.Game

	// members is lobbyID -> player IDs in join order.
	members map[uuid.UUID][]uuid.UUID
	// lobbyOf is playerID -> lobbyID.
	lobbyOf map[uuid.UUID]uuid.UUID
	// answers is gameID -> roundID -> playerID -> response.
	answers map[uuid.UUID]map[uuid.UUID]map[uuid.UUID]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		players: make(map[uuid.UUID]*models.Player),
		lobbies: make(map[uuid.UUID]*models.Lobby),
		games:   make(map[uuid.UUID]*models.Game),
		members: make(map[uuid.UUID][]uuid.UUID),
		lobbyOf: make(map[uuid.UUID]uuid.UUID),
		answers: make(map[uuid.UUID]map[uuid.UUID]map[uuid.UUID]string),
	}
}

// AddPlayer inserts or replaces a player record.
func (s *Store) AddPlayer(p models.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = &p
}

// Player looks up a player by ID.
func (s *Store) Player(id uuid.UUID) (models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}

// UpdatePlayer applies fn to the stored player and returns the result.
func (s *Store) UpdatePlayer(id uuid.UUID, fn func(*models.Player)) (models.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return models.Player{}, false
	}
	fn(p)
	return *p, true
}

// DeletePlayer removes the player record. Membership must be removed first with
// RemoveMember; a dangling lobbyOf entry is dropped here as well.
func (s *Store) DeletePlayer(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	delete(s.lobbyOf, id)
}

// AddLobby inserts a lobby with an empty membership.
func (s *Store) AddLobby(l models.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.PlayerCount = 0
	s.lobbies[l.ID] = &l
	s.members[l.ID] = nil
}

// Lobby looks up a lobby by ID.
func (s *Store) Lobby(id uuid.UUID) (models.Lobby, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[id]
	if !ok {
		return models.Lobby{}, false
	}
	return *l, true
}

// UpdateLobby applies fn to the stored lobby. PlayerCount is owned by the store and any
// change fn makes to it is discarded.
func (s *Store) UpdateLobby(id uuid.UUID, fn func(*models.Lobby)) (models.Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return models.Lobby{}, false
	}
	fn(l)
	l.PlayerCount = len(s.members[id])
	return *l, true
}

// DeleteLobby removes the lobby and its membership index.
func (s *Store) DeleteLobby(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pid := range s.members[id] {
		if s.lobbyOf[pid] == id {
			delete(s.lobbyOf, pid)
		}
	}
	delete(s.members, id)
	delete(s.lobbies, id)
}

// Lobbies returns all lobbies ordered by creation time.
func (s *Store) Lobbies() []models.Lobby {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, *l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AddMember appends playerID to the lobby's membership and refreshes PlayerCount.
func (s *Store) AddMember(lobbyID, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.players[playerID]; !ok {
		return ErrNotFound
	}
	if slices.Contains(s.members[lobbyID], playerID) {
		return nil
	}
	if len(s.members[lobbyID]) >= l.MaxPlayers {
		return ErrLobbyFull
	}
	s.members[lobbyID] = append(s.members[lobbyID], playerID)
	s.lobbyOf[playerID] = lobbyID
	l.PlayerCount = len(s.members[lobbyID])
	return nil
}

// RemoveMember drops playerID from the lobby's membership. It reports whether the
// player was a member.
func (s *Store) RemoveMember(lobbyID, playerID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.members[lobbyID]
	idx := slices.Index(ids, playerID)
	if idx < 0 {
		return false
	}
	s.members[lobbyID] = slices.Delete(slices.Clone(ids), idx, idx+1)
	if s.lobbyOf[playerID] == lobbyID {
		delete(s.lobbyOf, playerID)
	}
	if l, ok := s.lobbies[lobbyID]; ok {
		l.PlayerCount = len(s.members[lobbyID])
	}
	return true
}

// PlayersInLobby returns the lobby's members in join order.
func (s *Store) PlayersInLobby(lobbyID uuid.UUID) []models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.members[lobbyID]
	out := make([]models.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.players[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// LobbyOf returns the lobby the player is a member of.
func (s *Store) LobbyOf(playerID uuid.UUID) (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.lobbyOf[playerID]
	return id, ok
}

// AddGame inserts a game record.
func (s *Store) AddGame(g models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = cloneGame(&g)
}

// Game looks up a game by ID.
func (s *Store) Game(id uuid.UUID) (models.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return models.Game{}, false
	}
	return *cloneGame(g), true
}

// UpdateGame applies fn to the stored game and returns a copy of the result.
func (s *Store) UpdateGame(id uuid.UUID, fn func(*models.Game)) (models.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return models.Game{}, false
	}
	fn(g)
	return *cloneGame(g), true
}

// DeleteGame removes the game and every answer recorded for it.
func (s *Store) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
	delete(s.answers, id)
}

// Games returns every game.
func (s *Store) Games() []models.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, *cloneGame(g))
	}
	return out
}

// RecordAnswer stores an answer unless one already exists for the same round and
// player. The first answer stands; RecordAnswer reports whether rec was stored.
func (s *Store) RecordAnswer(gameID uuid.UUID, rec models.AnswerRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds, ok := s.answers[gameID]
	if !ok {
		rounds = make(map[uuid.UUID]map[uuid.UUID]string)
		s.answers[gameID] = rounds
	}
	byPlayer, ok := rounds[rec.RoundID]
	if !ok {
		byPlayer = make(map[uuid.UUID]string)
		rounds[rec.RoundID] = byPlayer
	}
	if _, dup := byPlayer[rec.PlayerID]; dup {
		return false
	}
	byPlayer[rec.PlayerID] = rec.Response
	return true
}

// RoundAnswers returns playerID -> response for one round.
func (s *Store) RoundAnswers(gameID, roundID uuid.UUID) map[uuid.UUID]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.answers[gameID][roundID])
}

// Answers returns roundID -> playerID -> response for the whole game.
func (s *Store) Answers(gameID uuid.UUID) map[uuid.UUID]map[uuid.UUID]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]map[uuid.UUID]string, len(s.answers[gameID]))
	for roundID, byPlayer := range s.answers[gameID] {
		out[roundID] = maps.Clone(byPlayer)
	}
	return out
}

func cloneGame(g *models.Game) *models.Game {
	c := *g
	c.Rounds = slices.Clone(g.Rounds)
	c.Players = slices.Clone(g.Players)
	if g.Graded != nil {
		c.Graded = make(map[int][]models.GradedAnswer, len(g.Graded))
		for k, v := range g.Graded {
			c.Graded[k] = slices.Clone(v)
		}
	}
	return &c
}
