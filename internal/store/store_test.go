package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlayer(s *Store, name string) models.Player {
	p := models.Player{ID: uuid.New(), DisplayName: name, JoinedAt: time.Now()}
	s.AddPlayer(p)
	return p
}

func newLobby(s *Store, maxPlayers int) models.Lobby {
	l := models.Lobby{ID: uuid.New(), Name: "test", MaxPlayers: maxPlayers, Status: models.LobbyWaiting, CreatedAt: time.Now()}
	s.AddLobby(l)
	return l
}

func TestMembershipKeepsPlayerCountInSync(t *testing.T) {
	s := New()
	l := newLobby(s, 3)
	a, b, c := newPlayer(s, "a"), newPlayer(s, "b"), newPlayer(s, "c")

	require.NoError(t, s.AddMember(l.ID, a.ID))
	require.NoError(t, s.AddMember(l.ID, b.ID))
	require.NoError(t, s.AddMember(l.ID, c.ID))

	got, ok := s.Lobby(l.ID)
	require.True(t, ok)
	assert.Equal(t, 3, got.PlayerCount)
	assert.Len(t, s.PlayersInLobby(l.ID), 3)

	assert.True(t, s.RemoveMember(l.ID, b.ID))
	assert.False(t, s.RemoveMember(l.ID, b.ID), "second removal is a no-op")

	got, _ = s.Lobby(l.ID)
	assert.Equal(t, 2, got.PlayerCount)
	members := s.PlayersInLobby(l.ID)
	require.Len(t, members, 2)
	assert.Equal(t, a.ID, members[0].ID, "join order is preserved")
	assert.Equal(t, c.ID, members[1].ID)

	_, inLobby := s.LobbyOf(b.ID)
	assert.False(t, inLobby)
	lobbyID, inLobby := s.LobbyOf(c.ID)
	assert.True(t, inLobby)
	assert.Equal(t, l.ID, lobbyID)
}

func TestAddMemberFailures(t *testing.T) {
	s := New()
	l := newLobby(s, 1)
	a, b := newPlayer(s, "a"), newPlayer(s, "b")

	assert.ErrorIs(t, s.AddMember(uuid.New(), a.ID), ErrNotFound)
	assert.ErrorIs(t, s.AddMember(l.ID, uuid.New()), ErrNotFound)

	require.NoError(t, s.AddMember(l.ID, a.ID))
	require.NoError(t, s.AddMember(l.ID, a.ID), "re-adding a member is idempotent")
	assert.ErrorIs(t, s.AddMember(l.ID, b.ID), ErrLobbyFull)

	got, _ := s.Lobby(l.ID)
	assert.Equal(t, 1, got.PlayerCount)
}

func TestUpdateLobbyCannotOverwritePlayerCount(t *testing.T) {
	s := New()
	l := newLobby(s, 4)
	a := newPlayer(s, "a")
	require.NoError(t, s.AddMember(l.ID, a.ID))

	got, ok := s.UpdateLobby(l.ID, func(l *models.Lobby) {
		l.Name = "renamed"
		l.PlayerCount = 99
	})
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 1, got.PlayerCount)
}

func TestDeleteLobbyClearsIndex(t *testing.T) {
	s := New()
	l := newLobby(s, 4)
	a := newPlayer(s, "a")
	require.NoError(t, s.AddMember(l.ID, a.ID))

	s.DeleteLobby(l.ID)

	_, ok := s.Lobby(l.ID)
	assert.False(t, ok)
	_, ok = s.LobbyOf(a.ID)
	assert.False(t, ok)
	assert.Empty(t, s.PlayersInLobby(l.ID))
	_, ok = s.Player(a.ID)
	assert.True(t, ok, "players outlive their lobby until deleted explicitly")
}

func TestRecordAnswerFirstStands(t *testing.T) {
	s := New()
	gameID, roundID, playerID := uuid.New(), uuid.New(), uuid.New()

	assert.True(t, s.RecordAnswer(gameID, models.AnswerRecord{RoundID: roundID, PlayerID: playerID, Response: "first"}))
	assert.False(t, s.RecordAnswer(gameID, models.AnswerRecord{RoundID: roundID, PlayerID: playerID, Response: "second"}))

	assert.Equal(t, "first", s.RoundAnswers(gameID, roundID)[playerID])
	assert.Len(t, s.Answers(gameID), 1)

	s.DeleteGame(gameID)
	assert.Empty(t, s.Answers(gameID))
}

func TestGameCopiesAreIndependent(t *testing.T) {
	s := New()
	g := models.Game{
		ID:     uuid.New(),
		Status: models.GameInProgress,
		Rounds: []models.RoundItem{{Text: "a"}},
		Graded: map[int][]models.GradedAnswer{},
	}
	s.AddGame(g)

	read, ok := s.Game(g.ID)
	require.True(t, ok)
	read.Rounds[0].Text = "mutated"
	read.Graded[0] = []models.GradedAnswer{{Answer: "x"}}

	fresh, _ := s.Game(g.ID)
	assert.Equal(t, "a", fresh.Rounds[0].Text)
	assert.Empty(t, fresh.Graded)

	updated, ok := s.UpdateGame(g.ID, func(g *models.Game) { g.CurrentRound++ })
	require.True(t, ok)
	assert.Equal(t, 1, updated.CurrentRound)

	_, ok = s.UpdateGame(uuid.New(), func(*models.Game) {})
	assert.False(t, ok)
}

func TestPlayerUpdateAndDelete(t *testing.T) {
	s := New()
	a := newPlayer(s, "a")

	got, ok := s.UpdatePlayer(a.ID, func(p *models.Player) { p.Score += 10 })
	require.True(t, ok)
	assert.Equal(t, 10, got.Score)

	s.DeletePlayer(a.ID)
	_, ok = s.Player(a.ID)
	assert.False(t, ok)
	_, ok = s.UpdatePlayer(a.ID, func(p *models.Player) {})
	assert.False(t, ok)
}
