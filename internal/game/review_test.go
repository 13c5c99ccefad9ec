package game

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/content"
	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupReviewGame plays a two-round prompt game to the review phase.
func setupReviewGame(t *testing.T, provider *stubProvider) (*testEnv, member, member, uuid.UUID) {
	t.Helper()
	env := setupTestEngine(t, provider)
	host, lobby := env.create(t, CreateLobbyRequest{RoundCount: 2, Kind: models.KindPrompt})
	guest := env.join(t, lobby.ID, "guest")
	env.start(t, host, guest)

	g := env.game(t, lobby.ID)
	answers := map[uuid.UUID][2]string{
		host.player.ID:  {"Snowman", "Pancakes"},
		guest.player.ID: {"ice cube", "Toast"},
	}
	for i, round := range g.Rounds {
		for _, m := range []member{host, guest} {
			require.NoError(t, env.engine.SubmitAnswer(m.player.ID, round.ID, answers[m.player.ID][i]))
		}
	}
	require.Equal(t, models.GameReviewing, env.game(t, lobby.ID).Status)
	return env, host, guest, lobby.ID
}

func TestPromptGameEntersReviewOnQuorum(t *testing.T) {
	env, host, guest, gameID := setupReviewGame(t, &stubProvider{rounds: promptRounds("Things that are cold", "Breakfast foods")})

	assert.Equal(t, 0, env.score(t, host.player.ID), "prompt answers are not scored on submit")
	result := env.out.last(t, guest.conn, EventAnswerResult).Payload.(AnswerResultPayload)
	assert.True(t, result.Accepted)
	assert.Nil(t, result.Correct)

	review := env.out.last(t, guest.conn, EventReviewStarted).Payload.(ReviewPayload)
	require.Len(t, review.Rounds, 2)
	r0 := review.Rounds[0].ID
	assert.Equal(t, "Snowman", review.Answers[r0][host.player.ID])
	assert.Equal(t, "ice cube", review.Answers[r0][guest.player.ID])

	assert.ErrorIs(t, env.engine.SubmitAnswer(host.player.ID, r0, "late"), ErrNotPlaying)
	assert.Equal(t, 2, env.game(t, gameID).CurrentRound)
}

func TestAdvanceReviewGradesOnceAndAttributesScores(t *testing.T) {
	provider := &stubProvider{
		rounds: promptRounds("Things that are cold", "Breakfast foods"),
		grades: map[string][]content.Grade{
			"Things that are cold": {
				{Answer: "snowman", Score: 80, Rationale: "classic"},
				{Answer: "Ice cube", Score: 50, Rationale: "fine"},
				{Answer: "penguin", Score: 99, Rationale: "nobody said this"},
			},
		},
	}
	env, host, guest, gameID := setupReviewGame(t, provider)

	assert.ErrorIs(t, env.engine.AdvanceReview(context.Background(), guest.player.ID, 0), ErrNotHost)
	assert.Empty(t, env.out.events(guest.conn, EventGradesReady))
	assert.Zero(t, provider.gradeCalls.Load())

	require.NoError(t, env.engine.AdvanceReview(context.Background(), host.player.ID, 0))
	assert.Equal(t, 80, env.score(t, host.player.ID))
	assert.Equal(t, 50, env.score(t, guest.player.ID))

	advanced := env.out.last(t, guest.conn, EventReviewAdvanced).Payload.(ReviewIndexPayload)
	assert.Equal(t, 0, advanced.Index)
	grades := env.out.last(t, guest.conn, EventGradesReady).Payload.(GradesPayload)
	require.Len(t, grades.Grades, 3)
	assert.Equal(t, uuid.Nil, grades.Grades[0].PlayerID, "unmatched grade is kept without a player")
	assert.Equal(t, host.player.ID, grades.Grades[1].PlayerID)
	assert.Equal(t, "Snowman", grades.Grades[1].Answer)
	assert.Equal(t, "host", grades.Grades[1].DisplayName)
	assert.Equal(t, guest.player.ID, grades.Grades[2].PlayerID)

	// Revisiting the round re-broadcasts without grading or scoring again.
	require.NoError(t, env.engine.AdvanceReview(context.Background(), host.player.ID, 0))
	assert.EqualValues(t, 1, provider.gradeCalls.Load())
	assert.Equal(t, 80, env.score(t, host.player.ID))
	assert.Len(t, env.out.events(guest.conn, EventGradesReady), 2)

	assert.ErrorIs(t, env.engine.AdvanceReview(context.Background(), host.player.ID, 5), ErrValidation)

	assert.ErrorIs(t, env.engine.FinishReview(guest.player.ID), ErrNotHost)
	require.NoError(t, env.engine.FinishReview(host.player.ID))
	assert.Equal(t, models.GameFinished, env.game(t, gameID).Status)

	standings := env.out.last(t, guest.conn, EventGameFinished).Payload.(FinishedPayload).Standings
	require.Len(t, standings, 2)
	assert.Equal(t, host.player.ID, standings[0].PlayerID)
	assert.Equal(t, 80, standings[0].Score)

	assert.ErrorIs(t, env.engine.AdvanceReview(context.Background(), host.player.ID, 1), ErrNotReviewing)
}

func TestGradingFailureRecordsNoGrades(t *testing.T) {
	provider := &stubProvider{
		rounds:   promptRounds("Things that are cold", "Breakfast foods"),
		gradeErr: errors.New("model overloaded"),
	}
	env, host, guest, gameID := setupReviewGame(t, provider)

	require.NoError(t, env.engine.AdvanceReview(context.Background(), host.player.ID, 1))

	grades := env.out.last(t, guest.conn, EventGradesReady).Payload.(GradesPayload)
	assert.Equal(t, 1, grades.Index)
	assert.Empty(t, grades.Grades)
	assert.Zero(t, env.score(t, host.player.ID))
	assert.Equal(t, models.GameReviewing, env.game(t, gameID).Status)
}

func TestGradesArrivingAfterFinishAreDropped(t *testing.T) {
	provider := &stubProvider{
		rounds: promptRounds("Things that are cold", "Breakfast foods"),
		grades: map[string][]content.Grade{
			"Things that are cold": {{Answer: "Snowman", Score: 90}},
		},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	env, host, guest, gameID := setupReviewGame(t, provider)

	done := make(chan error, 1)
	go func() { done <- env.engine.AdvanceReview(context.Background(), host.player.ID, 0) }()
	<-provider.started

	// The engine is not blocked while grading is in flight.
	assert.ErrorIs(t, env.engine.AdvanceReview(context.Background(), host.player.ID, 0), ErrGradingBusy)
	require.NoError(t, env.engine.FinishReview(host.player.ID))

	close(provider.gate)
	require.NoError(t, <-done)

	assert.Equal(t, models.GameFinished, env.game(t, gameID).Status)
	assert.Zero(t, env.score(t, host.player.ID), "stale grading result never scores")
	assert.Empty(t, env.out.events(guest.conn, EventGradesReady))
}

func TestAdvanceReviewWithoutAnswers(t *testing.T) {
	provider := &stubProvider{rounds: promptRounds("Things that are cold")}
	env := setupTestEngine(t, provider)
	host, lobby := env.create(t, CreateLobbyRequest{RoundCount: 1, Kind: models.KindPrompt})
	env.start(t, host)

	// The host skips the only round without answering.
	require.NoError(t, env.engine.RequestNextRound(host.player.ID))
	require.Equal(t, models.GameReviewing, env.game(t, lobby.ID).Status)

	require.NoError(t, env.engine.AdvanceReview(context.Background(), host.player.ID, 0))
	grades := env.out.last(t, host.conn, EventGradesReady).Payload.(GradesPayload)
	assert.Empty(t, grades.Grades)
	assert.Zero(t, provider.gradeCalls.Load())
}

func TestHostMigrationCarriesReviewControl(t *testing.T) {
	provider := &stubProvider{rounds: promptRounds("Things that are cold", "Breakfast foods")}
	env, host, guest, gameID := setupReviewGame(t, provider)

	require.NoError(t, env.engine.Leave(host.player.ID))
	require.NoError(t, env.engine.FinishReview(guest.player.ID))
	assert.Equal(t, models.GameFinished, env.game(t, gameID).Status)
}

func TestAttributeGradesCreditsEveryMatchingPlayer(t *testing.T) {
	env := setupTestEngine(t, &stubProvider{})
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g := models.Game{Players: []models.Player{
		{ID: a, DisplayName: "a"},
		{ID: b, DisplayName: "b"},
		{ID: c, DisplayName: "c"},
	}}
	answers := map[uuid.UUID]string{a: "Snow", b: "  snow ", c: "hail"}
	grades := []content.Grade{
		{Answer: "Snow", Score: 70},
		{Answer: "snow", Score: 10},
	}

	results := env.engine.attributeGradesLocked(g, answers, grades)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 70, r.Score, "first grade for a text wins")
		assert.Contains(t, []uuid.UUID{a, b}, r.PlayerID)
		assert.NotEmpty(t, r.DisplayName, "names come from the game snapshot")
	}
}

func TestGraderSeesEachAnswerOnceRegardlessOfCase(t *testing.T) {
	provider := &stubProvider{
		rounds: promptRounds("Breakfast foods"),
		grades: map[string][]content.Grade{
			"Breakfast foods": {{Answer: "Eggs", Score: 60}},
		},
	}
	env := setupTestEngine(t, provider)
	host, lobby := env.create(t, CreateLobbyRequest{RoundCount: 1, Kind: models.KindPrompt})
	guest := env.join(t, lobby.ID, "guest")
	third := env.join(t, lobby.ID, "third")
	env.start(t, host, guest, third)

	round := env.game(t, lobby.ID).Rounds[0]
	require.NoError(t, env.engine.SubmitAnswer(host.player.ID, round.ID, "Eggs"))
	require.NoError(t, env.engine.SubmitAnswer(guest.player.ID, round.ID, "  eggs"))
	require.NoError(t, env.engine.SubmitAnswer(third.player.ID, round.ID, "toast"))
	require.Equal(t, models.GameReviewing, env.game(t, lobby.ID).Status)

	require.NoError(t, env.engine.AdvanceReview(context.Background(), host.player.ID, 0))
	assert.Equal(t, []string{"Eggs", "toast"}, provider.graded)
	assert.Equal(t, 60, env.score(t, host.player.ID))
	assert.Equal(t, 60, env.score(t, guest.player.ID), "case variants share one grade")
	assert.Equal(t, 0, env.score(t, third.player.ID))
}
