// internal/game/review.go
package game

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/cache"
	"github.com/jason-s-yu/partyrounds/internal/content"
	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// enterReviewLocked moves a deferred game into review and publishes every answer.
// Assumes lock is held.
func (e *Engine) enterReviewLocked(gameID uuid.UUID) {
	g, ok := e.store.Game(gameID)
	if !ok || !g.Status.CanTransitionTo(models.GameReviewing) {
		return
	}
	g, _ = e.store.UpdateGame(gameID, func(g *models.Game) {
		g.Status = models.GameReviewing
		g.Graded = make(map[int][]models.GradedAnswer)
	})
	e.out.Broadcast(gameID, Event{Type: EventReviewStarted, Payload: ReviewPayload{Rounds: g.Rounds, Answers: e.store.Answers(gameID)}})
	e.logAction(gameID, uuid.Nil, "review_started", nil)
	e.log.WithField("game", gameID).Info("review started")
}

// AdvanceReview shows review round index to everyone and grades it. Only the host may
// drive the review; other callers are ignored. Grading runs without the lock, and its
// result is dropped if the game left review in the meantime. A round is graded once;
// asking again re-broadcasts the stored grades.
func (e *Engine) AdvanceReview(ctx context.Context, playerID uuid.UUID, index int) error {
	e.mu.Lock()
	gameID, err := e.hostGameLocked(playerID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	g, _ := e.store.Game(gameID)
	if g.Status != models.GameReviewing {
		e.mu.Unlock()
		return ErrNotReviewing
	}
	if index < 0 || index >= len(g.Rounds) {
		err := validationf("review index %d is out of range", index)
		if p, ok := e.store.Player(playerID); ok {
			e.sendError(p.ConnectionID, err)
		}
		e.mu.Unlock()
		return err
	}
	round := g.Rounds[index]

	e.out.Broadcast(gameID, Event{Type: EventReviewAdvanced, Payload: ReviewIndexPayload{Index: index}})
	if graded, done := g.Graded[index]; done {
		e.out.Broadcast(gameID, Event{Type: EventGradesReady, Payload: GradesPayload{Index: index, RoundID: round.ID, Grades: graded}})
		e.mu.Unlock()
		return nil
	}
	key := gradingKey{gameID: gameID, index: index}
	if e.grading[key] {
		e.mu.Unlock()
		return ErrGradingBusy
	}
	answers := e.store.RoundAnswers(gameID, round.ID)
	if len(answers) == 0 {
		e.storeGradesLocked(gameID, index, round, []models.GradedAnswer{})
		e.mu.Unlock()
		return nil
	}
	e.grading[key] = true
	e.mu.Unlock()

	texts := gradingTexts(answers)

	gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.settings.ContentTimeout)
	grades, gradeErr := e.content.GradeAnswers(gctx, round.Text, texts)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grading, key)

	fields := logrus.Fields{"game": gameID, "round": index}
	if gradeErr != nil {
		e.log.WithFields(fields).WithError(errors.Join(ErrUpstream, gradeErr)).Warn("grading failed, recording no grades")
		grades = nil
	}
	g, ok := e.store.Game(gameID)
	if !ok || g.Status != models.GameReviewing {
		e.log.WithFields(fields).Debug("dropping grades for a game that left review")
		return nil
	}
	if _, done := g.Graded[index]; done {
		return nil
	}

	results := e.attributeGradesLocked(g, answers, grades)
	for _, r := range results {
		if r.PlayerID == uuid.Nil {
			continue
		}
		e.store.UpdatePlayer(r.PlayerID, func(p *models.Player) { p.Score += r.Score })
	}
	e.storeGradesLocked(gameID, index, round, results)
	e.out.Broadcast(gameID, Event{Type: EventScoresUpdated, Payload: PlayersPayload{Players: e.store.PlayersInLobby(gameID)}})
	e.log.WithFields(fields).WithField("grades", len(results)).Info("round graded")
	return nil
}

func (e *Engine) storeGradesLocked(gameID uuid.UUID, index int, round models.RoundItem, results []models.GradedAnswer) {
	e.store.UpdateGame(gameID, func(g *models.Game) {
		if g.Graded == nil {
			g.Graded = make(map[int][]models.GradedAnswer)
		}
		g.Graded[index] = results
	})
	e.out.Broadcast(gameID, Event{Type: EventGradesReady, Payload: GradesPayload{Index: index, RoundID: round.ID, Grades: results}})
	e.logAction(gameID, uuid.Nil, "round_graded", map[string]interface{}{"index": index, "grades": len(results)})
}

func normalizeAnswer(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// gradingTexts returns each distinct answer once, compared the way grades are matched
// back to players.
func gradingTexts(answers map[uuid.UUID]string) []string {
	texts := lo.Map(lo.Values(answers), func(a string, _ int) string { return normalizeAnswer(a) })
	sort.Strings(texts)
	return lo.UniqBy(texts, strings.ToLower)
}

// attributeGradesLocked matches grader output back to the players who wrote each
// answer. Matching ignores case and surrounding whitespace, and every player whose
// answer matches a grade receives it. Grades matching nobody are kept with a nil
// PlayerID. Results are sorted best first.
func (e *Engine) attributeGradesLocked(g models.Game, answers map[uuid.UUID]string, grades []content.Grade) []models.GradedAnswer {
	byText := make(map[string]content.Grade, len(grades))
	for _, gr := range grades {
		k := strings.ToLower(normalizeAnswer(gr.Answer))
		if _, seen := byText[k]; !seen {
			byText[k] = gr
		}
	}

	names := make(map[uuid.UUID]string, len(g.Players))
	for _, p := range g.Players {
		names[p.ID] = p.DisplayName
	}

	playerIDs := lo.Keys(answers)
	sort.Slice(playerIDs, func(i, j int) bool { return playerIDs[i].String() < playerIDs[j].String() })

	matched := make(map[string]bool)
	results := make([]models.GradedAnswer, 0, len(grades))
	for _, pid := range playerIDs {
		k := strings.ToLower(normalizeAnswer(answers[pid]))
		gr, ok := byText[k]
		if !ok {
			continue
		}
		matched[k] = true
		name := names[pid]
		if p, ok := e.store.Player(pid); ok {
			name = p.DisplayName
		}
		results = append(results, models.GradedAnswer{
			PlayerID:    pid,
			DisplayName: name,
			Answer:      answers[pid],
			Score:       gr.Score,
			Rationale:   gr.Rationale,
		})
	}
	for k, gr := range byText {
		if matched[k] {
			continue
		}
		results = append(results, models.GradedAnswer{Answer: gr.Answer, Score: gr.Score, Rationale: gr.Rationale})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Answer < results[j].Answer
	})
	return results
}

// FinishReview ends the review and publishes the standings. Host only.
func (e *Engine) FinishReview(playerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	gameID, err := e.hostGameLocked(playerID)
	if err != nil {
		return err
	}
	g, _ := e.store.Game(gameID)
	if g.Status != models.GameReviewing {
		return ErrNotReviewing
	}
	e.finishLocked(gameID)
	return nil
}

// finishLocked publishes standings and schedules removal of the session. Assumes lock
// is held.
func (e *Engine) finishLocked(gameID uuid.UUID) {
	g, ok := e.store.Game(gameID)
	if !ok || !g.Status.CanTransitionTo(models.GameFinished) {
		return
	}
	g, _ = e.store.UpdateGame(gameID, func(g *models.Game) {
		g.Status = models.GameFinished
		g.FinishedAt = e.Now()
	})

	standings := lo.Map(e.store.PlayersInLobby(gameID), func(p models.Player, _ int) models.Standing {
		return models.Standing{PlayerID: p.ID, DisplayName: p.DisplayName, Score: p.Score}
	})
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].Score > standings[j].Score })

	e.out.Broadcast(gameID, Event{Type: EventGameFinished, Payload: FinishedPayload{Standings: standings, Rounds: g.Rounds}})
	e.logAction(gameID, uuid.Nil, cache.ActionGameFinished, map[string]interface{}{"standings": standings})
	e.log.WithField("game", gameID).Info("game finished")

	e.Scheduler.AfterFunc(e.settings.CleanupGrace, func() { e.cleanupFinished(gameID) })
}

// cleanupFinished removes a finished session once its grace period is over.
func (e *Engine) cleanupFinished(gameID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.store.Game(gameID)
	if !ok || g.Status != models.GameFinished {
		return
	}
	e.dropSessionLocked(gameID)
}
