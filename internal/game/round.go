// internal/game/round.go
package game

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// dispatchFirstRound fires after the start delay. A host advance during the delay has
// already dispatched, in which case this does nothing.
func (e *Engine) dispatchFirstRound(gameID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.store.Game(gameID)
	if !ok || g.Status != models.GameInProgress || g.CurrentRound != 0 || g.Dispatched >= 0 {
		e.log.WithField("game", gameID).Debug("stale start timer ignored")
		return
	}
	e.dispatchRoundLocked(gameID)
}

// dispatchRoundLocked announces the current round, or ends the playing phase when the
// rounds are used up. Assumes lock is held.
func (e *Engine) dispatchRoundLocked(gameID uuid.UUID) {
	g, ok := e.store.Game(gameID)
	if !ok || g.Status != models.GameInProgress {
		return
	}
	if g.CurrentRound >= len(g.Rounds) {
		if g.Kind.DefersScoring() {
			e.enterReviewLocked(gameID)
		} else {
			e.finishLocked(gameID)
		}
		return
	}
	if g.Dispatched >= g.CurrentRound {
		return
	}

	g, _ = e.store.UpdateGame(gameID, func(g *models.Game) { g.Dispatched = g.CurrentRound })
	idx := g.CurrentRound
	round := g.Rounds[idx]

	e.out.Broadcast(gameID, Event{Type: EventRoundDispatched, Payload: RoundPayload{Round: round, Index: idx, Total: len(g.Rounds)}})
	e.logAction(gameID, uuid.Nil, "round_dispatched", map[string]interface{}{"index": idx, "roundId": round.ID})
	e.log.WithFields(logrus.Fields{"game": gameID, "round": idx}).Debug("round dispatched")

	if g.TimedMode {
		e.Scheduler.AfterFunc(e.settings.RoundDuration, func() { e.advance(gameID, idx, "timer") })
	}
}

// advance moves past round expected. It is the single entry point for the round timer,
// the host and the all-answered check; whichever arrives second finds the index already
// moved and does nothing.
func (e *Engine) advance(gameID uuid.UUID, expected int, trigger string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advanceLocked(gameID, expected, trigger)
}

func (e *Engine) advanceLocked(gameID uuid.UUID, expected int, trigger string) bool {
	fields := logrus.Fields{"game": gameID, "expected": expected, "trigger": trigger}
	g, ok := e.store.Game(gameID)
	if !ok || g.Status != models.GameInProgress || g.CurrentRound != expected {
		e.log.WithFields(fields).Debug("stale advance ignored")
		return false
	}
	e.store.UpdateGame(gameID, func(g *models.Game) { g.CurrentRound++ })
	e.log.WithFields(fields).Debug("round advanced")
	e.dispatchRoundLocked(gameID)
	return true
}

// RequestNextRound is the host's manual advance. Requests from anyone else are ignored.
func (e *Engine) RequestNextRound(playerID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	gameID, err := e.hostGameLocked(playerID)
	if err != nil {
		return err
	}
	g, _ := e.store.Game(gameID)
	if !g.Live() {
		return ErrNotPlaying
	}
	e.advanceLocked(gameID, g.CurrentRound, "host")
	return nil
}

// hostGameLocked resolves the game playerID hosts.
func (e *Engine) hostGameLocked(playerID uuid.UUID) (uuid.UUID, error) {
	lobbyID, ok := e.store.LobbyOf(playerID)
	if !ok {
		return uuid.Nil, notFoundf("not in a lobby")
	}
	lobby, ok := e.store.Lobby(lobbyID)
	if !ok {
		return uuid.Nil, notFoundf("lobby not found")
	}
	if lobby.HostID != playerID {
		e.log.WithFields(logrus.Fields{"lobby": lobbyID, "player": playerID}).Debug("ignoring host command from non-host")
		return uuid.Nil, ErrNotHost
	}
	if _, ok := e.store.Game(lobbyID); !ok {
		return uuid.Nil, notFoundf("game not found")
	}
	return lobbyID, nil
}

// SubmitAnswer records the player's response to the current round. Rejections are
// reported to the submitter as a non-accepted answer_result.
func (e *Engine) SubmitAnswer(playerID, roundID uuid.UUID, response string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.store.Player(playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	reject := func(err error) error {
		e.out.Send(p.ConnectionID, Event{Type: EventAnswerResult, Payload: AnswerResultPayload{
			RoundID:  roundID,
			Accepted: false,
			Reason:   UserMessage(err),
		}})
		return err
	}

	gameID, ok := e.store.LobbyOf(playerID)
	if !ok {
		return reject(notFoundf("not in a lobby"))
	}
	g, ok := e.store.Game(gameID)
	if !ok {
		return reject(notFoundf("game not found"))
	}
	if !g.Live() {
		return reject(ErrNotPlaying)
	}
	round, _ := g.Current()
	if round.ID != roundID {
		return reject(ErrRoundMismatch)
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return reject(validationf("answer is required"))
	}
	if !e.store.RecordAnswer(gameID, models.AnswerRecord{RoundID: roundID, PlayerID: playerID, Response: response}) {
		return reject(ErrDuplicateAnswer)
	}

	e.out.Broadcast(gameID, Event{Type: EventPlayerAnswered, Payload: PlayerAnsweredPayload{PlayerID: playerID, RoundID: roundID}})

	result := AnswerResultPayload{RoundID: roundID, Accepted: true}
	logPayload := map[string]interface{}{"roundId": roundID, "index": g.CurrentRound}
	if !g.Kind.DefersScoring() {
		correct := round.Check(response)
		key := round.CorrectIndex
		result.Correct = &correct
		result.CorrectAnswer = &key
		logPayload["correct"] = correct
		if correct {
			e.store.UpdatePlayer(playerID, func(p *models.Player) { p.Score += e.settings.CorrectPoints })
		}
	}
	e.out.Send(p.ConnectionID, Event{Type: EventAnswerResult, Payload: result})
	if !g.Kind.DefersScoring() {
		e.out.Broadcast(gameID, Event{Type: EventScoresUpdated, Payload: PlayersPayload{Players: e.store.PlayersInLobby(gameID)}})
	}
	e.logAction(gameID, playerID, "answer_submitted", logPayload)

	e.checkProgressLocked(gameID)
	return nil
}

// checkProgressLocked ends the playing phase of a deferred game once every member has
// answered every round, and otherwise advances once every member has answered the
// current round. Assumes lock is held.
func (e *Engine) checkProgressLocked(gameID uuid.UUID) {
	g, ok := e.store.Game(gameID)
	if !ok || g.Status != models.GameInProgress {
		return
	}
	members := e.store.PlayersInLobby(gameID)
	if len(members) == 0 {
		return
	}
	answers := e.store.Answers(gameID)
	answeredAll := func(roundID uuid.UUID) bool {
		return lo.EveryBy(members, func(p models.Player) bool {
			_, ok := answers[roundID][p.ID]
			return ok
		})
	}

	if g.Kind.DefersScoring() && lo.EveryBy(g.Rounds, func(r models.RoundItem) bool { return answeredAll(r.ID) }) {
		e.enterReviewLocked(gameID)
		return
	}
	if g.Live() {
		round, _ := g.Current()
		if answeredAll(round.ID) {
			e.advanceLocked(gameID, g.CurrentRound, "all_answered")
		}
	}
}
