// internal/models/round.go
package models

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RoundKind selects how a game's rounds are graded.
type RoundKind string

const (
	// KindTrivia rounds are multiple choice and scored as soon as an answer arrives.
	KindTrivia RoundKind = "trivia"
	// KindPrompt rounds are free text and scored by the host-driven review phase.
	KindPrompt RoundKind = "prompt"
)

// Valid reports whether k is a known kind.
func (k RoundKind) Valid() bool {
	return k == KindTrivia || k == KindPrompt
}

// DefersScoring is true for kinds whose answers are graded after all rounds are played.
func (k RoundKind) DefersScoring() bool {
	return k == KindPrompt
}

// Difficulty is a hint passed to the content provider.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// RoundConfig is what a lobby asks the content provider for.
type RoundConfig struct {
	Kind       RoundKind  `json:"kind"`
	Theme      string     `json:"theme,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
	RoundCount int        `json:"roundCount"`
}

// RoundItem is one unit of play. CorrectIndex is the grading key for trivia items and
// never leaves the server.
type RoundItem struct {
	ID           uuid.UUID `json:"id"`
	Kind         RoundKind `json:"kind"`
	Text         string    `json:"text"`
	Category     string    `json:"category,omitempty"`
	Options      []string  `json:"options,omitempty"`
	CorrectIndex int       `json:"-"`
}

// Check reports whether response answers a trivia item correctly. Responses may repeat
// the option text or name the option index ("2"). Option text wins, so numeric options
// such as years are matched by value. Prompt items have no key.
func (r RoundItem) Check(response string) bool {
	if r.Kind != KindTrivia || r.CorrectIndex < 0 || r.CorrectIndex >= len(r.Options) {
		return false
	}
	response = strings.TrimSpace(response)
	for i, opt := range r.Options {
		if strings.EqualFold(response, strings.TrimSpace(opt)) {
			return i == r.CorrectIndex
		}
	}
	if idx, err := strconv.Atoi(response); err == nil {
		return idx == r.CorrectIndex
	}
	return false
}

// CorrectOption returns the option text of the grading key, or "" when there is none.
func (r RoundItem) CorrectOption() string {
	if r.CorrectIndex < 0 || r.CorrectIndex >= len(r.Options) {
		return ""
	}
	return r.Options[r.CorrectIndex]
}

// AnswerRecord is a single accepted response.
type AnswerRecord struct {
	RoundID  uuid.UUID `json:"roundId"`
	PlayerID uuid.UUID `json:"playerId"`
	Response string    `json:"response"`
}

// GradedAnswer is a provider grade attributed back to the player who wrote the answer.
// PlayerID is uuid.Nil when the grader returned text that matched no submission.
type GradedAnswer struct {
	PlayerID    uuid.UUID `json:"playerId"`
	DisplayName string    `json:"displayName,omitempty"`
	Answer      string    `json:"answer"`
	Score       int       `json:"score"`
	Rationale   string    `json:"rationale"`
}
