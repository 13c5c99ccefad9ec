package content

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackCyclesToRequestedCount(t *testing.T) {
	items := Fallback(models.RoundConfig{Kind: models.KindTrivia, RoundCount: 5})
	require.Len(t, items, 5)

	assert.Equal(t, items[0].Text, items[3].Text, "base set is cycled")
	assert.NotEqual(t, items[0].ID, items[3].ID, "cycled items get fresh ids")
	assert.Equal(t, 2, items[0].CorrectIndex)
	assert.Equal(t, "Paris", items[0].CorrectOption())

	items[0].Options[0] = "mutated"
	again := Fallback(models.RoundConfig{Kind: models.KindTrivia, RoundCount: 1})
	assert.Equal(t, "London", again[0].Options[0], "built-in options are not shared")
}

func TestFallbackPromptsUseTheme(t *testing.T) {
	items := Fallback(models.RoundConfig{Kind: models.KindPrompt, Theme: "Holidays", RoundCount: 2})
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, models.KindPrompt, it.Kind)
		assert.Equal(t, "Holidays", it.Category)
		assert.Empty(t, it.Options)
	}
}

func TestParsePromptList(t *testing.T) {
	got, err := parsePromptList("Things at a beach, 2. Things that are loud ,  , \"Famous duos\", Pizza toppings", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Things at a beach", "Things that are loud", "Famous duos"}, got)

	got, err = parsePromptList("```json\n[\"Zoo animals\", \"Board games\"]\n```", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Zoo animals", "Board games"}, got)

	_, err = parsePromptList(" , ,", 3)
	assert.Error(t, err)
}

func TestParseTrivia(t *testing.T) {
	text := "Here you go:\n```json\n[" +
		`{"question":"2+2?","options":["3","4","5","6"],"correctAnswer":1,"category":"Math"},` +
		`{"question":"bad index","options":["a","b"],"correctAnswer":7},` +
		`{"question":"Largest ocean?","options":["Atlantic","Pacific"],"correctAnswer":1}` +
		"]\n```"

	items, err := parseTrivia(text, 5, "Mixed")
	require.NoError(t, err)
	require.Len(t, items, 2, "malformed question is dropped")
	assert.Equal(t, "2+2?", items[0].Text)
	assert.Equal(t, "Math", items[0].Category)
	assert.Equal(t, 1, items[0].CorrectIndex)
	assert.Equal(t, "Mixed", items[1].Category, "theme fills a missing category")

	_, err = parseTrivia("no json here", 5, "")
	assert.ErrorIs(t, err, errNoArray)
}

func TestParseGradesSortsAndClamps(t *testing.T) {
	text := `[{"answer":"ice","score":40,"reasoning":"fine"},{"answer":"glacier","score":140,"reasoning":"great"},{"answer":"","score":10},{"answer":"fire","score":-5,"reasoning":"no"}]`

	grades, err := parseGrades(text)
	require.NoError(t, err)
	require.Len(t, grades, 3)
	assert.Equal(t, Grade{Answer: "glacier", Score: 100, Rationale: "great"}, grades[0])
	assert.Equal(t, "ice", grades[1].Answer)
	assert.Equal(t, 0, grades[2].Score)
}

func TestOfflineAlwaysFails(t *testing.T) {
	_, err := Offline{}.GenerateRounds(context.Background(), models.RoundConfig{RoundCount: 1})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = Offline{}.GradeAnswers(context.Background(), "p", []string{"a"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewLLMProviderRequiresKey(t *testing.T) {
	_, err := NewLLMProvider(LLMConfig{}, logrus.New())
	assert.ErrorIs(t, err, ErrUnavailable)
}

// chatServer answers every chat completion with the next reply in replies.
func chatServer(t *testing.T, replies ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		n := int(calls.Add(1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": replies[n]},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLLMProviderGeneratesPrompts(t *testing.T) {
	srv, calls := chatServer(t, "Things in a fridge, Things with wheels, Ways to say hello")
	p, err := NewLLMProvider(LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "test-model", MaxAttempts: 2}, logrus.New())
	require.NoError(t, err)

	items, err := p.GenerateRounds(context.Background(), models.RoundConfig{Kind: models.KindPrompt, RoundCount: 2, Difficulty: models.DifficultyEasy})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Things in a fridge", items[0].Text)
	assert.Equal(t, models.KindPrompt, items[1].Kind)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLLMProviderRetriesMalformedGrades(t *testing.T) {
	srv, calls := chatServer(t,
		"I cannot do that",
		`[{"answer":"snow","score":80,"reasoning":"classic"}]`,
	)
	p, err := NewLLMProvider(LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "test-model", MaxAttempts: 2}, logrus.New())
	require.NoError(t, err)

	grades, err := p.GradeAnswers(context.Background(), "Things that are cold", []string{"snow"})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 80, grades[0].Score)
	assert.EqualValues(t, 2, calls.Load())
}

func TestLLMProviderGivesUpAfterMaxAttempts(t *testing.T) {
	srv, calls := chatServer(t, "still not json")
	p, err := NewLLMProvider(LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "test-model", MaxAttempts: 2}, logrus.New())
	require.NoError(t, err)

	_, err = p.GenerateRounds(context.Background(), models.RoundConfig{Kind: models.KindTrivia, RoundCount: 3})
	assert.Error(t, err)
	assert.EqualValues(t, 2, calls.Load())
}
