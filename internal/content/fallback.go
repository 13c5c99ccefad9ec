// internal/content/fallback.go
package content

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/models"
)

var fallbackTrivia = []models.RoundItem{
	{
		Text:         "What is the capital of France?",
		Category:     "Geography",
		Options:      []string{"London", "Berlin", "Paris", "Madrid"},
		CorrectIndex: 2,
	},
	{
		Text:         "Which planet is known as the Red Planet?",
		Category:     "Science",
		Options:      []string{"Venus", "Mars", "Jupiter", "Saturn"},
		CorrectIndex: 1,
	},
	{
		Text:         "Who wrote 'Romeo and Juliet'?",
		Category:     "Literature",
		Options:      []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"},
		CorrectIndex: 1,
	},
}

var fallbackPrompts = []models.RoundItem{
	{Text: "Things you find in a library", Category: "General"},
	{Text: "Breakfast foods", Category: "Food"},
	{Text: "Things that are cold", Category: "General"},
}

// Fallback returns built-in rounds for cfg. The base set is cycled until RoundCount items
// exist, and every item gets a fresh ID so repeated texts are still distinct rounds.
func Fallback(cfg models.RoundConfig) []models.RoundItem {
	base := fallbackTrivia
	if cfg.Kind == models.KindPrompt {
		base = fallbackPrompts
	}
	n := cfg.RoundCount
	if n < 1 {
		n = 1
	}
	out := make([]models.RoundItem, n)
	for i := range out {
		item := base[i%len(base)]
		item.ID = uuid.New()
		item.Kind = cfg.Kind
		if item.Kind == "" {
			item.Kind = models.KindTrivia
		}
		if cfg.Theme != "" {
			item.Category = cfg.Theme
		}
		if item.Options != nil {
			item.Options = append([]string(nil), item.Options...)
		}
		out[i] = item
	}
	return out
}
