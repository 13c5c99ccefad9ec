// internal/content/parse.go
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/samber/lo"
)

var (
	errNoArray    = errors.New("no JSON array in model output")
	errNoItems    = errors.New("model output contained no usable items")
	fenceLine     = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	listDecorator = regexp.MustCompile(`^(\d+[.)]|[-*•])\s*`)
)

// stripFences removes markdown code fences models like to wrap JSON in.
func stripFences(s string) string {
	return strings.TrimSpace(fenceLine.ReplaceAllString(s, ""))
}

// extractArray returns the outermost [...] span of s.
func extractArray(s string) (string, error) {
	s = stripFences(s)
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return "", errNoArray
	}
	return s[start : end+1], nil
}

// parsePromptList accepts either a JSON array of strings or a comma/newline separated
// list and returns at most count cleaned prompts.
func parsePromptList(text string, count int) ([]string, error) {
	var raw []string
	arr, err := extractArray(text)
	if err != nil || json.Unmarshal([]byte(arr), &raw) != nil {
		raw = strings.FieldsFunc(stripFences(text), func(r rune) bool { return r == ',' || r == '\n' })
	}

	prompts := lo.Map(raw, func(p string, _ int) string {
		p = strings.TrimSpace(p)
		p = listDecorator.ReplaceAllString(p, "")
		return strings.Trim(p, `"'`+" ")
	})
	prompts = lo.Filter(prompts, func(p string, _ int) bool { return p != "" })
	if len(prompts) == 0 {
		return nil, errNoItems
	}
	if len(prompts) > count {
		prompts = prompts[:count]
	}
	return prompts, nil
}

type triviaWire struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Category      string   `json:"category"`
}

// parseTrivia decodes a JSON array of multiple-choice questions, dropping malformed ones.
func parseTrivia(text string, count int, theme string) ([]models.RoundItem, error) {
	arr, err := extractArray(text)
	if err != nil {
		return nil, err
	}
	var wire []triviaWire
	if err := json.Unmarshal([]byte(arr), &wire); err != nil {
		return nil, fmt.Errorf("decode trivia: %w", err)
	}
	valid := lo.Filter(wire, func(q triviaWire, _ int) bool {
		return strings.TrimSpace(q.Question) != "" && len(q.Options) >= 2 &&
			q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options)
	})
	if len(valid) == 0 {
		return nil, errNoItems
	}
	if len(valid) > count {
		valid = valid[:count]
	}
	return lo.Map(valid, func(q triviaWire, _ int) models.RoundItem {
		category := q.Category
		if category == "" {
			category = theme
		}
		return models.RoundItem{
			ID:           uuid.New(),
			Kind:         models.KindTrivia,
			Text:         strings.TrimSpace(q.Question),
			Category:     category,
			Options:      q.Options,
			CorrectIndex: q.CorrectAnswer,
		}
	}), nil
}

type gradeWire struct {
	Answer    string  `json:"answer"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// parseGrades decodes a JSON array of grades, clamps scores to 0..100 and sorts them
// best first.
func parseGrades(text string) ([]Grade, error) {
	arr, err := extractArray(text)
	if err != nil {
		return nil, err
	}
	var wire []gradeWire
	if err := json.Unmarshal([]byte(arr), &wire); err != nil {
		return nil, fmt.Errorf("decode grades: %w", err)
	}
	grades := lo.FilterMap(wire, func(g gradeWire, _ int) (Grade, bool) {
		if strings.TrimSpace(g.Answer) == "" {
			return Grade{}, false
		}
		score := int(math.Round(math.Max(0, math.Min(100, g.Score))))
		return Grade{Answer: g.Answer, Score: score, Rationale: g.Reasoning}, true
	})
	sort.SliceStable(grades, func(i, j int) bool { return grades[i].Score > grades[j].Score })
	return grades, nil
}
