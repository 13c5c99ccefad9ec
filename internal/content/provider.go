// internal/content/provider.go
package content

import (
	"context"
	"errors"

	"github.com/jason-s-yu/partyrounds/internal/models"
)

// ErrUnavailable is returned by providers that cannot produce content at all.
var ErrUnavailable = errors.New("content provider unavailable")

// Grade is one provider verdict on a free-text answer.
type Grade struct {
	Answer    string `json:"answer"`
	Score     int    `json:"score"`
	Rationale string `json:"reasoning"`
}

// Provider produces round content and grades free-text answers. Implementations may be
// slow and may fail; callers fall back to built-in content and treat grading failures as
// "no grades".
type Provider interface {
	GenerateRounds(ctx context.Context, cfg models.RoundConfig) ([]models.RoundItem, error)
	GradeAnswers(ctx context.Context, prompt string, answers []string) ([]Grade, error)
}

// Offline is a Provider with no backend. Every call fails, which routes games onto the
// built-in content.
type Offline struct{}

func (Offline) GenerateRounds(context.Context, models.RoundConfig) ([]models.RoundItem, error) {
	return nil, ErrUnavailable
}

func (Offline) GradeAnswers(context.Context, string, []string) ([]Grade, error) {
	return nil, ErrUnavailable
}
