// internal/content/llm.go
package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

const (
	promptWriterSystem = "You write prompts for a party word game. Each prompt names a category " +
		"players can list many answers for, like \"Things that are cold\" or \"Breakfast foods\". " +
		"Reply with the prompts only, separated by commas, no numbering and no commentary."

	triviaWriterSystem = "You write multiple choice trivia questions. Reply with a JSON array only. " +
		"Each element has the keys \"question\" (string), \"options\" (array of exactly 4 strings), " +
		"\"correctAnswer\" (0-based index into options) and \"category\" (string)."

	graderSystem = "You grade answers in a party word game. For every answer, decide how well it fits " +
		"the prompt and how creative it is. Reply with a JSON array only. Each element has the keys " +
		"\"answer\" (the answer text exactly as given), \"score\" (integer 0-100) and \"reasoning\" " +
		"(one short sentence)."
)

// LLMConfig points the provider at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxAttempts int
}

// LLMProvider generates and grades content through a hosted language model. Each call
// is attempted up to MaxAttempts times; a malformed reply counts as a failed attempt.
type LLMProvider struct {
	client      openai.Client
	model       string
	maxAttempts uint
	log         *logrus.Entry
}

// NewLLMProvider returns ErrUnavailable when no API key is configured.
func NewLLMProvider(cfg LLMConfig, logger *logrus.Logger) (*LLMProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnavailable
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &LLMProvider{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxAttempts: uint(attempts),
		log:         logger.WithField("component", "llm"),
	}, nil
}

// GenerateRounds asks the model for cfg.RoundCount items of cfg.Kind.
func (p *LLMProvider) GenerateRounds(ctx context.Context, cfg models.RoundConfig) ([]models.RoundItem, error) {
	theme := cfg.Theme
	if theme == "" {
		theme = "general knowledge"
	}

	if cfg.Kind == models.KindPrompt {
		user := fmt.Sprintf("Write %d %s prompts about %s.", cfg.RoundCount, cfg.Difficulty, theme)
		return retry(ctx, p, "generate_prompts", func() ([]models.RoundItem, error) {
			text, err := p.complete(ctx, promptWriterSystem, user, 0.9)
			if err != nil {
				return nil, err
			}
			prompts, err := parsePromptList(text, cfg.RoundCount)
			if err != nil {
				return nil, err
			}
			items := make([]models.RoundItem, len(prompts))
			for i, prompt := range prompts {
				items[i] = models.RoundItem{ID: uuid.New(), Kind: models.KindPrompt, Text: prompt, Category: cfg.Theme}
			}
			return items, nil
		})
	}

	user := fmt.Sprintf("Write %d %s trivia questions about %s.", cfg.RoundCount, cfg.Difficulty, theme)
	return retry(ctx, p, "generate_trivia", func() ([]models.RoundItem, error) {
		text, err := p.complete(ctx, triviaWriterSystem, user, 0.7)
		if err != nil {
			return nil, err
		}
		return parseTrivia(text, cfg.RoundCount, cfg.Theme)
	})
}

// GradeAnswers scores every answer to prompt, best first.
func (p *LLMProvider) GradeAnswers(ctx context.Context, prompt string, answers []string) ([]Grade, error) {
	if len(answers) == 0 {
		return nil, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt: %s\nAnswers:\n", prompt)
	for _, a := range answers {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	user := b.String()

	return retry(ctx, p, "grade", func() ([]Grade, error) {
		text, err := p.complete(ctx, graderSystem, user, 0.2)
		if err != nil {
			return nil, err
		}
		return parseGrades(text)
	})
}

func (p *LLMProvider) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoItems
	}
	return resp.Choices[0].Message.Content, nil
}

// retry runs op with exponential backoff until it succeeds or the attempt budget is
// spent.
func retry[T any](ctx context.Context, p *LLMProvider, call string, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		out, err := op()
		if err != nil {
			p.log.WithFields(logrus.Fields{"call": call, "attempt": attempt}).WithError(err).Warn("llm call failed")
		}
		return out, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(p.maxAttempts),
	)
}
