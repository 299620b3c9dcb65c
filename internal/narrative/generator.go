// Package narrative turns a prompt into a story split into sentences.
package narrative

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tinytales/internal/logging"
	"tinytales/internal/services"
	"tinytales/internal/services/genai"
	"tinytales/internal/story"
)

// ProgressMessage is the fixed status reported after a story is generated.
const ProgressMessage = "Whipped up a delightful tale starring a multitude of tiny cats!"

// Model generates story prose.
type Model interface {
	GenerateStory(ctx context.Context, prompt, languageName string) (genai.StoryResult, error)
}

// Result is a generated story ready for illustration.
type Result struct {
	Prompt    string
	Language  story.Language
	Story     string
	Sentences []story.Sentence
	Progress  string
	Elapsed   time.Duration
}

// Generator wraps a Model with validation and sentence splitting.
type Generator struct {
	model  Model
	logger *slog.Logger
	now    func() time.Time
}

// NewGenerator constructs a generator.
func NewGenerator(model Model, logger *slog.Logger) *Generator {
	return &Generator{
		model:  model,
		logger: logging.NewComponentLogger(logger, "narrative"),
		now:    time.Now,
	}
}

// Generate requests a story for prompt in lang and splits it into loading
// sentences.
func (g *Generator) Generate(ctx context.Context, prompt string, lang story.Language) (Result, error) {
	var empty Result
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return empty, services.Wrap(services.ErrValidation, "narrative", "generate", "prompt is required", nil)
	}
	if g.model == nil {
		return empty, services.Wrap(services.ErrConfiguration, "narrative", "generate", "story model unavailable", nil)
	}
	started := g.now()
	logger := logging.WithContext(ctx, g.logger)
	logger.Info("generating story",
		logging.String("language", string(lang)),
		logging.Int("prompt_chars", len([]rune(prompt))),
	)

	generated, err := g.model.GenerateStory(ctx, prompt, lang.DisplayName())
	if err != nil {
		return empty, classifyProviderError(ctx, err)
	}
	texts := story.SplitSentences(generated.Story)
	if len(texts) == 0 {
		return empty, services.Wrap(services.ErrProvider, "narrative", "split", "story contained no sentences", nil)
	}
	result := Result{
		Prompt:    prompt,
		Language:  lang,
		Story:     strings.TrimSpace(generated.Story),
		Sentences: story.NewSentences(texts, lang),
		Progress:  ProgressMessage,
		Elapsed:   g.now().Sub(started),
	}
	logger.Info("story generated",
		logging.Int("sentences", len(result.Sentences)),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func classifyProviderError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrCancelled, "narrative", "generate", "story generation cancelled", err)
	}
	var statusErr *genai.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return services.Wrap(services.ErrRateLimited, "narrative", "generate", "story provider rate limited", err)
	}
	return services.Wrap(services.ErrProvider, "narrative", "generate", "story provider failed", err)
}
