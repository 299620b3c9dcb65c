package illustration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tinytales/internal/logging"
	"tinytales/internal/services"
	"tinytales/internal/services/genai"
	"tinytales/internal/story"
)

// Failure reasons recorded on sentences.
const (
	ReasonMaxRetries   = "Max retries reached"
	ReasonAdminLimited = "Admin limited"
)

// Source produces an illustration for one sentence as a data URI.
type Source interface {
	Illustrate(ctx context.Context, sentence string) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, sentence string) (string, error)

// Illustrate calls f.
func (f SourceFunc) Illustrate(ctx context.Context, sentence string) (string, error) {
	return f(ctx, sentence)
}

// FromGenAI adapts the Gemini client.
func FromGenAI(client *genai.Client) Source {
	return SourceFunc(func(ctx context.Context, sentence string) (string, error) {
		img, err := client.GenerateImage(ctx, sentence)
		if err != nil {
			return "", err
		}
		return img.DataURI(), nil
	})
}

// Outcome describes what happened to one sentence, or one attempt at it.
type Outcome string

const (
	OutcomeResolved Outcome = "resolved"
	OutcomeRetrying Outcome = "retrying"
	OutcomeFailed   Outcome = "failed"
	OutcomeStopped  Outcome = "stopped"
	OutcomeLimited  Outcome = "limited"
)

// Event reports per-item progress for interactive surfaces.
type Event struct {
	Index      int
	SentenceID string
	Outcome    Outcome
	Attempt    int
	MaxRetries int
	Delay      time.Duration
	Kind       services.Kind
	Reason     string
}

// Callbacks are optional hooks invoked synchronously from the batch loop.
type Callbacks struct {
	Progress func(fraction float64, status string)
	Event    func(Event)
	Update   func(index int, sentence story.Sentence)
}

// Summary tallies a finished batch.
type Summary struct {
	Resolved  int
	Failed    int
	Stopped   int
	Cancelled bool
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Fetcher runs the sequential illustration batch.
type Fetcher struct {
	source     Source
	policy     RetryPolicy
	classifier Classifier
	sleep      Sleeper
	logger     *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithPolicy overrides the retry schedule.
func WithPolicy(policy RetryPolicy) Option {
	return func(f *Fetcher) { f.policy = policy }
}

// WithClassifier overrides rate-limit detection.
func WithClassifier(classifier Classifier) Option {
	return func(f *Fetcher) { f.classifier = classifier }
}

// WithSleeper replaces the backoff wait, typically with a fake in tests.
func WithSleeper(sleep Sleeper) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// NewFetcher constructs a fetcher over source.
func NewFetcher(source Source, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:     source,
		policy:     DefaultPolicy(),
		classifier: DefaultClassifier(),
		sleep:      SleepWithContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "illustration")
	return f
}

// SleepWithContext blocks for d, returning early if ctx is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchAll illustrates sentences in order and returns the settled copy.
// Sentences that already carry a real image are kept without a request. When
// ctx is cancelled the returned error wraps services.ErrCancelled and the
// unfinished sentences from the interrupted one onward are marked stopped.
func (f *Fetcher) FetchAll(ctx context.Context, sentences []story.Sentence, cb Callbacks) ([]story.Sentence, Summary, error) {
	out := make([]story.Sentence, len(sentences))
	copy(out, sentences)
	var summary Summary
	total := len(out)
	if total == 0 {
		notifyProgress(cb, 1, "No sentences to illustrate")
		return out, summary, nil
	}
	notifyProgress(cb, 0, "Starting illustrations")
	for i := range out {
		if ctx.Err() != nil {
			summary.Stopped = f.stopFrom(out, i, cb)
			summary.Cancelled = true
			return out, summary, f.cancelled(ctx, i)
		}
		if out[i].Valid() {
			summary.Resolved++
			notifyProgress(cb, float64(i+1)/float64(total), fmt.Sprintf("Illustrated %d of %d", i+1, total))
			continue
		}
		itemCtx := services.WithSentenceIndex(ctx, i)
		outcome := f.fetchOne(itemCtx, i, &out[i], cb)
		switch outcome {
		case OutcomeStopped:
			summary.Stopped = f.stopFrom(out, i, cb)
			summary.Cancelled = true
			return out, summary, f.cancelled(ctx, i)
		case OutcomeResolved:
			summary.Resolved++
		default:
			summary.Failed++
		}
		if cb.Update != nil {
			cb.Update(i, out[i])
		}
		notifyProgress(cb, float64(i+1)/float64(total), fmt.Sprintf("Illustrated %d of %d", i+1, total))
	}
	f.logger.Info("illustrations complete",
		logging.Int("resolved", summary.Resolved),
		logging.Int("failed", summary.Failed),
	)
	return out, summary, nil
}

// MarkLimited settles every sentence on the placeholder without any request.
func MarkLimited(sentences []story.Sentence, cb Callbacks) []story.Sentence {
	out := make([]story.Sentence, len(sentences))
	copy(out, sentences)
	for i := range out {
		out[i].Fail(ReasonAdminLimited)
		if cb.Event != nil {
			cb.Event(Event{Index: i, SentenceID: out[i].ID, Outcome: OutcomeLimited, Kind: services.KindDisabled, Reason: ReasonAdminLimited})
		}
		if cb.Update != nil {
			cb.Update(i, out[i])
		}
	}
	notifyProgress(cb, 1, "Illustration generation is limited by the administrator")
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, index int, sentence *story.Sentence, cb Callbacks) Outcome {
	logger := logging.WithContext(ctx, f.logger)
	state := f.policy.NewState()
	sentence.Reload()
	for {
		if ctx.Err() != nil {
			return OutcomeStopped
		}
		uri, err := f.source.Illustrate(ctx, sentence.Text)
		if err == nil && strings.TrimSpace(uri) == "" {
			err = errors.New("illustration returned no image")
		}
		if err == nil {
			sentence.Resolve(uri)
			emit(cb, Event{Index: index, SentenceID: sentence.ID, Outcome: OutcomeResolved, Attempt: state.Attempt, MaxRetries: f.policy.MaxRetries})
			return OutcomeResolved
		}
		if ctx.Err() != nil {
			return OutcomeStopped
		}
		if !f.classifier.RateLimited(err) {
			sentence.Fail(err.Error())
			logging.WarnWithContext(logger, "illustration failed; using placeholder", "illustration_failed",
				logging.Error(err),
			)
			emit(cb, Event{Index: index, SentenceID: sentence.ID, Outcome: OutcomeFailed, Attempt: state.Attempt, MaxRetries: f.policy.MaxRetries, Kind: services.KindProvider, Reason: err.Error()})
			return OutcomeFailed
		}
		if f.policy.Exhausted(state) {
			sentence.Fail(ReasonMaxRetries)
			logging.WarnWithContext(logger, "rate limit persists; using placeholder", "illustration_rate_limit_exhausted",
				logging.Int("attempts", state.Attempt+1),
				logging.Error(err),
			)
			emit(cb, Event{Index: index, SentenceID: sentence.ID, Outcome: OutcomeFailed, Attempt: state.Attempt, MaxRetries: f.policy.MaxRetries, Kind: services.KindProvider, Reason: ReasonMaxRetries})
			return OutcomeFailed
		}
		hint, hasHint := Hint(err)
		delay := f.policy.Next(&state, hint, hasHint)
		logger.Info("rate limited, retrying",
			logging.Int("attempt", state.Attempt),
			logging.Int("max_attempts", f.policy.MaxRetries),
			logging.Duration("backoff", delay),
			logging.Bool("provider_hint", hasHint),
		)
		emit(cb, Event{Index: index, SentenceID: sentence.ID, Outcome: OutcomeRetrying, Attempt: state.Attempt, MaxRetries: f.policy.MaxRetries, Delay: delay, Kind: services.KindRateLimited})
		if err := f.sleep(ctx, delay); err != nil {
			return OutcomeStopped
		}
	}
}

func (f *Fetcher) stopFrom(sentences []story.Sentence, from int, cb Callbacks) int {
	stopped := 0
	for i := from; i < len(sentences); i++ {
		if sentences[i].Valid() {
			continue
		}
		sentences[i].Stop()
		stopped++
		emit(cb, Event{Index: i, SentenceID: sentences[i].ID, Outcome: OutcomeStopped, Kind: services.KindCancelled, Reason: story.StopReason})
		if cb.Update != nil {
			cb.Update(i, sentences[i])
		}
	}
	notifyProgress(cb, float64(from)/float64(len(sentences)), "Illustration generation stopped")
	return stopped
}

func (f *Fetcher) cancelled(ctx context.Context, index int) error {
	f.logger.Info("illustrations stopped", logging.Int("at_sentence", index+1))
	return services.Wrap(services.ErrCancelled, "illustration", "fetch", "stopped by user", ctx.Err())
}

func emit(cb Callbacks, event Event) {
	if cb.Event != nil {
		cb.Event(event)
	}
}

func notifyProgress(cb Callbacks, fraction float64, status string) {
	if cb.Progress != nil {
		cb.Progress(fraction, status)
	}
}
