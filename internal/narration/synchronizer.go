package narration

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tinytales/internal/logging"
	"tinytales/internal/services"
)

// Speech synthesizes text into a data:audio URI. An empty URI means no audio.
type Speech interface {
	Synthesize(ctx context.Context, text, languageTag string) (string, error)
}

// Outcome describes how a sentence's narration finished.
type Outcome string

const (
	OutcomeNarrated Outcome = "narrated"
	OutcomePaused   Outcome = "paused"
	OutcomeTimedOut Outcome = "timed_out"
)

// Result reports one sentence's narration. Cause is set when the sentence
// fell back to a silent pause.
type Result struct {
	Outcome  Outcome
	Duration time.Duration
	Cause    error
}

// Timing controls the fallback pause and the playback guard.
type Timing struct {
	SilentPause   time.Duration
	TimeoutFloor  time.Duration
	TimeoutMargin time.Duration
}

// DefaultTiming is a 1s pause and a max(5s, duration+1.5s) guard.
func DefaultTiming() Timing {
	return Timing{SilentPause: time.Second, TimeoutFloor: 5 * time.Second, TimeoutMargin: 1500 * time.Millisecond}
}

// Timeout returns the playback guard for a clip of length d.
func (t Timing) Timeout(d time.Duration) time.Duration {
	return max(t.TimeoutFloor, d+t.TimeoutMargin)
}

// Synchronizer narrates sentences one at a time through a Graph.
type Synchronizer struct {
	speech  Speech
	decoder Decoder
	graph   *Graph
	timing  Timing
	after   func(time.Duration) <-chan time.Time
	logger  *slog.Logger
}

// Option customizes a Synchronizer.
type Option func(*Synchronizer)

// WithTiming overrides pause and timeout intervals.
func WithTiming(t Timing) Option {
	return func(s *Synchronizer) { s.timing = t }
}

// WithClock replaces time.After, typically in tests.
func WithClock(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Synchronizer) {
		if after != nil {
			s.after = after
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) { s.logger = logger }
}

// NewSynchronizer wires speech synthesis and decoding to graph.
func NewSynchronizer(speech Speech, decoder Decoder, graph *Graph, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		speech:  speech,
		decoder: decoder,
		graph:   graph,
		timing:  DefaultTiming(),
		after:   time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "narration")
	return s
}

// Narrate speaks text into the graph and returns once playback ends, the
// guard fires, or the fallback pause has been written. Only context
// cancellation and sink failures are returned as errors.
func (s *Synchronizer) Narrate(ctx context.Context, text, languageTag string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, services.Wrap(services.ErrCancelled, "narration", "narrate", "narration cancelled", err)
	}
	logger := logging.WithContext(ctx, s.logger)
	clip, cause := s.prepare(ctx, text, languageTag)
	if ctx.Err() != nil {
		return Result{}, services.Wrap(services.ErrCancelled, "narration", "narrate", "narration cancelled", ctx.Err())
	}
	if cause != nil {
		logging.WarnWithContext(logger, "speech unavailable; using silent pause", "narration_silent_pause",
			logging.Error(cause),
			logging.Duration("pause", s.timing.SilentPause),
			logging.String(logging.FieldImpact, "frame is held silently"),
		)
		if err := s.graph.Silence(s.timing.SilentPause); err != nil {
			return Result{}, services.Wrap(services.ErrRecorder, "narration", "pause", "write silence", err)
		}
		return Result{Outcome: OutcomePaused, Duration: s.timing.SilentPause, Cause: cause}, nil
	}

	playback, err := s.graph.Play(clip)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPlayback, "narration", "play", "start source", err)
	}
	timeout := s.timing.Timeout(playback.Duration())
	select {
	case <-playback.Ended():
		if err := playback.Err(); err != nil {
			return Result{}, services.Wrap(services.ErrRecorder, "narration", "play", "audio sink failed", err)
		}
		return Result{Outcome: OutcomeNarrated, Duration: playback.Duration()}, nil
	case <-s.after(timeout):
		playback.Stop()
		logging.WarnWithContext(logger, "playback did not finish; stopping source", "narration_timeout",
			logging.Duration("timeout", timeout),
			logging.Duration("clip", playback.Duration()),
		)
		return Result{Outcome: OutcomeTimedOut, Duration: playback.Duration()}, nil
	case <-ctx.Done():
		playback.Stop()
		return Result{}, services.Wrap(services.ErrCancelled, "narration", "play", "narration cancelled", ctx.Err())
	}
}

// prepare fetches and decodes speech. A non-nil cause selects the pause.
func (s *Synchronizer) prepare(ctx context.Context, text, languageTag string) (PCM, error) {
	if s.speech == nil {
		return PCM{}, services.Wrap(services.ErrConfiguration, "narration", "synthesize", "speech client unavailable", nil)
	}
	if strings.TrimSpace(text) == "" {
		return PCM{}, services.Wrap(services.ErrValidation, "narration", "synthesize", "empty sentence", nil)
	}
	uri, err := s.speech.Synthesize(ctx, text, languageTag)
	if err != nil {
		return PCM{}, services.Wrap(services.ErrProvider, "narration", "synthesize", "speech request failed", err)
	}
	if strings.TrimSpace(uri) == "" {
		return PCM{}, services.Wrap(services.ErrProvider, "narration", "synthesize", "no audio returned", nil)
	}
	if s.decoder == nil {
		return PCM{}, services.Wrap(services.ErrPlayback, "narration", "decode", "no decoder configured", nil)
	}
	clip, err := DecodeDataURI(ctx, s.decoder, uri)
	if err != nil {
		return PCM{}, services.Wrap(services.ErrPlayback, "narration", "decode", "decode speech", err)
	}
	if clip.Empty() {
		return PCM{}, services.Wrap(services.ErrPlayback, "narration", "decode", "decoded clip is empty", errors.New("zero samples"))
	}
	return clip, nil
}
