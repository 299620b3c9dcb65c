package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tinytales/internal/admin"
	"tinytales/internal/illustration"
	"tinytales/internal/logging"
	"tinytales/internal/notifications"
	"tinytales/internal/services"
	"tinytales/internal/story"
)

// Session is the story being viewed or exported.
type Session struct {
	StoryID   string
	Prompt    string
	Language  story.Language
	Story     string
	Progress  string
	Sentences []story.Sentence
	// Limited is set when the admin switched illustrations off.
	Limited bool
}

func (s Session) clone() Session {
	s.Sentences = append([]story.Sentence(nil), s.Sentences...)
	return s
}

// Illustrated reports whether every sentence carries a real illustration.
func (s Session) Illustrated() bool {
	if len(s.Sentences) == 0 {
		return false
	}
	for _, sentence := range s.Sentences {
		if !sentence.Valid() {
			return false
		}
	}
	return true
}

// Pending reports whether illustrations are still outstanding.
func (s Session) Pending() bool {
	return story.Pending(s.Sentences)
}

// GenerateRequest asks for a new story.
type GenerateRequest struct {
	Prompt   string
	Language story.Language
	UserID   string
}

// Generate produces a story, records it in history and makes it the active
// session. Its sentences are left loading until Illustrate runs.
func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (Session, error) {
	done, err := m.begin()
	if err != nil {
		return Session{}, err
	}
	defer done()

	access, err := m.access(ctx, req.UserID)
	if err != nil {
		return Session{}, err
	}
	if err := access.Require(admin.FeatureStory); err != nil {
		return Session{}, err
	}
	if m.generator == nil {
		return Session{}, services.Wrap(services.ErrConfiguration, "workflow", "generate", "story generator unavailable", nil)
	}
	ctx = services.WithStage(ctx, "generate")
	m.emit(Event{Type: EventProgress, Stage: "generate", Status: "Generating story..."})

	result, err := m.generator.Generate(ctx, req.Prompt, req.Language)
	if err != nil {
		m.fail(ctx, "generate", "", err)
		return Session{}, err
	}
	record, err := m.store.SaveHistory(ctx, result.Prompt, result.Language, result.Story, story.Texts(result.Sentences))
	if err != nil {
		m.fail(ctx, "generate", "", err)
		return Session{}, fmt.Errorf("save history: %w", err)
	}
	session := Session{
		StoryID:   record.ID,
		Prompt:    result.Prompt,
		Language:  result.Language,
		Story:     result.Story,
		Progress:  result.Progress,
		Sentences: result.Sentences,
	}
	m.setCurrent(session)

	logger := logging.WithContext(services.WithStoryID(ctx, record.ID), m.logger)
	logger.Info("story generated",
		logging.Int("sentences", len(session.Sentences)),
		logging.String("language", string(session.Language)),
		logging.String(logging.FieldEventType, "story_generated"),
	)
	m.emit(Event{Type: EventStory, Stage: "generate", StoryID: record.ID, Fraction: 1, Status: result.Progress})
	m.publish(ctx, notifications.EventStoryGenerated, notifications.Payload{
		"prompt":    session.Prompt,
		"language":  session.Language.DisplayName(),
		"sentences": len(session.Sentences),
	})
	return session.clone(), nil
}

// Open makes a history entry the active session. The session keeps its
// illustrations when it already shows the same, fully illustrated story.
func (m *Manager) Open(ctx context.Context, storyID string) (Session, bool, error) {
	if current, ok := m.Current(); ok && current.StoryID == storyID && current.Illustrated() {
		return current, true, nil
	}
	record, err := m.store.GetStory(ctx, storyID)
	if err != nil {
		return Session{}, false, err
	}
	session := Session{
		StoryID:   record.ID,
		Prompt:    record.Prompt,
		Language:  record.Language,
		Story:     record.Story,
		Sentences: story.NewSentences(record.Sentences, record.Language),
	}
	m.setCurrent(session)
	m.emit(Event{Type: EventStory, Stage: "open", StoryID: record.ID, Status: "Reloading story from history"})
	return session.clone(), false, nil
}

// Illustrate fetches illustrations for the active session in narrative
// order. When the admin disabled illustrations every sentence gets the
// placeholder without any network call.
func (m *Manager) Illustrate(ctx context.Context, userID string) (Session, illustration.Summary, error) {
	var summary illustration.Summary
	done, err := m.begin()
	if err != nil {
		return Session{}, summary, err
	}
	defer done()

	session, ok := m.Current()
	if !ok {
		return Session{}, summary, services.Wrap(services.ErrValidation, "workflow", "illustrate", "there is no story to illustrate", nil)
	}
	ctx = services.WithStage(services.WithStoryID(ctx, session.StoryID), "illustrate")
	logger := logging.WithContext(ctx, m.logger)

	access, err := m.access(ctx, userID)
	if err != nil {
		return session, summary, err
	}
	callbacks := m.callbacks(session.StoryID)
	if access.Disabled(admin.FeatureIllustration) {
		session.Sentences = illustration.MarkLimited(session.Sentences, callbacks)
		session.Limited = true
		m.setCurrent(session)
		summary.Failed = len(session.Sentences)
		logger.Info("illustrations limited by admin", logging.Int("sentences", len(session.Sentences)))
		m.emit(Event{Type: EventProgress, Stage: "illustrate", StoryID: session.StoryID, Fraction: 1, Status: "Illustrations are admin-limited. Showing placeholders."})
		return session.clone(), summary, nil
	}
	if m.illustrator == nil {
		return session, summary, services.Wrap(services.ErrConfiguration, "workflow", "illustrate", "illustration source unavailable", nil)
	}

	for i := range session.Sentences {
		if !session.Sentences[i].Valid() {
			session.Sentences[i].Reload()
		}
	}
	m.setCurrent(session)

	sentences, summary, err := m.illustrator.FetchAll(ctx, session.Sentences, callbacks)
	session.Sentences = sentences
	session.Limited = false
	m.setCurrent(session)
	if err != nil {
		if errors.Is(err, services.ErrCancelled) || errors.Is(err, context.Canceled) {
			logger.Info("illustration stopped", logging.Int("stopped", summary.Stopped))
			m.emit(Event{Type: EventProgress, Stage: "illustrate", StoryID: session.StoryID, Status: "Illustration generation stopped", Kind: services.KindCancelled})
			return session.clone(), summary, err
		}
		m.fail(ctx, "illustrate", session.StoryID, err)
		return session.clone(), summary, err
	}
	logger.Info("illustrations finished",
		logging.Int("resolved", summary.Resolved),
		logging.Int("failed", summary.Failed),
		logging.String(logging.FieldEventType, "illustrations_finished"),
	)
	m.publish(ctx, notifications.EventIllustrationsFinished, notifications.Payload{
		"total":  len(session.Sentences),
		"failed": summary.Failed,
	})
	return session.clone(), summary, nil
}

func (m *Manager) callbacks(storyID string) illustration.Callbacks {
	return illustration.Callbacks{
		Progress: func(fraction float64, status string) {
			m.emit(Event{Type: EventProgress, Stage: "illustrate", StoryID: storyID, Fraction: fraction, Status: status})
		},
		Event: func(ev illustration.Event) {
			m.emit(Event{
				Type:    EventSentence,
				Stage:   "illustrate",
				StoryID: storyID,
				Index:   ev.Index,
				Outcome: ev.Outcome,
				Attempt: ev.Attempt,
				DelayMS: ev.Delay.Milliseconds(),
				Kind:    ev.Kind,
				Status:  ev.Reason,
			})
		},
		Update: func(index int, sentence story.Sentence) {
			m.updateSentence(storyID, index, sentence)
			copied := sentence
			m.emit(Event{Type: EventSentence, Stage: "illustrate", StoryID: storyID, Index: index, Sentence: &copied})
		},
	}
}

func (m *Manager) fail(ctx context.Context, stage, storyID string, err error) {
	m.setLastError(err)
	m.emit(Event{Type: EventError, Stage: stage, StoryID: storyID, Status: err.Error(), Kind: services.Classify(err)})
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrDisabled) {
		return
	}
	m.publish(ctx, notifications.EventError, notifications.Payload{"context": stage, "error": err})
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logger := logging.WithContext(ctx, m.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("notification skipped during shutdown")
			return
		}
		logger.Debug("notification failed", logging.String("event", strings.TrimSpace(string(event))), logging.Error(err))
	}
}
