package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tinytales/internal/admin"
	"tinytales/internal/config"
	"tinytales/internal/export"
	"tinytales/internal/illustration"
	"tinytales/internal/logging"
	"tinytales/internal/narrative"
	"tinytales/internal/notifications"
	"tinytales/internal/store"
	"tinytales/internal/story"
)

// ErrBusy reports that another run of the same kind is in flight.
var ErrBusy = errors.New("workflow busy")

// StoryGenerator produces prose and sentences for a prompt.
type StoryGenerator interface {
	Generate(ctx context.Context, prompt string, lang story.Language) (narrative.Result, error)
}

// Illustrator fills in sentence illustrations.
type Illustrator interface {
	FetchAll(ctx context.Context, sentences []story.Sentence, cb illustration.Callbacks) ([]story.Sentence, illustration.Summary, error)
}

// Exporter writes export artifacts.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (export.Artifact, error)
}

// Manager coordinates the current story session.
type Manager struct {
	cfg         *config.Config
	store       *store.Store
	generator   StoryGenerator
	illustrator Illustrator
	exporter    Exporter
	notifier    notifications.Service
	logger      *slog.Logger
	now         func() time.Time

	mu           sync.RWMutex
	current      *Session
	lastErr      error
	lastExport   *export.Artifact
	listeners    []Listener
	listenerIDs  []int
	nextListener int

	working   atomic.Bool
	exporting atomic.Bool
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithNotifier replaces the ntfy service built from the configuration.
func WithNotifier(n notifications.Service) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithExporter sets the export backend. Without one, Export fails.
func WithExporter(e Exporter) Option {
	return func(m *Manager) { m.exporter = e }
}

// NewManager constructs a workflow manager over the store and providers.
func NewManager(cfg *config.Config, st *store.Store, generator StoryGenerator, illustrator Illustrator, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		store:       st,
		generator:   generator,
		illustrator: illustrator,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = notifications.NewService(cfg)
	}
	m.logger = logging.NewComponentLogger(m.logger, "workflow")
	return m
}

// Current returns a copy of the active session.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return m.current.clone(), true
}

// Reset drops the active session.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

func (m *Manager) setCurrent(s Session) {
	m.mu.Lock()
	copied := s.clone()
	m.current = &copied
	m.mu.Unlock()
}

func (m *Manager) updateSentence(storyID string, index int, sentence story.Sentence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.StoryID != storyID {
		return
	}
	if index >= 0 && index < len(m.current.Sentences) {
		m.current.Sentences[index] = sentence
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) access(ctx context.Context, userID string) (admin.Access, error) {
	return admin.Resolve(ctx, m.store, userID)
}

// begin claims the generate/illustrate slot.
func (m *Manager) begin() (func(), error) {
	if !m.working.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { m.working.Store(false) }, nil
}
