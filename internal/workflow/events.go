package workflow

import (
	"time"

	"tinytales/internal/illustration"
	"tinytales/internal/services"
	"tinytales/internal/story"
)

// EventType classifies a progress event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventSentence EventType = "sentence"
	EventStory    EventType = "story"
	EventExport   EventType = "export"
	EventError    EventType = "error"
)

// Event is one progress notification fanned out to listeners.
type Event struct {
	Type     EventType            `json:"type"`
	Stage    string               `json:"stage"`
	StoryID  string               `json:"storyId,omitempty"`
	Fraction float64              `json:"fraction,omitempty"`
	Status   string               `json:"status,omitempty"`
	Index    int                  `json:"index,omitempty"`
	Outcome  illustration.Outcome `json:"outcome,omitempty"`
	Attempt  int                  `json:"attempt,omitempty"`
	DelayMS  int64                `json:"delayMs,omitempty"`
	Kind     services.Kind        `json:"kind,omitempty"`
	Sentence *story.Sentence      `json:"sentence,omitempty"`
	Time     time.Time            `json:"time"`
}

// Listener receives events synchronously; it must not block.
type Listener func(Event)

func (m *Manager) emit(event Event) {
	if event.Time.IsZero() {
		event.Time = m.now()
	}
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(event)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, fn)
	m.listenerIDs = append(m.listenerIDs, id)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, existing := range m.listenerIDs {
			if existing == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				m.listenerIDs = append(m.listenerIDs[:i], m.listenerIDs[i+1:]...)
				return
			}
		}
	}
}
