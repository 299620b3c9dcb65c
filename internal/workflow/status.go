package workflow

import "tinytales/internal/export"

// StatusSummary is a lightweight view of the manager.
type StatusSummary struct {
	Working     bool
	Exporting   bool
	StoryID     string
	Prompt      string
	Sentences   int
	Illustrated bool
	Pending     bool
	LastError   string
	LastExport  *export.Artifact
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	summary := StatusSummary{
		Working:   m.working.Load(),
		Exporting: m.exporting.Load(),
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current != nil {
		summary.StoryID = m.current.StoryID
		summary.Prompt = m.current.Prompt
		summary.Sentences = len(m.current.Sentences)
		summary.Illustrated = m.current.Illustrated()
		summary.Pending = m.current.Pending()
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastExport != nil {
		copied := *m.lastExport
		summary.LastExport = &copied
	}
	return summary
}
