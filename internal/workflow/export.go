package workflow

import (
	"context"
	"errors"
	"fmt"

	"tinytales/internal/compositor"
	"tinytales/internal/export"
	"tinytales/internal/logging"
	"tinytales/internal/notifications"
	"tinytales/internal/services"
)

// ExportRequest asks for an artifact of the active session.
type ExportRequest struct {
	Format   export.Format
	UserID   string
	Prepare  compositor.PrepareFunc
	Progress export.ProgressFunc
}

// Export renders the active session. Only one export runs at a time; a
// concurrent call fails with ErrBusy without touching the pipeline.
func (m *Manager) Export(ctx context.Context, req ExportRequest) (export.Artifact, error) {
	if !m.exporting.CompareAndSwap(false, true) {
		return export.Artifact{}, fmt.Errorf("%w: an export is already running", ErrBusy)
	}
	defer m.exporting.Store(false)

	if m.exporter == nil {
		return export.Artifact{}, services.Wrap(services.ErrConfiguration, "workflow", "export", "exporter unavailable", nil)
	}
	session, ok := m.Current()
	if !ok {
		return export.Artifact{}, services.Wrap(services.ErrValidation, "workflow", "export", "there is no story to export", nil)
	}
	ctx = services.WithStage(services.WithStoryID(ctx, session.StoryID), "export")
	access, err := m.access(ctx, req.UserID)
	if err != nil {
		return export.Artifact{}, err
	}

	stage := "export." + string(req.Format)
	progress := func(fraction float64, status string) {
		if req.Progress != nil {
			req.Progress(fraction, status)
		}
		m.emit(Event{Type: EventExport, Stage: stage, StoryID: session.StoryID, Fraction: fraction, Status: status})
	}
	artifact, err := m.exporter.Export(ctx, export.Request{
		Format:    req.Format,
		Sentences: session.Sentences,
		Policy:    access,
		Prepare:   req.Prepare,
		Progress:  progress,
	})
	if err != nil {
		m.setLastError(err)
		m.emit(Event{Type: EventError, Stage: stage, StoryID: session.StoryID, Status: err.Error(), Kind: services.Classify(err)})
		if !errors.Is(err, services.ErrDisabled) && !errors.Is(err, services.ErrCancelled) {
			m.publish(ctx, notifications.EventExportFailed, notifications.Payload{"format": string(req.Format), "error": err})
		}
		return artifact, err
	}

	m.mu.Lock()
	copied := artifact
	m.lastExport = &copied
	m.mu.Unlock()
	logging.WithContext(ctx, m.logger).Info("export finished",
		logging.String("format", string(req.Format)),
		logging.String("path", artifact.Path),
		logging.String(logging.FieldEventType, "export_finished"),
	)
	m.emit(Event{Type: EventExport, Stage: stage, StoryID: session.StoryID, Fraction: 1, Status: "Export complete: " + artifact.FileName()})
	m.publish(ctx, notifications.EventExportFinished, notifications.Payload{
		"format": string(req.Format),
		"file":   artifact.FileName(),
		"bytes":  artifact.Size,
	})
	return artifact, nil
}

// Exporting reports whether an export is in flight.
func (m *Manager) Exporting() bool {
	return m.exporting.Load()
}
