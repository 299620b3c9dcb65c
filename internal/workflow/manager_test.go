package workflow_test

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"

	"tinytales/internal/export"
	"tinytales/internal/illustration"
	"tinytales/internal/narrative"
	"tinytales/internal/notifications"
	"tinytales/internal/services"
	"tinytales/internal/services/genai"
	"tinytales/internal/store"
	"tinytales/internal/story"
	"tinytales/internal/testsupport"
	"tinytales/internal/workflow"
)

type fakeModel struct{ text string }

func (f fakeModel) GenerateStory(context.Context, string, string) (genai.StoryResult, error) {
	return genai.StoryResult{Story: f.text}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) list() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

type blockingExporter struct {
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (b *blockingExporter) Export(ctx context.Context, req export.Request) (export.Artifact, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if err := export.Gate(req.Policy, req.Format, req.Sentences); err != nil {
		return export.Artifact{}, err
	}
	if b.started != nil {
		close(b.started)
		<-b.release
	}
	req.Progress(1, "done")
	return export.Artifact{
		Result: export.Result{Format: req.Format, Extension: string(req.Format), Size: 10},
		Path:   "/tmp/tiny-cat-tale." + string(req.Format),
	}, nil
}

type harness struct {
	manager  *workflow.Manager
	store    *store.Store
	notifier *recordingNotifier
	source   *countingSource
	exporter *blockingExporter
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	uri   string
}

func (c *countingSource) Illustrate(context.Context, string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.uri, nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	source := &countingSource{uri: testsupport.PNGDataURI(t, 20, 10, color.White)}
	exporter := &blockingExporter{}
	mgr := workflow.NewManager(cfg, st,
		narrative.NewGenerator(fakeModel{text: "Tiny cats met. They danced! Who won?"}, nil),
		illustration.NewFetcher(source),
		workflow.WithNotifier(notifier),
		workflow.WithExporter(exporter),
	)
	return &harness{manager: mgr, store: st, notifier: notifier, source: source, exporter: exporter}
}

func TestGenerateSavesHistoryAndNotifies(t *testing.T) {
	h := newHarness(t)
	var events []workflow.Event
	h.manager.Subscribe(func(ev workflow.Event) { events = append(events, ev) })

	session, err := h.manager.Generate(context.Background(), workflow.GenerateRequest{Prompt: "dancing cats", Language: story.English})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(session.Sentences) != 3 || !session.Pending() {
		t.Fatalf("unexpected session %+v", session)
	}
	history, err := h.store.ListHistory(context.Background())
	if err != nil || len(history) != 1 || history[0].ID != session.StoryID {
		t.Fatalf("history not recorded: %+v %v", history, err)
	}
	if got := h.notifier.list(); len(got) != 1 || got[0] != notifications.EventStoryGenerated {
		t.Fatalf("unexpected notifications %v", got)
	}
	if len(events) == 0 || events[len(events)-1].Type != workflow.EventStory {
		t.Fatalf("expected story event, got %+v", events)
	}
}

func TestGenerateRefusedWhenDisabled(t *testing.T) {
	h := newHarness(t)
	if err := h.store.SetLimits(context.Background(), store.Limits{StoryGeneration: true}); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	_, err := h.manager.Generate(context.Background(), workflow.GenerateRequest{Prompt: "cats", Language: story.English})
	if !errors.Is(err, services.ErrDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestIllustrateFillsSessionAndReusesCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session, err := h.manager.Generate(ctx, workflow.GenerateRequest{Prompt: "cats", Language: story.English})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	illustrated, summary, err := h.manager.Illustrate(ctx, "")
	if err != nil {
		t.Fatalf("Illustrate: %v", err)
	}
	if summary.Resolved != 3 || !illustrated.Illustrated() {
		t.Fatalf("unexpected summary %+v session %+v", summary, illustrated)
	}

	reopened, cached, err := h.manager.Open(ctx, session.StoryID)
	if err != nil || !cached || !reopened.Illustrated() {
		t.Fatalf("expected cached session, got cached=%v err=%v", cached, err)
	}

	h.manager.Reset()
	reopened, cached, err = h.manager.Open(ctx, session.StoryID)
	if err != nil || cached {
		t.Fatalf("expected reload from history, got cached=%v err=%v", cached, err)
	}
	if !reopened.Pending() || len(reopened.Sentences) != 3 {
		t.Fatalf("reloaded session should wait for illustrations: %+v", reopened)
	}
}

func TestIllustrateLimitedByAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.manager.Generate(ctx, workflow.GenerateRequest{Prompt: "cats", Language: story.English}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := h.store.SetLimits(ctx, store.Limits{IllustrationGeneration: true}); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	session, summary, err := h.manager.Illustrate(ctx, "")
	if err != nil {
		t.Fatalf("Illustrate: %v", err)
	}
	if !session.Limited || summary.Failed != 3 || h.source.calls != 0 {
		t.Fatalf("expected limited session without calls, got %+v calls=%d", summary, h.source.calls)
	}
	for _, s := range session.Sentences {
		if s.ImageError != illustration.ReasonAdminLimited || !story.IsPlaceholder(s.ImageURL) {
			t.Fatalf("unexpected sentence %+v", s)
		}
	}
}

func TestCancelledRetryAfterLimitMarksStopped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.manager.Generate(ctx, workflow.GenerateRequest{Prompt: "cats", Language: story.English}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := h.store.SetLimits(ctx, store.Limits{IllustrationGeneration: true}); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	if _, _, err := h.manager.Illustrate(ctx, ""); err != nil {
		t.Fatalf("limited Illustrate: %v", err)
	}
	if err := h.store.SetLimits(ctx, store.Limits{}); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	defer cancel()
	unsubscribe := h.manager.Subscribe(func(ev workflow.Event) {
		if ev.Type == workflow.EventProgress && ev.Stage == "illustrate" {
			cancel()
		}
	})
	defer unsubscribe()
	session, summary, err := h.manager.Illustrate(cancelled, "")
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if summary.Stopped != 3 || h.source.calls != 0 {
		t.Fatalf("unexpected summary %+v calls=%d", summary, h.source.calls)
	}
	for i, s := range session.Sentences {
		if s.ImageError != story.StopReason || s.IsImageLoading {
			t.Fatalf("sentence %d not marked stopped: %+v", i, s)
		}
	}
}

func TestIllustrateSkipsResolvedSentences(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.manager.Generate(ctx, workflow.GenerateRequest{Prompt: "cats", Language: story.English}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, _, err := h.manager.Illustrate(ctx, ""); err != nil {
		t.Fatalf("Illustrate: %v", err)
	}
	if _, summary, err := h.manager.Illustrate(ctx, ""); err != nil || summary.Resolved != 3 {
		t.Fatalf("second Illustrate: summary %+v err %v", summary, err)
	}
	if h.source.calls != 3 {
		t.Fatalf("resolved sentences should not be requested again, got %d calls", h.source.calls)
	}
}

func TestExportRequiresSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Export(context.Background(), workflow.ExportRequest{Format: export.FormatPDF})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExportHonoursUserCapabilities(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.manager.Generate(ctx, workflow.GenerateRequest{Prompt: "cats", Language: story.English}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, _, err := h.manager.Illustrate(ctx, ""); err != nil {
		t.Fatalf("Illustrate: %v", err)
	}
	user, err := h.store.CreateUser(ctx, store.NewUser("Diana", "diana@example.com"))
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	access := user.Access
	access.CanExportGIF = false
	if _, err := h.store.UpdateAccess(ctx, user.ID, access); err != nil {
		t.Fatalf("UpdateAccess: %v", err)
	}
	_, err = h.manager.Export(ctx, workflow.ExportRequest{Format: export.FormatGIF, UserID: user.ID})
	if !errors.Is(err, services.ErrDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}
	if got := h.notifier.list(); containsEvent(got, notifications.EventExportFailed) {
		t.Fatalf("disabled exports should not notify failure: %v", got)
	}
	if _, err := h.manager.Export(ctx, workflow.ExportRequest{Format: export.FormatPDF, UserID: user.ID}); err != nil {
		t.Fatalf("pdf export: %v", err)
	}
	if !containsEvent(h.notifier.list(), notifications.EventExportFinished) {
		t.Fatal("expected export finished notification")
	}
	if status := h.manager.Status(); status.LastExport == nil || status.LastExport.Format != export.FormatPDF {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestConcurrentExportIsRefused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.manager.Generate(ctx, workflow.GenerateRequest{Prompt: "cats", Language: story.English}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, _, err := h.manager.Illustrate(ctx, ""); err != nil {
		t.Fatalf("Illustrate: %v", err)
	}
	h.exporter.started = make(chan struct{})
	h.exporter.release = make(chan struct{})

	firstErr := make(chan error, 1)
	go func() {
		_, err := h.manager.Export(ctx, workflow.ExportRequest{Format: export.FormatGIF})
		firstErr <- err
	}()
	select {
	case <-h.exporter.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first export never started")
	}
	if !h.manager.Exporting() {
		t.Fatal("expected manager to report a running export")
	}
	_, err := h.manager.Export(ctx, workflow.ExportRequest{Format: export.FormatPDF})
	if !errors.Is(err, workflow.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	close(h.exporter.release)
	if err := <-firstErr; err != nil {
		t.Fatalf("first export: %v", err)
	}
	h.exporter.mu.Lock()
	calls := h.exporter.calls
	h.exporter.mu.Unlock()
	if calls != 1 {
		t.Fatalf("pipeline should run once, ran %d times", calls)
	}
}

func containsEvent(events []notifications.Event, want notifications.Event) bool {
	for _, ev := range events {
		if ev == want {
			return true
		}
	}
	return false
}

