package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"tinytales/internal/config"
	"tinytales/internal/deps"
	"tinytales/internal/illustration"
	"tinytales/internal/logging"
	"tinytales/internal/notifications"
	"tinytales/internal/preflight"
	"tinytales/internal/services"
	"tinytales/internal/store"
	"tinytales/internal/workflow"
)

// Daemon owns the workflow manager, the API server and the instance lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	workflow *workflow.Manager
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	hub         *eventHub
	unsubscribe func()
	api         *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	illusMu     sync.Mutex
	illusCancel context.CancelFunc
	illusDone   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, wf *workflow.Manager) (*Daemon, error) {
	if cfg == nil || st == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		workflow: wf,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.hub = newEventHub(logger)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, runs preflight checks and starts the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tinytales daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.unsubscribe = d.workflow.Subscribe(d.hub.broadcast)
	go d.hub.run(d.ctx)

	if err := d.api.start(d.ctx); err != nil {
		d.unsubscribe()
		d.cancel()
		_ = d.lock.Unlock()
		d.ctx, d.cancel = nil, nil
		return err
	}

	go d.runPreflight(d.ctx)

	d.running.Store(true)
	d.logger.Info("tinytales daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop cancels in-flight work, stops the API and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.StopIllustrations()
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("tinytales daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the API listener address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// StartIllustrations runs illustration fetching for the active session in
// the background. Only one run may be in flight.
func (d *Daemon) StartIllustrations(userID string) error {
	d.illusMu.Lock()
	defer d.illusMu.Unlock()
	if d.illusCancel != nil {
		return fmt.Errorf("%w: illustrations are already being generated", workflow.ErrBusy)
	}
	if _, ok := d.workflow.Current(); !ok {
		return services.Wrap(services.ErrValidation, "daemon", "illustrate", "there is no story to illustrate", nil)
	}
	parent := d.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	d.illusCancel = cancel
	d.illusDone = done

	go func() {
		defer close(done)
		defer func() {
			d.illusMu.Lock()
			d.illusCancel = nil
			d.illusDone = nil
			d.illusMu.Unlock()
			cancel()
		}()
		_, summary, err := d.workflow.Illustrate(ctx, userID)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, services.ErrCancelled) {
			d.logger.Warn("illustration run failed", logging.Error(err))
			return
		}
		d.logger.Debug("illustration run finished", logging.Any("summary", summarize(summary)))
	}()
	return nil
}

// StopIllustrations cancels a running illustration run and waits for it.
// It reports whether a run was cancelled.
func (d *Daemon) StopIllustrations() bool {
	d.illusMu.Lock()
	cancel, done := d.illusCancel, d.illusDone
	d.illusMu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Dependencies: deps.Check(d.cfg),
	}
}

// runPreflight logs failed checks. The daemon keeps running either way.
func (d *Daemon) runPreflight(ctx context.Context) {
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Debug("preflight passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "features relying on this check fail until it passes"),
		)
	}
}

func summarize(s illustration.Summary) map[string]any {
	return map[string]any{
		"resolved":  s.Resolved,
		"failed":    s.Failed,
		"stopped":   s.Stopped,
		"cancelled": s.Cancelled,
	}
}
