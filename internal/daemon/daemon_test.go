package daemon_test

import (
	"context"
	"image/color"
	"net/http"
	"testing"

	"tinytales/internal/daemon"
	"tinytales/internal/illustration"
	"tinytales/internal/testsupport"
	"tinytales/internal/workflow"
)

type noopSource struct{ uri string }

func (n noopSource) Illustrate(context.Context, string) (string, error) { return n.uri, nil }

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.GenAI.APIKey = ""
	st := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, st, nil, illustration.NewFetcher(noopSource{uri: testsupport.PNGDataURI(t, 4, 4, color.White)}))
	d, err := daemon.New(cfg, st, nil, mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}

	resp, err := http.Get("http://" + d.Address() + "/api/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestStartIllustrationsNeedsSession(t *testing.T) {
	d := newDaemon(t)
	if err := d.StartIllustrations(""); err == nil {
		t.Fatal("expected error without an active story")
	}
	if d.StopIllustrations() {
		t.Fatal("nothing should have been running")
	}
}
