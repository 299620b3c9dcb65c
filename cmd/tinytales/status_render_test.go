package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"tinytales/internal/deps"
	"tinytales/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Daemon:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Daemon", statusOK, "Running", true)
	if !strings.HasPrefix(got, "\x1b[32m") {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, "\x1b[0m") {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Optional: true, Detail: "binary \"ffmpeg\" not found"},
		{Name: "Fonts", Command: "fc-list", Available: true},
		{Name: "Required", Available: false},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[WARN]") || !strings.Contains(lines[0], "video export unavailable") {
		t.Fatalf("optional dependency should warn, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (command: fc-list)") {
		t.Fatalf("expected ready detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[ERROR] not available") {
		t.Fatalf("expected error detail, got %q", lines[2])
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "GenAI", Passed: false, Detail: "API key missing"},
		{Name: "Data directory", Passed: true, Detail: "/tmp/data"},
	}, false)
	if !strings.Contains(lines[0], "[WARN] API key missing") || !strings.Contains(lines[1], "[OK] /tmp/data") {
		t.Fatalf("unexpected preflight lines %q", lines)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestProgressReporterPrintsEachStatusOnce(t *testing.T) {
	var buf bytes.Buffer
	reporter := newProgressReporter(&buf, "Illustrating", false)
	reporter.update(0.1, "Generating illustration 1 of 3")
	reporter.update(0.2, "Generating illustration 1 of 3")
	reporter.update(0.5, "")
	reporter.update(0.6, "Generating illustration 2 of 3")
	reporter.finish()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 status lines, got %q", buf.String())
	}
}

func TestProgressReporterQuiet(t *testing.T) {
	var buf bytes.Buffer
	reporter := newProgressReporter(&buf, "Exporting", true)
	reporter.update(1, "done")
	reporter.finish()
	if buf.Len() != 0 {
		t.Fatalf("quiet reporter wrote %q", buf.String())
	}
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{"": "", "abc": "****", "supersecret": "****cret"}
	for in, want := range cases {
		if got := maskSecret(in); got != want {
			t.Fatalf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
