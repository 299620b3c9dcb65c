package muxer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"tinytales/internal/narration"
	"tinytales/internal/services"
)

type fakeRecorder struct {
	mu        sync.Mutex
	state     State
	calls     []string
	leaveAt   int
	frames    int
	chunks    [][]byte
	stopErr   error
	startErr  error
	stopCalls int
}

func (f *fakeRecorder) Start(context.Context) error {
	f.record("start")
	if f.startErr != nil {
		return f.startErr
	}
	f.state = StateRecording
	return nil
}

func (f *fakeRecorder) State() State { return f.state }

func (f *fakeRecorder) MimeType() string { return "video/webm" }

func (f *fakeRecorder) WriteFrame(image.Image) error {
	f.frames++
	f.record("frame")
	if f.leaveAt > 0 && f.frames == f.leaveAt {
		f.state = StateInactive
	}
	return nil
}

func (f *fakeRecorder) WriteAudio([]int16) error { return nil }

func (f *fakeRecorder) Advance(d time.Duration) error {
	f.record("advance " + d.String())
	return nil
}

func (f *fakeRecorder) RequestData() error {
	f.record("request")
	return nil
}

func (f *fakeRecorder) Stop(context.Context) (Recording, error) {
	f.record("stop")
	f.stopCalls++
	f.state = StateInactive
	return Recording{MimeType: f.MimeType(), Chunks: f.chunks}, f.stopErr
}

func (f *fakeRecorder) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

type fakeNarrator struct {
	calls   []string
	outcome narration.Outcome
	err     error
}

func (n *fakeNarrator) Narrate(_ context.Context, text, tag string) (narration.Result, error) {
	n.calls = append(n.calls, tag+":"+text)
	if n.err != nil {
		return narration.Result{}, n.err
	}
	outcome := n.outcome
	if outcome == "" {
		outcome = narration.OutcomeNarrated
	}
	return narration.Result{Outcome: outcome, Duration: time.Second}, nil
}

func solidFrames(context.Context, int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	return img, nil
}

func testItems() []Item {
	return []Item{
		{Text: "A tiny cat wakes up.", LanguageTag: "en-US"},
		{Text: "It finds a leaf.", LanguageTag: "en-US"},
	}
}

func TestRecordSequence(t *testing.T) {
	rec := &fakeRecorder{chunks: [][]byte{[]byte("webm")}}
	narrator := &fakeNarrator{}
	var statuses []string
	var fractions []float64
	recording, err := Record(context.Background(), Session{
		Recorder: rec,
		Frames:   solidFrames,
		Narrator: narrator,
		Drain:    time.Second,
		Flush:    500 * time.Millisecond,
		Progress: func(f float64, status string) {
			fractions = append(fractions, f)
			statuses = append(statuses, status)
		},
	}, testItems())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if recording.Size() != 4 {
		t.Fatalf("unexpected recording size %d", recording.Size())
	}
	want := []string{"start", "frame", "frame", "advance 1s", "request", "advance 500ms", "stop"}
	if strings.Join(rec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	if len(narrator.calls) != 2 || narrator.calls[1] != "en-US:It finds a leaf." {
		t.Fatalf("unexpected narration calls %v", narrator.calls)
	}
	if statuses[0] != "Recording started. MimeType: video/webm" {
		t.Fatalf("first status = %q", statuses[0])
	}
	if last := statuses[len(statuses)-1]; last != "Frame 2/2 processed." {
		t.Fatalf("last status = %q", last)
	}
	if fractions[len(fractions)-1] != 1 {
		t.Fatalf("final fraction = %v", fractions[len(fractions)-1])
	}
}

func TestRecordReportsPause(t *testing.T) {
	rec := &fakeRecorder{chunks: [][]byte{[]byte("x")}}
	var statuses []string
	_, err := Record(context.Background(), Session{
		Recorder: rec,
		Frames:   solidFrames,
		Narrator: &fakeNarrator{outcome: narration.OutcomePaused},
		Progress: func(_ float64, s string) { statuses = append(statuses, s) },
	}, testItems()[:1])
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	found := false
	for _, s := range statuses {
		if strings.Contains(s, "Using 1s pause.") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected pause status, got %v", statuses)
	}
}

func TestRecordEndsEarlyWhenRecorderStops(t *testing.T) {
	rec := &fakeRecorder{leaveAt: 1, chunks: [][]byte{[]byte("partial")}}
	narrator := &fakeNarrator{}
	recording, err := Record(context.Background(), Session{
		Recorder: rec,
		Frames:   solidFrames,
		Narrator: narrator,
	}, testItems())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.frames != 1 {
		t.Fatalf("expected one frame before the early stop, got %d", rec.frames)
	}
	if string(recording.Bytes()) != "partial" {
		t.Fatalf("unexpected data %q", recording.Bytes())
	}
}

func TestRecordEmptyOutputs(t *testing.T) {
	cases := []struct {
		name   string
		chunks [][]byte
		want   string
	}{
		{name: "no chunks", want: "no data chunks recorded"},
		{name: "zero bytes", chunks: [][]byte{{}}, want: "generated video is 0 bytes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeRecorder{chunks: tc.chunks}
			_, err := Record(context.Background(), Session{
				Recorder: rec,
				Frames:   solidFrames,
				Narrator: &fakeNarrator{},
			}, testItems())
			if !errors.Is(err, services.ErrRecorder) {
				t.Fatalf("expected recorder error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q missing %q", err, tc.want)
			}
		})
	}
}

func TestRecordStartFailure(t *testing.T) {
	rec := &fakeRecorder{startErr: errors.New("no encoder")}
	_, err := Record(context.Background(), Session{Recorder: rec, Frames: solidFrames, Narrator: &fakeNarrator{}}, testItems())
	if !errors.Is(err, services.ErrRecorder) {
		t.Fatalf("expected recorder error, got %v", err)
	}
}

func TestRecordCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &fakeRecorder{chunks: [][]byte{[]byte("x")}}
	_, err := Record(ctx, Session{Recorder: rec, Frames: solidFrames, Narrator: &fakeNarrator{}}, testItems())
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if rec.stopCalls != 1 {
		t.Fatalf("recorder should be stopped once, got %d", rec.stopCalls)
	}
}

func TestTimelineRecorderEncodes(t *testing.T) {
	dir := t.TempDir()
	rec := NewTimelineRecorder(TimelineConfig{Width: 64, Height: 48, SampleRate: 1000, WorkDir: dir, Profile: Profiles[0]}, nil)
	var gotArgs []string
	var concat string
	rec.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != "ffmpeg" {
			t.Errorf("unexpected binary %q", name)
		}
		gotArgs = args
		for i, arg := range args {
			if arg == "concat" {
				data, err := os.ReadFile(args[i+4])
				if err != nil {
					return err
				}
				concat = string(data)
			}
		}
		return os.WriteFile(args[len(args)-1], []byte("encoded"), 0o600)
	})

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	frame, _ := solidFrames(ctx, 0)
	if err := rec.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := rec.WriteAudio(make([]int16, 1500)); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	if err := rec.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	before := rec.MediaTime()
	if err := rec.Advance(500 * time.Millisecond); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if rec.MediaTime() <= before {
		t.Fatal("media time should advance")
	}
	recording, err := rec.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if string(recording.Bytes()) != "encoded" || recording.MimeType != Profiles[0].MimeType {
		t.Fatalf("unexpected recording %+v", recording)
	}
	if recording.Duration != 2*time.Second {
		t.Fatalf("duration = %v", recording.Duration)
	}
	if !strings.Contains(concat, "duration 1.500\n") || !strings.Contains(concat, "duration 0.500\n") {
		t.Fatalf("unexpected concat list:\n%s", concat)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-c:v libvpx-vp9", "-c:a libopus", "-ar 1000", "scale=64:48"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if rec.State() != StateInactive {
		t.Fatalf("state after stop = %s", rec.State())
	}
	again, err := rec.Stop(ctx)
	if err != nil || again.Size() != recording.Size() {
		t.Fatalf("second Stop = %+v, %v", again, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("scratch dir should be removed, found %d entries", len(entries))
	}
}

func TestTimelineRecorderEmptyTimeline(t *testing.T) {
	rec := NewTimelineRecorder(TimelineConfig{WorkDir: t.TempDir()}, nil)
	rec.WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("ffmpeg should not run for an empty timeline")
		return nil
	})
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	recording, err := rec.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(recording.Chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(recording.Chunks))
	}
}

func TestTimelineRecorderFailureLeavesRecording(t *testing.T) {
	rec := NewTimelineRecorder(TimelineConfig{WorkDir: t.TempDir()}, nil)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.WriteFrame(image.NewRGBA(image.Rectangle{})); err == nil {
		t.Fatal("expected empty frame to fail")
	}
	if rec.State() != StateInactive {
		t.Fatal("failure should leave the recording state")
	}
	if _, err := rec.Stop(context.Background()); err == nil {
		t.Fatal("Stop should report the failure")
	}
}

func TestListEncodersAndSelectProfile(t *testing.T) {
	output := strings.Join([]string{
		"Encoders:",
		" V..... = Video",
		" ------",
		" V....D libx264              libx264 H.264",
		" A....D aac                  AAC (Advanced Audio Coding)",
		" V....D libvpx               libvpx VP8",
	}, "\n")
	encoders, err := ListEncoders(context.Background(), "ffmpeg", func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if args[len(args)-1] != "-encoders" {
			t.Errorf("unexpected args %v", args)
		}
		return []byte(output), nil
	})
	if err != nil {
		t.Fatalf("ListEncoders: %v", err)
	}
	if encoders["Video"] || !encoders["libx264"] || !encoders["aac"] {
		t.Fatalf("unexpected encoders %v", encoders)
	}
	if got := SelectProfile(encoders); got.Extension != "mp4" {
		t.Fatalf("SelectProfile = %+v", got)
	}
	if got := SelectProfile(nil); got.MimeType != "video/webm" || got.VideoCodec != "" {
		t.Fatalf("fallback profile = %+v", got)
	}
	encoders["libopus"] = true
	if got := SelectProfile(encoders); got.VideoCodec != "libvpx" {
		t.Fatalf("expected vp8 profile, got %+v", got)
	}
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"video/webm;codecs=vp9,opus": "webm",
		"video/mp4":                  "mp4",
		"garbage":                    "webm",
		"video/":                     "webm",
	}
	for mime, want := range cases {
		if got := ExtensionFor(mime); got != want {
			t.Fatalf("ExtensionFor(%q) = %q, want %q", mime, got, want)
		}
	}
}
