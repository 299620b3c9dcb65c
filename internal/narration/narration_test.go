package narration_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"tinytales/internal/narration"
	"tinytales/internal/services"
	"tinytales/internal/story"
)

type memorySink struct {
	mu      sync.Mutex
	samples []int16
	block   chan struct{}
}

func (m *memorySink) WriteAudio(samples []int16) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, samples...)
	return nil
}

func (m *memorySink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

type fakeSpeech struct {
	uri string
	err error
}

func (f fakeSpeech) Synthesize(ctx context.Context, text, tag string) (string, error) {
	return f.uri, f.err
}

func tone(rate int, d time.Duration) narration.PCM {
	p := narration.Silence(rate, d)
	for i := range p.Samples {
		p.Samples[i] = int16(i % 1000)
	}
	return p
}

func wavURI(p narration.PCM) string {
	return story.EncodeDataURI("audio/wav", narration.EncodeWAV(p))
}

func TestWAVRoundTripAndResample(t *testing.T) {
	clip := tone(48000, 500*time.Millisecond)
	decoded, err := narration.DecodeWAV(narration.EncodeWAV(clip))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if decoded.SampleRate != 48000 || len(decoded.Samples) != len(clip.Samples) {
		t.Fatalf("unexpected decode %d Hz %d samples", decoded.SampleRate, len(decoded.Samples))
	}
	resampled := decoded.Resample(24000)
	if resampled.SampleRate != 24000 || len(resampled.Samples) != 12000 {
		t.Fatalf("unexpected resample %d Hz %d samples", resampled.SampleRate, len(resampled.Samples))
	}
	if resampled.Duration() != 500*time.Millisecond {
		t.Fatalf("unexpected duration %v", resampled.Duration())
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := narration.DecodeWAV([]byte("not a wav at all")); err == nil {
		t.Fatal("expected error")
	}
}

func TestNarrateWritesClipIntoSink(t *testing.T) {
	sink := &memorySink{}
	graph := narration.NewGraph(sink, 24000)
	synth := narration.NewSynchronizer(fakeSpeech{uri: wavURI(tone(24000, time.Second))}, narration.AutoDecoder{}, graph)

	result, err := synth.Narrate(context.Background(), "Hello cats.", "en-US")
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if result.Outcome != narration.OutcomeNarrated || result.Duration != time.Second {
		t.Fatalf("unexpected result %+v", result)
	}
	if sink.count() != 24000 {
		t.Fatalf("expected 24000 samples, got %d", sink.count())
	}
}

func TestNarrateFallsBackToSilentPause(t *testing.T) {
	cases := []struct {
		name   string
		speech fakeSpeech
	}{
		{name: "synthesis error", speech: fakeSpeech{err: errors.New("tts down")}},
		{name: "no audio", speech: fakeSpeech{}},
		{name: "undecodable", speech: fakeSpeech{uri: "data:audio/wav;base64,AAAA"}},
		{name: "not audio", speech: fakeSpeech{uri: "data:text/plain;base64,aGk="}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &memorySink{}
			graph := narration.NewGraph(sink, 24000)
			s := narration.NewSynchronizer(tc.speech, narration.AutoDecoder{}, graph)
			result, err := s.Narrate(context.Background(), "Hello.", "en-US")
			if err != nil {
				t.Fatalf("Narrate: %v", err)
			}
			if result.Outcome != narration.OutcomePaused || result.Cause == nil {
				t.Fatalf("unexpected result %+v", result)
			}
			if sink.count() != 24000 {
				t.Fatalf("expected 1s of silence, got %d samples", sink.count())
			}
		})
	}
}

func TestNarrateTimesOutStalledPlayback(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	defer close(sink.block)
	graph := narration.NewGraph(sink, 24000)
	var requested time.Duration
	fired := make(chan time.Time, 1)
	s := narration.NewSynchronizer(
		fakeSpeech{uri: wavURI(tone(24000, 2*time.Second))},
		narration.AutoDecoder{},
		graph,
		narration.WithClock(func(d time.Duration) <-chan time.Time {
			requested = d
			fired <- time.Time{}
			return fired
		}),
	)
	result, err := s.Narrate(context.Background(), "Stuck.", "en-US")
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if result.Outcome != narration.OutcomeTimedOut {
		t.Fatalf("expected timeout, got %+v", result)
	}
	if requested != 5*time.Second {
		t.Fatalf("expected 5s guard for a 2s clip, got %v", requested)
	}
}

func TestTimingTimeout(t *testing.T) {
	timing := narration.DefaultTiming()
	if got := timing.Timeout(time.Second); got != 5*time.Second {
		t.Fatalf("short clip: got %v", got)
	}
	if got := timing.Timeout(10 * time.Second); got != 11500*time.Millisecond {
		t.Fatalf("long clip: got %v", got)
	}
}

func TestGraphRefusesSecondSource(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	graph := narration.NewGraph(sink, 24000)
	first, err := graph.Play(tone(24000, time.Second))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if _, err := graph.Play(tone(24000, time.Second)); !errors.Is(err, narration.ErrGraphBusy) {
		t.Fatalf("expected busy graph, got %v", err)
	}
	first.Stop()
	close(sink.block)
	<-first.Ended()
	if _, err := graph.Play(narration.PCM{SampleRate: 24000}); err != nil {
		t.Fatalf("graph should be free after stop: %v", err)
	}
}

func TestNarrateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := narration.NewSynchronizer(fakeSpeech{}, narration.AutoDecoder{}, narration.NewGraph(&memorySink{}, 24000))
	if _, err := s.Narrate(ctx, "x", "en-US"); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestFFmpegDecoderUsesRunner(t *testing.T) {
	dec := narration.NewFFmpegDecoder("ffmpeg", 24000)
	dec.WorkDir = t.TempDir()
	var gotArgs []string
	dec.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		out := args[len(args)-1]
		return os.WriteFile(out, narration.EncodeS16LE(make([]int16, 2400)), 0o600)
	})
	clip, err := narration.AutoDecoder{Fallback: dec}.Decode(context.Background(), "audio/mpeg", []byte("ID3fake"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if clip.SampleRate != 24000 || len(clip.Samples) != 2400 {
		t.Fatalf("unexpected clip %d Hz %d samples", clip.SampleRate, len(clip.Samples))
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "-ar 24000") || !strings.Contains(joined, ".mp3") {
		t.Fatalf("unexpected args %v", gotArgs)
	}
}
