package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tinytales/internal/admin"
	"tinytales/internal/compositor"
	"tinytales/internal/muxer"
	"tinytales/internal/narration"
	"tinytales/internal/services"
	"tinytales/internal/store"
	"tinytales/internal/story"
	"tinytales/internal/testsupport"
)

type stubSurface struct {
	captures []image.Image
	errs     map[int]error
	missing  map[int]bool
}

func (s *stubSurface) Len() int { return len(s.captures) }

func (s *stubSurface) Capture(_ context.Context, index int) (image.Image, error) {
	if err := s.errs[index]; err != nil {
		return nil, err
	}
	return s.captures[index], nil
}

func (s *stubSurface) Element(index int) compositor.Node {
	if s.missing[index] {
		return nil
	}
	return &compositor.Element{Fill: color.White}
}

func (s *stubSurface) Backdrop() color.Color { return color.White }

func stubFactory(s *stubSurface) surfaceFactory {
	return func(sentences []story.Sentence, _ compositor.CardOptions) (compositor.Surface, error) {
		if len(s.captures) == 0 {
			for range sentences {
				s.captures = append(s.captures, solid(40, 30))
			}
		}
		return s, nil
	}
}

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 180, G: 90, B: 30, A: 255}), image.Point{}, draw.Src)
	return img
}

func settled(texts ...string) []story.Sentence {
	sentences := story.NewSentences(texts, story.English)
	for i := range sentences {
		sentences[i].Resolve("data:image/png;base64,AAAA")
	}
	return sentences
}

func TestGate(t *testing.T) {
	loading := story.NewSentences([]string{"A cat naps."}, story.English)
	placeholder := story.NewSentences([]string{"A cat naps."}, story.English)
	placeholder[0].ImageURL = "https://placehold.co/600x400"

	tests := []struct {
		name      string
		policy    Policy
		sentences []story.Sentence
		want      error
	}{
		{"ready", admin.Access{}, settled("One."), nil},
		{"no story", admin.Access{}, nil, services.ErrValidation},
		{"loading", admin.Access{}, loading, services.ErrValidation},
		{"placeholder is not pending", admin.Access{}, placeholder, nil},
		{"disabled globally", admin.Access{Limits: store.Limits{GIFExport: true}}, settled("One."), services.ErrDisabled},
		{"nil policy", nil, settled("One."), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Gate(tt.policy, FormatGIF, tt.sentences)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseFormatAndFileName(t *testing.T) {
	f, err := ParseFormat(" GIF ")
	if err != nil || f != FormatGIF {
		t.Fatalf("ParseFormat: %v %v", f, err)
	}
	if _, err := ParseFormat("mp3"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := FileName(".webm"); got != "tiny-cat-tale.webm" {
		t.Fatalf("unexpected file name %q", got)
	}
	if FormatVideo.Feature() != admin.FeatureVideo {
		t.Fatalf("video maps to %v", FormatVideo.Feature())
	}
}

func TestPDFAddsPlaceholderPages(t *testing.T) {
	surface := &stubSurface{
		captures: []image.Image{solid(40, 30), solid(40, 30), solid(40, 30)},
		errs:     map[int]error{1: errors.New("boom")},
		missing:  map[int]bool{2: true},
	}
	var progress []string
	var buf bytes.Buffer
	result, err := writePDF(context.Background(), &buf, settled("One.", "Two.", "Three."), PDFOptions{
		Progress: func(_ float64, status string) { progress = append(progress, status) },
	}, stubFactory(surface))
	if err != nil {
		t.Fatalf("writePDF: %v", err)
	}
	if result.Frames != 1 || result.Failed != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a pdf")
	}
	if result.Size != int64(buf.Len()) {
		t.Fatalf("size %d, wrote %d", result.Size, buf.Len())
	}
	if len(progress) != 3 || progress[2] != "Page 3/3 added." {
		t.Fatalf("unexpected progress %v", progress)
	}
	if result.FileName() != "tiny-cat-tale.pdf" {
		t.Fatalf("unexpected file name %q", result.FileName())
	}
}

func TestPDFKeepsUnillustratedSentences(t *testing.T) {
	sentences := story.NewSentences([]string{"One.", "Two."}, story.English)
	sentences[0].Fail("quota")
	surface := &stubSurface{}
	var buf bytes.Buffer
	result, err := writePDF(context.Background(), &buf, sentences, PDFOptions{}, stubFactory(surface))
	if err != nil {
		t.Fatalf("writePDF: %v", err)
	}
	if result.Frames != 2 {
		t.Fatalf("expected a page per sentence, got %+v", result)
	}
}

func TestPDFCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := writePDF(ctx, &bytes.Buffer{}, settled("One."), PDFOptions{}, stubFactory(&stubSurface{}))
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestGIFSkipsInvalidAndFailedFrames(t *testing.T) {
	sentences := settled("One.", "Two.", "Three.")
	sentences = append(sentences, story.Sentence{Text: "Loading.", IsImageLoading: true})
	surface := &stubSurface{
		captures: []image.Image{solid(40, 30), solid(40, 30), image.NewRGBA(image.Rect(0, 0, 0, 0))},
		errs:     map[int]error{1: errors.New("boom")},
	}
	var buf bytes.Buffer
	result, err := writeGIF(context.Background(), &buf, sentences, GIFOptions{Width: 60, Height: 40}, stubFactory(surface))
	if err != nil {
		t.Fatalf("writeGIF: %v", err)
	}
	if result.Frames != 1 || result.Failed != 1 || result.Skipped != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	anim, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(anim.Image) != 1 || anim.Delay[0] != 200 {
		t.Fatalf("unexpected frames %d delay %v", len(anim.Image), anim.Delay)
	}
	if b := anim.Image[0].Bounds(); b.Dx() != 60 || b.Dy() != 40 {
		t.Fatalf("unexpected frame size %v", b)
	}
}

func TestGIFWithoutValidImages(t *testing.T) {
	sentences := story.NewSentences([]string{"One."}, story.English)
	_, err := writeGIF(context.Background(), &bytes.Buffer{}, sentences, GIFOptions{}, stubFactory(&stubSurface{}))
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "no valid images") {
		t.Fatalf("expected no valid images error, got %v", err)
	}

	failing := &stubSurface{captures: []image.Image{nil}, errs: map[int]error{0: errors.New("boom")}}
	_, err = writeGIF(context.Background(), &bytes.Buffer{}, settled("One."), GIFOptions{}, stubFactory(failing))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected no valid images error, got %v", err)
	}
}

type stubRecorder struct {
	state  muxer.State
	frames int
}

func (r *stubRecorder) Start(context.Context) error {
	r.state = muxer.StateRecording
	return nil
}

func (r *stubRecorder) State() muxer.State { return r.state }

func (r *stubRecorder) MimeType() string { return "video/webm" }

func (r *stubRecorder) WriteFrame(image.Image) error {
	r.frames++
	return nil
}

func (r *stubRecorder) WriteAudio([]int16) error { return nil }

func (r *stubRecorder) Advance(time.Duration) error { return nil }

func (r *stubRecorder) RequestData() error { return nil }

func (r *stubRecorder) Stop(context.Context) (muxer.Recording, error) {
	r.state = muxer.StateInactive
	return muxer.Recording{MimeType: "video/webm", Chunks: [][]byte{[]byte("web"), []byte("m")}, Duration: time.Second}, nil
}

type stubNarrator struct {
	texts []string
}

func (n *stubNarrator) Narrate(_ context.Context, text, _ string) (narration.Result, error) {
	n.texts = append(n.texts, text)
	return narration.Result{Outcome: narration.OutcomeNarrated}, nil
}

func TestVideoRecordsValidSentences(t *testing.T) {
	sentences := settled("One.", "Two.")
	sentences = append(sentences, story.Sentence{Text: "Broken.", ImageError: "quota"})
	rec := &stubRecorder{}
	narrator := &stubNarrator{}
	var buf bytes.Buffer
	result, err := writeVideo(context.Background(), &buf, sentences, VideoOptions{
		Width:    60,
		Height:   40,
		Recorder: rec,
		Narrator: narrator,
	}, stubFactory(&stubSurface{}))
	if err != nil {
		t.Fatalf("writeVideo: %v", err)
	}
	if buf.String() != "webm" || result.Size != 4 {
		t.Fatalf("unexpected output %q size %d", buf.String(), result.Size)
	}
	if result.Extension != "webm" || result.Skipped != 1 || result.Frames != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if strings.Join(narrator.texts, "|") != "One.|Two." {
		t.Fatalf("unexpected narration %v", narrator.texts)
	}
	if rec.frames != 2 {
		t.Fatalf("expected 2 frames, got %d", rec.frames)
	}
}

func TestVideoWithoutIllustrations(t *testing.T) {
	sentences := story.NewSentences([]string{"One."}, story.English)
	_, err := writeVideo(context.Background(), &bytes.Buffer{}, sentences, VideoOptions{
		Recorder: &stubRecorder{},
		Narrator: &stubNarrator{},
	}, stubFactory(&stubSurface{}))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExporterWritesPDF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exp, err := NewExporter(cfg, nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	art, err := exp.Export(context.Background(), Request{
		Format:    FormatPDF,
		Sentences: testsupport.IllustratedSentences(t, "A cat naps.", "A cat wakes."),
		Policy:    admin.Access{},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if art.Path != filepath.Join(cfg.Paths.ExportDir, "tiny-cat-tale.pdf") {
		t.Fatalf("unexpected path %q", art.Path)
	}
	info, err := os.Stat(art.Path)
	if err != nil {
		t.Fatalf("stat export: %v", err)
	}
	if info.Size() != art.Size || art.Frames != 2 {
		t.Fatalf("unexpected artifact %+v (file %d bytes)", art, info.Size())
	}
	entries, _ := os.ReadDir(cfg.Paths.ExportDir)
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact, found %d entries", len(entries))
	}
}

func TestExporterRefusesDisabledFormat(t *testing.T) {
	exp, err := NewExporter(testsupport.NewConfig(t), nil)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	_, err = exp.Export(context.Background(), Request{
		Format:    FormatGIF,
		Sentences: testsupport.IllustratedSentences(t, "A cat naps."),
		Policy:    admin.Access{Limits: store.Limits{GIFExport: true}},
	})
	if !errors.Is(err, services.ErrDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestExporterVideoNeedsSpeech(t *testing.T) {
	exp, err := NewExporter(testsupport.NewConfig(t), nil,
		WithProfile(muxer.Profile{MimeType: "video/webm"}),
		WithRecorderFactory(func(muxer.Profile) muxer.Recorder { return &stubRecorder{} }),
	)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	_, err = exp.Export(context.Background(), Request{
		Format:    FormatVideo,
		Sentences: testsupport.IllustratedSentences(t, "A cat naps."),
	})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewExporterRejectsBadColour(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Export.CardColor = "#zzzzzz"
	if _, err := NewExporter(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
