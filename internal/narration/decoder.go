package narration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tinytales/internal/story"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

// Decoder turns a synthesized clip into PCM.
type Decoder interface {
	Decode(ctx context.Context, mimeType string, data []byte) (PCM, error)
}

// FFmpegDecoder decodes compressed audio (MP3, Ogg Opus) with ffmpeg.
type FFmpegDecoder struct {
	Binary     string
	SampleRate int
	WorkDir    string
	run        commandRunner
}

// NewFFmpegDecoder constructs a decoder that resamples to rate.
func NewFFmpegDecoder(binary string, rate int) *FFmpegDecoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegDecoder{Binary: binary, SampleRate: rate, run: defaultCommandRunner}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (d *FFmpegDecoder) WithCommandRunner(r commandRunner) {
	if d != nil && r != nil {
		d.run = r
	}
}

// Decode writes data to a scratch file and converts it to raw s16le mono.
func (d *FFmpegDecoder) Decode(ctx context.Context, mimeType string, data []byte) (PCM, error) {
	dir, err := os.MkdirTemp(d.WorkDir, "tinytales-audio-*")
	if err != nil {
		return PCM{}, fmt.Errorf("audio scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "clip"+extensionFor(mimeType))
	output := filepath.Join(dir, "clip.pcm")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return PCM{}, fmt.Errorf("write audio clip: %w", err)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1", "-ar", fmt.Sprintf("%d", d.SampleRate),
		output,
	}
	if err := d.run(ctx, d.Binary, args...); err != nil {
		return PCM{}, fmt.Errorf("ffmpeg decode: %w", err)
	}
	raw, err := os.ReadFile(output)
	if err != nil {
		return PCM{}, fmt.Errorf("read decoded audio: %w", err)
	}
	return DecodeS16LE(raw, d.SampleRate)
}

// AutoDecoder decodes WAV natively and hands everything else to Fallback.
type AutoDecoder struct {
	Fallback Decoder
}

// Decode dispatches on mimeType.
func (a AutoDecoder) Decode(ctx context.Context, mimeType string, data []byte) (PCM, error) {
	base := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return DecodeWAV(data)
	}
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return DecodeWAV(data)
	}
	if a.Fallback == nil {
		return PCM{}, fmt.Errorf("no decoder for %q", mimeType)
	}
	return a.Fallback.Decode(ctx, mimeType, data)
}

// DecodeDataURI decodes a data:audio URI with dec.
func DecodeDataURI(ctx context.Context, dec Decoder, uri string) (PCM, error) {
	mimeType, data, err := story.DecodeDataURI(uri)
	if err != nil {
		return PCM{}, err
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), "audio/") {
		return PCM{}, fmt.Errorf("expected audio data uri, got %q", mimeType)
	}
	if len(data) == 0 {
		return PCM{}, fmt.Errorf("audio data uri is empty")
	}
	return dec.Decode(ctx, mimeType, data)
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.Split(mimeType, ";")[0]) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg", "audio/opus":
		return ".ogg"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	default:
		return ".bin"
	}
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
