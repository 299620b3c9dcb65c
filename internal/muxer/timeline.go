package muxer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"tinytales/internal/logging"
	"tinytales/internal/narration"
)

const chunkSize = 256 << 10

type commandRunner func(ctx context.Context, name string, args ...string) error

// TimelineConfig sizes the encoded video.
type TimelineConfig struct {
	Binary     string
	Width      int
	Height     int
	FrameRate  int
	SampleRate int
	WorkDir    string
	Profile    Profile
}

type segment struct {
	path  string
	start int64
}

// TimelineRecorder is a Recorder backed by a scratch directory and ffmpeg.
type TimelineRecorder struct {
	cfg    TimelineConfig
	run    commandRunner
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	dir      string
	audio    *os.File
	buffered *bufio.Writer
	samples  int64
	segments []segment
	failure  error
	stopped  bool
	result   Recording
	stopErr  error
}

// NewTimelineRecorder constructs an inactive recorder.
func NewTimelineRecorder(cfg TimelineConfig, logger *slog.Logger) *TimelineRecorder {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 10
	}
	if cfg.Profile.MimeType == "" {
		cfg.Profile = Profiles[len(Profiles)-1]
	}
	return &TimelineRecorder{
		cfg:    cfg,
		run:    defaultCommandRunner,
		logger: logging.NewComponentLogger(logger, "recorder"),
		state:  StateInactive,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (r *TimelineRecorder) WithCommandRunner(run commandRunner) {
	if r != nil && run != nil {
		r.run = run
	}
}

func (r *TimelineRecorder) MimeType() string { return r.cfg.Profile.MimeType }

func (r *TimelineRecorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// MediaTime is the timeline length written so far.
func (r *TimelineRecorder) MediaTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mediaTimeLocked()
}

func (r *TimelineRecorder) mediaTimeLocked() time.Duration {
	return time.Duration(r.samples) * time.Second / time.Duration(r.cfg.SampleRate)
}

// Start opens the scratch directory.
func (r *TimelineRecorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRecording || r.stopped {
		return errors.New("recorder already started")
	}
	dir, err := os.MkdirTemp(r.cfg.WorkDir, "tinytales-video-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	audio, err := os.Create(filepath.Join(dir, "audio.pcm"))
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("create audio track: %w", err)
	}
	r.dir = dir
	r.audio = audio
	r.buffered = bufio.NewWriterSize(audio, 64<<10)
	r.state = StateRecording
	r.logger.Debug("recording started",
		logging.String("mime_type", r.cfg.Profile.MimeType),
		logging.String("dir", dir),
	)
	return nil
}

// WriteFrame holds img on screen from the current media time.
func (r *TimelineRecorder) WriteFrame(img image.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableLocked(); err != nil {
		return err
	}
	if img == nil || img.Bounds().Empty() {
		return r.failLocked(errors.New("empty frame"))
	}
	path := filepath.Join(r.dir, fmt.Sprintf("frame-%04d.png", len(r.segments)+1))
	file, err := os.Create(path)
	if err != nil {
		return r.failLocked(fmt.Errorf("create frame: %w", err))
	}
	if err := png.Encode(file, img); err != nil {
		_ = file.Close()
		return r.failLocked(fmt.Errorf("encode frame: %w", err))
	}
	if err := file.Close(); err != nil {
		return r.failLocked(fmt.Errorf("close frame: %w", err))
	}
	// A frame replacing one that never got screen time takes its slot.
	if n := len(r.segments); n > 0 && r.segments[n-1].start == r.samples {
		r.segments[n-1].path = path
		return nil
	}
	r.segments = append(r.segments, segment{path: path, start: r.samples})
	return nil
}

// WriteAudio appends samples to the audio track and advances media time.
func (r *TimelineRecorder) WriteAudio(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableLocked(); err != nil {
		return err
	}
	if _, err := r.buffered.Write(narration.EncodeS16LE(samples)); err != nil {
		return r.failLocked(fmt.Errorf("write audio: %w", err))
	}
	r.samples += int64(len(samples))
	return nil
}

// Advance writes d of silence, holding the current frame.
func (r *TimelineRecorder) Advance(d time.Duration) error {
	return r.WriteAudio(narration.Silence(r.cfg.SampleRate, d).Samples)
}

// RequestData flushes buffered audio to disk.
func (r *TimelineRecorder) RequestData() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writableLocked(); err != nil {
		return err
	}
	if err := r.buffered.Flush(); err != nil {
		return r.failLocked(fmt.Errorf("flush audio: %w", err))
	}
	return nil
}

// Stop encodes the timeline and returns it as chunks. Later calls return the
// same result.
func (r *TimelineRecorder) Stop(ctx context.Context) (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return r.result, r.stopErr
	}
	r.stopped = true
	r.state = StateInactive
	r.result, r.stopErr = r.encodeLocked(ctx)
	if r.dir != "" {
		_ = os.RemoveAll(r.dir)
	}
	return r.result, r.stopErr
}

func (r *TimelineRecorder) encodeLocked(ctx context.Context) (Recording, error) {
	rec := Recording{MimeType: r.cfg.Profile.MimeType, Duration: r.mediaTimeLocked()}
	if r.audio != nil {
		flushErr := r.buffered.Flush()
		closeErr := r.audio.Close()
		if r.failure == nil {
			r.failure = errors.Join(flushErr, closeErr)
		}
	}
	if r.failure != nil {
		return rec, r.failure
	}
	if len(r.segments) == 0 || r.samples == 0 {
		return rec, nil
	}
	listPath := filepath.Join(r.dir, "frames.txt")
	if err := os.WriteFile(listPath, []byte(r.concatListLocked()), 0o600); err != nil {
		return rec, fmt.Errorf("write frame list: %w", err)
	}
	output := filepath.Join(r.dir, "out."+r.cfg.Profile.Extension)
	args := r.encodeArgs(listPath, filepath.Join(r.dir, "audio.pcm"), output)
	r.logger.Debug("encoding recording",
		logging.Int("frames", len(r.segments)),
		logging.Duration("media_time", rec.Duration),
		logging.String("mime_type", rec.MimeType),
	)
	if err := r.run(ctx, r.cfg.Binary, args...); err != nil {
		return rec, fmt.Errorf("ffmpeg encode: %w", err)
	}
	chunks, err := readChunks(output)
	if err != nil {
		return rec, err
	}
	rec.Chunks = chunks
	return rec, nil
}

// concatListLocked renders an ffmpeg concat script. The final file is listed
// twice so its duration is honoured.
func (r *TimelineRecorder) concatListLocked() string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for i, seg := range r.segments {
		end := r.samples
		if i+1 < len(r.segments) {
			end = r.segments[i+1].start
		}
		seconds := float64(end-seg.start) / float64(r.cfg.SampleRate)
		fmt.Fprintf(&b, "file '%s'\nduration %s\n", escapeConcatPath(seg.path), strconv.FormatFloat(seconds, 'f', 3, 64))
	}
	last := r.segments[len(r.segments)-1]
	fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(last.path))
	return b.String()
}

func (r *TimelineRecorder) encodeArgs(list, audio, output string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", list,
		"-f", "s16le", "-ar", strconv.Itoa(r.cfg.SampleRate), "-ac", "1", "-i", audio,
		"-map", "0:v:0", "-map", "1:a:0",
		"-vf", fmt.Sprintf("scale=%d:%d,format=yuv420p", r.cfg.Width, r.cfg.Height),
		"-r", strconv.Itoa(r.cfg.FrameRate),
	}
	if r.cfg.Profile.VideoCodec != "" {
		args = append(args, "-c:v", r.cfg.Profile.VideoCodec)
	}
	if r.cfg.Profile.AudioCodec != "" {
		args = append(args, "-c:a", r.cfg.Profile.AudioCodec)
	}
	return append(args, "-f", r.cfg.Profile.Format, output)
}

func (r *TimelineRecorder) writableLocked() error {
	if r.state != StateRecording {
		if r.failure != nil {
			return r.failure
		}
		return errors.New("recorder is not recording")
	}
	return nil
}

// failLocked moves the recorder out of the recording state.
func (r *TimelineRecorder) failLocked(err error) error {
	if r.failure == nil {
		r.failure = err
	}
	r.state = StateInactive
	r.logger.Error("recorder failed", logging.Error(err))
	return err
}

func readChunks(path string) ([][]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open encoded video: %w", err)
	}
	defer file.Close()
	var chunks [][]byte
	for {
		buf := make([]byte, chunkSize)
		n, err := io.ReadFull(file, buf)
		if n > 0 {
			chunks = append(chunks, buf[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return chunks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read encoded video: %w", err)
		}
	}
}

func escapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
