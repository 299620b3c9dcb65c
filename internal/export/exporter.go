package export

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"time"

	"tinytales/internal/compositor"
	"tinytales/internal/config"
	"tinytales/internal/fileutil"
	"tinytales/internal/logging"
	"tinytales/internal/muxer"
	"tinytales/internal/narration"
	"tinytales/internal/services"
	"tinytales/internal/story"
)

// Artifact is an export written to disk.
type Artifact struct {
	Result
	Path string
}

// Request describes one export run.
type Request struct {
	Format    Format
	Sentences []story.Sentence
	Policy    Policy
	Prepare   compositor.PrepareFunc
	Progress  ProgressFunc
}

// RecorderFactory builds the recorder for one video export.
type RecorderFactory func(profile muxer.Profile) muxer.Recorder

// Exporter runs exports with settings taken from the configuration and
// writes artifacts to the export directory.
type Exporter struct {
	cfg         *config.Config
	speech      narration.Speech
	decoder     narration.Decoder
	card        compositor.CardOptions
	newRecorder RecorderFactory
	logger      *slog.Logger

	profileOnce sync.Once
	profile     muxer.Profile
	profileErr  error
	probe       func(ctx context.Context) (muxer.Profile, error)
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// WithRecorderFactory replaces the ffmpeg-backed recorder.
func WithRecorderFactory(fn RecorderFactory) Option {
	return func(e *Exporter) { e.newRecorder = fn }
}

// WithDecoder replaces the narration decoder.
func WithDecoder(dec narration.Decoder) Option {
	return func(e *Exporter) { e.decoder = dec }
}

// WithProfile fixes the container profile instead of probing ffmpeg.
func WithProfile(p muxer.Profile) Option {
	return func(e *Exporter) {
		e.probe = func(context.Context) (muxer.Profile, error) { return p, nil }
	}
}

// NewExporter loads the card font and colours from cfg. speech may be nil
// when video export is not needed.
func NewExporter(cfg *config.Config, speech narration.Speech, opts ...Option) (*Exporter, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "new", "configuration is required", nil)
	}
	typeface, err := compositor.LoadTypeface(cfg.Export.FontPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "new", "load export font", err)
	}
	backdrop, err := parseColor(cfg.Export.BackdropColor, color.RGBA{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF})
	if err != nil {
		return nil, err
	}
	cardFill, err := parseColor(cfg.Export.CardColor, color.White)
	if err != nil {
		return nil, err
	}
	e := &Exporter{
		cfg:    cfg,
		speech: speech,
		card: compositor.CardOptions{
			Width:         cfg.Export.Width,
			CardColor:     cardFill,
			BackdropColor: backdrop,
			Typeface:      typeface,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "export")
	if e.decoder == nil {
		e.decoder = narration.AutoDecoder{Fallback: narration.NewFFmpegDecoder(cfg.FFmpegBinary(), cfg.Speech.SampleRateHz)}
	}
	if e.newRecorder == nil {
		e.newRecorder = e.timelineRecorder
	}
	if e.probe == nil {
		e.probe = e.probeProfile
	}
	return e, nil
}

func parseColor(value string, fallback color.Color) (color.Color, error) {
	if value == "" {
		return fallback, nil
	}
	c, err := compositor.ParseHex(value)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "export", "new", "parse colour", err)
	}
	return c, nil
}

func (e *Exporter) timelineRecorder(profile muxer.Profile) muxer.Recorder {
	return muxer.NewTimelineRecorder(muxer.TimelineConfig{
		Binary:     e.cfg.FFmpegBinary(),
		Width:      e.cfg.Export.Width,
		Height:     e.cfg.Export.Height,
		FrameRate:  e.cfg.Export.FrameRate,
		SampleRate: e.cfg.Speech.SampleRateHz,
		Profile:    profile,
	}, e.logger)
}

func (e *Exporter) probeProfile(ctx context.Context) (muxer.Profile, error) {
	encoders, err := muxer.ListEncoders(ctx, e.cfg.FFmpegBinary(), nil)
	if err != nil {
		return muxer.Profile{}, services.Wrap(services.ErrExternalTool, "export", "probe", "ffmpeg is required for video export", err)
	}
	return muxer.SelectProfile(encoders), nil
}

// Profile returns the container profile video exports use, probing ffmpeg
// once.
func (e *Exporter) Profile(ctx context.Context) (muxer.Profile, error) {
	e.profileOnce.Do(func() {
		e.profile, e.profileErr = e.probe(ctx)
	})
	return e.profile, e.profileErr
}

// Export gates, renders and writes one artifact. The file replaces any
// earlier export of the same kind.
func (e *Exporter) Export(ctx context.Context, req Request) (Artifact, error) {
	if err := Gate(req.Policy, req.Format, req.Sentences); err != nil {
		return Artifact{}, err
	}
	pending, err := fileutil.CreatePending(e.cfg.Paths.ExportDir)
	if err != nil {
		return Artifact{}, fmt.Errorf("create export file: %w", err)
	}
	defer func() { _ = pending.Discard() }()

	started := time.Now()
	result, err := e.render(ctx, pending, req)
	if err != nil {
		return Artifact{Result: result}, err
	}
	path, err := pending.Commit(result.FileName())
	if err != nil {
		return Artifact{Result: result}, fmt.Errorf("finalize export: %w", err)
	}
	e.logger.Info("export written",
		logging.String("format", string(req.Format)),
		logging.String("path", path),
		logging.Int64("bytes", result.Size),
		logging.Duration("elapsed", time.Since(started)),
	)
	return Artifact{Result: result, Path: path}, nil
}

func (e *Exporter) render(ctx context.Context, w io.Writer, req Request) (Result, error) {
	switch req.Format {
	case FormatPDF:
		return PDF(ctx, w, req.Sentences, PDFOptions{
			Margin:   float64(e.cfg.Export.PDFMargin),
			Card:     e.card,
			Prepare:  req.Prepare,
			Progress: req.Progress,
			Logger:   e.logger,
		})
	case FormatGIF:
		return GIF(ctx, w, req.Sentences, GIFOptions{
			Width:      e.cfg.Export.Width,
			Height:     e.cfg.Export.Height,
			FrameDelay: config.Millis(e.cfg.Export.GIFFrameDelayMS),
			Card:       e.card,
			Prepare:    req.Prepare,
			Progress:   req.Progress,
			Logger:     e.logger,
		})
	case FormatVideo:
		return e.video(ctx, w, req)
	}
	return Result{}, services.Wrap(services.ErrValidation, "export", "render", fmt.Sprintf("unknown export format %q", req.Format), nil)
}

func (e *Exporter) video(ctx context.Context, w io.Writer, req Request) (Result, error) {
	if e.speech == nil {
		return Result{Format: FormatVideo}, services.Wrap(services.ErrConfiguration, "export", "video", "speech synthesis is not configured", nil)
	}
	profile, err := e.Profile(ctx)
	if err != nil {
		return Result{Format: FormatVideo}, err
	}
	rec := e.newRecorder(profile)
	graph := narration.NewGraph(rec, e.cfg.Speech.SampleRateHz)
	narrator := narration.NewSynchronizer(e.speech, e.decoder, graph,
		narration.WithTiming(narration.Timing{
			SilentPause:   config.Millis(e.cfg.Export.SilentPauseMS),
			TimeoutFloor:  config.Millis(e.cfg.Export.PlaybackFloorMS),
			TimeoutMargin: config.Millis(e.cfg.Export.PlaybackMarginMS),
		}),
		narration.WithLogger(e.logger),
	)
	return Video(ctx, w, req.Sentences, VideoOptions{
		Width:    e.cfg.Export.Width,
		Height:   e.cfg.Export.Height,
		Drain:    config.Millis(e.cfg.Export.DrainMS),
		Flush:    config.Millis(e.cfg.Export.FlushMS),
		Card:     e.card,
		Recorder: rec,
		Narrator: narrator,
		Prepare:  req.Prepare,
		Progress: req.Progress,
		Logger:   e.logger,
	})
}
