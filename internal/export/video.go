package export

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"tinytales/internal/compositor"
	"tinytales/internal/logging"
	"tinytales/internal/muxer"
	"tinytales/internal/services"
	"tinytales/internal/story"
)

// VideoOptions wires the recorder and narrator for one video export. The
// narrator must write its audio into Recorder.
type VideoOptions struct {
	Width    int
	Height   int
	Drain    time.Duration
	Flush    time.Duration
	Card     compositor.CardOptions
	Recorder muxer.Recorder
	Narrator muxer.Narrator
	Prepare  compositor.PrepareFunc
	Progress ProgressFunc
	Logger   *slog.Logger
}

// Video records a narrated slideshow of the illustrated sentences into w.
func Video(ctx context.Context, w io.Writer, sentences []story.Sentence, opts VideoOptions) (Result, error) {
	return writeVideo(ctx, w, sentences, opts, cardSurface)
}

func writeVideo(ctx context.Context, w io.Writer, sentences []story.Sentence, opts VideoOptions, newSurface surfaceFactory) (Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "export.video")
	result := Result{Format: FormatVideo}
	if opts.Recorder == nil || opts.Narrator == nil {
		return result, services.Wrap(services.ErrConfiguration, "export", "video", "recorder and narrator are required", nil)
	}
	if opts.Width <= 0 {
		opts.Width = 600
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}
	valid := story.ValidOnly(sentences)
	result.Skipped = len(sentences) - len(valid)
	if len(valid) == 0 {
		return result, services.Wrap(services.ErrValidation, "export", "video", "no illustrations found for video generation", nil)
	}
	surface, err := newSurface(valid, opts.Card)
	if err != nil {
		return result, fmt.Errorf("prepare cards: %w", err)
	}
	comp, err := compositor.New(opts.Width, opts.Height,
		compositor.WithFill(compositor.FillBackdrop),
		compositor.WithPrepare(opts.Prepare),
		compositor.WithLogger(logger),
	)
	if err != nil {
		return result, err
	}

	items := make([]muxer.Item, len(valid))
	for i, s := range valid {
		items[i] = muxer.Item{Text: s.Text, LanguageTag: s.Language.BCP47()}
	}
	frames := func(ctx context.Context, index int) (image.Image, error) {
		frame, err := comp.Compose(ctx, surface, index)
		if err != nil {
			return nil, err
		}
		switch frame.Status {
		case compositor.StatusDrawn:
			result.Frames++
		case compositor.StatusFailed:
			result.Failed++
		}
		return frame.Image, nil
	}

	recording, err := muxer.Record(ctx, muxer.Session{
		Recorder: opts.Recorder,
		Frames:   frames,
		Narrator: opts.Narrator,
		Drain:    opts.Drain,
		Flush:    opts.Flush,
		Progress: opts.Progress,
		Logger:   logger,
	}, items)
	if err != nil {
		return result, err
	}
	result.MimeType = recording.MimeType
	result.Extension = recording.Extension()
	cw := &countingWriter{w: w}
	for _, chunk := range recording.Chunks {
		if _, err := cw.Write(chunk); err != nil {
			return result, fmt.Errorf("write video: %w", err)
		}
	}
	result.Size = cw.n
	logger.Info("video export complete",
		logging.Int("frames", len(items)),
		logging.String("mime_type", result.MimeType),
		logging.Duration("duration", recording.Duration),
		logging.Int64("bytes", result.Size),
	)
	return result, nil
}
