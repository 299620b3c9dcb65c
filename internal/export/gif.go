package export

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"log/slog"
	"time"

	"tinytales/internal/compositor"
	"tinytales/internal/logging"
	"tinytales/internal/services"
	"tinytales/internal/story"
)

// GIFOptions shapes the GIF export.
type GIFOptions struct {
	Width      int
	Height     int
	FrameDelay time.Duration
	Card       compositor.CardOptions
	Prepare    compositor.PrepareFunc
	Progress   ProgressFunc
	Logger     *slog.Logger
}

// GIF writes an animated GIF of the illustrated sentences to w. Sentences
// without a real illustration and captures with no area are skipped.
func GIF(ctx context.Context, w io.Writer, sentences []story.Sentence, opts GIFOptions) (Result, error) {
	return writeGIF(ctx, w, sentences, opts, cardSurface)
}

func writeGIF(ctx context.Context, w io.Writer, sentences []story.Sentence, opts GIFOptions, newSurface surfaceFactory) (Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "export.gif")
	result := Result{Format: FormatGIF, MimeType: "image/gif", Extension: "gif"}
	if opts.Width <= 0 {
		opts.Width = 600
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}
	if opts.FrameDelay <= 0 {
		opts.FrameDelay = 2 * time.Second
	}
	valid := story.ValidOnly(sentences)
	result.Skipped = len(sentences) - len(valid)
	if len(valid) == 0 {
		return result, noValidImages()
	}
	surface, err := newSurface(valid, opts.Card)
	if err != nil {
		return result, fmt.Errorf("prepare cards: %w", err)
	}
	comp, err := compositor.New(opts.Width, opts.Height,
		compositor.WithFill(compositor.FillElement),
		compositor.WithPrepare(opts.Prepare),
		compositor.WithLogger(logger),
	)
	if err != nil {
		return result, err
	}

	delay := int(opts.FrameDelay / (10 * time.Millisecond))
	anim := &gif.GIF{}
	total := surface.Len()
	for i := 0; i < total; i++ {
		frame, err := comp.Compose(ctx, surface, i)
		if err != nil {
			return result, services.Wrap(services.ErrCancelled, "export", "gif", "gif export cancelled", err)
		}
		switch frame.Status {
		case compositor.StatusDrawn:
			anim.Image = append(anim.Image, toPaletted(frame.Image))
			anim.Delay = append(anim.Delay, delay)
			result.Frames++
		case compositor.StatusFailed:
			result.Failed++
		default:
			result.Skipped++
		}
		opts.Progress.report(float64(i+1)/float64(total), fmt.Sprintf("Frame %d/%d processed.", i+1, total))
	}
	if result.Frames == 0 {
		return result, noValidImages()
	}
	cw := &countingWriter{w: w}
	if err := gif.EncodeAll(cw, anim); err != nil {
		return result, fmt.Errorf("encode gif: %w", err)
	}
	result.Size = cw.n
	logger.Info("gif export complete",
		logging.Int("frames", result.Frames),
		logging.Int("skipped", result.Skipped),
		logging.Int64("bytes", result.Size),
	)
	return result, nil
}

func noValidImages() error {
	return services.Wrap(services.ErrValidation, "export", "gif", "no valid images could be processed for the GIF", nil)
}

func toPaletted(src *image.RGBA) *image.Paletted {
	dst := image.NewPaletted(src.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(dst, src.Bounds(), src, src.Bounds().Min)
	return dst
}
