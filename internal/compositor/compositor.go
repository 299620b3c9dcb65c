package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"

	"tinytales/internal/logging"
	"tinytales/internal/services"
)

// ErrorFill is the frame colour used when a capture fails.
var ErrorFill = color.RGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}

// Scaler resamples captures and illustrations into their letterboxed slot.
var Scaler xdraw.Interpolator = xdraw.CatmullRom

// Surface supplies the rendered cards to composite.
type Surface interface {
	Len() int
	Capture(ctx context.Context, index int) (image.Image, error)
	Element(index int) Node
	Backdrop() color.Color
}

// PrepareFunc runs before each capture, for example to bring a card on screen.
type PrepareFunc func(ctx context.Context, index int) error

// Fill chooses what covers the frame outside the letterboxed capture.
type Fill int

const (
	// FillBackdrop paints the surface backdrop, as the video export does.
	FillBackdrop Fill = iota
	// FillElement paints the card's resolved background, as the GIF export does.
	FillElement
)

// Status reports how a frame was produced.
type Status int

const (
	StatusDrawn Status = iota
	StatusEmpty
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDrawn:
		return "drawn"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Frame is one composited canvas.
type Frame struct {
	Index  int
	Image  *image.RGBA
	Status Status
	Err    error
}

// Compositor draws captures onto fixed-size canvases.
type Compositor struct {
	width     int
	height    int
	fill      Fill
	prepare   PrepareFunc
	errorFace font.Face
	logger    *slog.Logger
}

// Option customizes a Compositor.
type Option func(*Compositor)

// WithFill selects the fill outside the capture.
func WithFill(fill Fill) Option {
	return func(c *Compositor) { c.fill = fill }
}

// WithPrepare installs a per-frame preparation hook.
func WithPrepare(fn PrepareFunc) Option {
	return func(c *Compositor) { c.prepare = fn }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compositor) { c.logger = logger }
}

// New constructs a compositor for width x height frames.
func New(width, height int, opts ...Option) (*Compositor, error) {
	if width <= 0 || height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "compositor", "new", fmt.Sprintf("invalid canvas %dx%d", width, height), nil)
	}
	typeface, err := DefaultTypeface()
	if err != nil {
		return nil, err
	}
	face, err := typeface.Face(16)
	if err != nil {
		return nil, err
	}
	c := &Compositor{width: width, height: height, errorFace: face}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "compositor")
	return c, nil
}

// Size returns the canvas dimensions.
func (c *Compositor) Size() (int, int) {
	return c.width, c.height
}

// Compose renders frame index of s. Capture failures produce an error frame
// and zero-sized captures an undrawn one; only context cancellation is
// returned as an error.
func (c *Compositor) Compose(ctx context.Context, s Surface, index int) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	logger := logging.WithContext(services.WithSentenceIndex(ctx, index), c.logger)
	frame := Frame{Index: index, Image: image.NewRGBA(image.Rect(0, 0, c.width, c.height))}
	elementFill := ResolveBackground(s.Element(index), s.Backdrop())
	canvasFill := ResolveBackground(nil, s.Backdrop())
	if c.fill == FillElement {
		canvasFill = elementFill
	}
	draw.Draw(frame.Image, frame.Image.Bounds(), image.NewUniform(canvasFill), image.Point{}, draw.Src)

	var captured image.Image
	err := c.runPrepare(ctx, index)
	if err == nil {
		captured, err = s.Capture(ctx, index)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Frame{}, ctx.Err()
		}
		logger.Error("frame capture failed", logging.Error(err))
		c.drawError(frame.Image, index)
		frame.Status = StatusFailed
		frame.Err = err
		return frame, nil
	}

	bounds := image.Rectangle{}
	if captured != nil {
		bounds = captured.Bounds()
	}
	placement := Fit(float64(bounds.Dx()), float64(bounds.Dy()), float64(c.width), float64(c.height))
	target := placement.Image()
	if placement.Empty() || target.Empty() {
		logger.Warn("capture has zero width or height; skipping draw",
			logging.Int("capture_width", bounds.Dx()),
			logging.Int("capture_height", bounds.Dy()),
		)
		frame.Status = StatusEmpty
		return frame, nil
	}
	draw.Draw(frame.Image, target, image.NewUniform(elementFill), image.Point{}, draw.Src)
	Scaler.Scale(frame.Image, target, captured, bounds, xdraw.Over, nil)
	frame.Status = StatusDrawn
	return frame, nil
}

func (c *Compositor) runPrepare(ctx context.Context, index int) error {
	if c.prepare == nil {
		return nil
	}
	if err := c.prepare(ctx, index); err != nil {
		return fmt.Errorf("prepare frame %d: %w", index+1, err)
	}
	return nil
}

func (c *Compositor) drawError(dst *image.RGBA, index int) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(ErrorFill), image.Point{}, draw.Src)
	drawCentered(dst, c.errorFace, color.Black, fmt.Sprintf("Error rendering frame %d", index+1), c.width/2, c.height/2)
}

// Scale draws src letterboxed into a new width x height canvas over fill.
func Scale(src image.Image, width, height int, fill color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(ResolveBackground(nil, fill)), image.Point{}, draw.Src)
	if src == nil {
		return dst
	}
	bounds := src.Bounds()
	target := Fit(float64(bounds.Dx()), float64(bounds.Dy()), float64(width), float64(height)).Image()
	if target.Empty() {
		return dst
	}
	Scaler.Scale(dst, target, src, bounds, xdraw.Over, nil)
	return dst
}
