package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	_ "golang.org/x/image/webp"

	"tinytales/internal/story"
)

var (
	placeholderFill = color.RGBA{R: 0xCC, G: 0xCC, B: 0xCC, A: 0xFF}
	captionColor    = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}
	noteColor       = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xFF}
)

// CardOptions shapes the rendered cards. Scale multiplies every dimension,
// so PDF pages can be captured at twice the video resolution.
type CardOptions struct {
	Width         int
	Scale         float64
	CaptionSize   float64
	CardColor     color.Color
	BackdropColor color.Color
	Typeface      *Typeface
}

// CardSurface renders each sentence as an illustration above its caption.
type CardSurface struct {
	sentences []story.Sentence
	opts      CardOptions
	page      *Element
	column    *Element
	cards     []*Element
	caption   font.Face
	note      font.Face
}

// NewCardSurface lays out one card per sentence.
func NewCardSurface(sentences []story.Sentence, opts CardOptions) (*CardSurface, error) {
	if opts.Width <= 0 {
		opts.Width = 600
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.CaptionSize <= 0 {
		opts.CaptionSize = 20
	}
	if opts.Typeface == nil {
		typeface, err := DefaultTypeface()
		if err != nil {
			return nil, err
		}
		opts.Typeface = typeface
	}
	caption, err := opts.Typeface.Face(opts.CaptionSize * opts.Scale)
	if err != nil {
		return nil, err
	}
	note, err := opts.Typeface.Face(14 * opts.Scale)
	if err != nil {
		return nil, err
	}
	page := &Element{Name: "page", Fill: opts.BackdropColor}
	column := &Element{Name: "story", Up: page}
	cards := make([]*Element, len(sentences))
	for i, s := range sentences {
		cards[i] = &Element{Name: "story-item-" + s.ID, Fill: opts.CardColor, Up: column}
	}
	return &CardSurface{
		sentences: sentences,
		opts:      opts,
		page:      page,
		column:    column,
		cards:     cards,
		caption:   caption,
		note:      note,
	}, nil
}

func (c *CardSurface) Len() int { return len(c.sentences) }

func (c *CardSurface) Element(index int) Node {
	if index < 0 || index >= len(c.cards) {
		return nil
	}
	return c.cards[index]
}

func (c *CardSurface) Backdrop() color.Color { return c.opts.BackdropColor }

// Capture renders card index.
func (c *CardSurface) Capture(ctx context.Context, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(c.sentences) {
		return nil, fmt.Errorf("card %d out of range", index+1)
	}
	s := c.sentences[index]
	scale := c.opts.Scale
	width := int(float64(c.opts.Width) * scale)
	pad := int(16 * scale)
	artW := width - 2*pad
	artH := artW * 2 / 3
	lines := wrapText(c.caption, s.Text, artW)
	lh := lineHeight(c.caption)
	height := pad + artH + pad + len(lines)*lh + pad

	card := image.NewRGBA(image.Rect(0, 0, width, height))
	bg := ResolveBackground(c.cards[index], c.opts.BackdropColor)
	draw.Draw(card, card.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	art := image.Rect(pad, pad, pad+artW, pad+artH)
	if err := c.drawIllustration(card, art, s); err != nil {
		return nil, fmt.Errorf("card %d: %w", index+1, err)
	}
	baseline := art.Max.Y + pad + c.caption.Metrics().Ascent.Ceil()
	for _, line := range lines {
		drawCentered(card, c.caption, captionColor, line, width/2, baseline)
		baseline += lh
	}
	return card, nil
}

func (c *CardSurface) drawIllustration(dst *image.RGBA, area image.Rectangle, s story.Sentence) error {
	if !story.IsDataURI(s.ImageURL) {
		draw.Draw(dst, area, image.NewUniform(placeholderFill), image.Point{}, draw.Src)
		label := "Illustration pending"
		switch {
		case s.ImageError != "":
			label = s.ImageError
		case story.IsPlaceholder(s.ImageURL):
			label = "Illustration unavailable"
		}
		drawCentered(dst, c.note, noteColor, label, area.Min.X+area.Dx()/2, area.Min.Y+area.Dy()/2)
		return nil
	}
	mimeType, payload, err := story.DecodeDataURI(s.ImageURL)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("illustration has mime type %q", mimeType)
	}
	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("decode illustration: %w", err)
	}
	bounds := img.Bounds()
	placement := FitIn(float64(bounds.Dx()), float64(bounds.Dy()), Rect{
		X: float64(area.Min.X), Y: float64(area.Min.Y), W: float64(area.Dx()), H: float64(area.Dy()),
	})
	if placement.Empty() {
		return errors.New("illustration has zero size")
	}
	Scaler.Scale(dst, placement.Image(), img, bounds, xdraw.Over, nil)
	return nil
}
