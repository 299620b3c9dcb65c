package compositor

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Typeface is a parsed font that can produce faces at any size.
type Typeface struct {
	font *opentype.Font
}

// DefaultTypeface returns the built-in Go Regular font.
func DefaultTypeface() (*Typeface, error) {
	return ParseTypeface(goregular.TTF)
}

// LoadTypeface reads a TrueType or OpenType file. An empty path selects the
// built-in font.
func LoadTypeface(path string) (*Typeface, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultTypeface()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return ParseTypeface(data)
}

// ParseTypeface parses font data.
func ParseTypeface(data []byte) (*Typeface, error) {
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Typeface{font: parsed}, nil
}

// Face returns a face at size pixels.
func (t *Typeface) Face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	return face, nil
}

// wrapText breaks text into lines no wider than maxWidth pixels. A single
// word wider than maxWidth gets its own line.
func wrapText(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	limit := fixed.I(maxWidth)
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		candidate := line + " " + word
		if font.MeasureString(face, candidate) <= limit {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = word
	}
	return append(lines, line)
}

func lineHeight(face font.Face) int {
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil() + 4
}

// drawCentered draws text horizontally centred on cx with its baseline at y.
func drawCentered(dst *image.RGBA, face font.Face, col color.Color, text string, cx, y int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	width := d.MeasureString(text)
	d.Dot = fixed.Point26_6{X: fixed.I(cx) - width/2, Y: fixed.I(y)}
	d.DrawString(text)
}
