package compositor

import (
	"fmt"
	"image/color"
	"strings"
)

// White is the fallback background.
var White = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Node is one level of the card's layout ancestry.
type Node interface {
	// Background returns the node's fill; nil or fully transparent means
	// the node shows its parent through.
	Background() color.Color
	Parent() Node
}

// Element is a simple Node.
type Element struct {
	Name string
	Fill color.Color
	Up   Node
}

func (e *Element) Background() color.Color { return e.Fill }

func (e *Element) Parent() Node {
	if e == nil || e.Up == nil {
		return nil
	}
	return e.Up
}

// ResolveBackground walks from n toward the root and returns the first
// opaque background. body is consulted when the chain runs out; White is the
// final fallback.
func ResolveBackground(n Node, body color.Color) color.Color {
	for cur := n; cur != nil; cur = cur.Parent() {
		if e, ok := cur.(*Element); ok && e == nil {
			break
		}
		if c := cur.Background(); !transparent(c) {
			return c
		}
	}
	if !transparent(body) {
		return body
	}
	return White
}

func transparent(c color.Color) bool {
	if c == nil {
		return true
	}
	_, _, _, a := c.RGBA()
	return a == 0
}

// ParseHex parses #RRGGBB. An empty string yields a transparent colour.
func ParseHex(value string) (color.Color, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return color.Transparent, nil
	}
	var r, g, b uint8
	if len(value) != 7 || value[0] != '#' {
		return nil, fmt.Errorf("parse colour %q: want #RRGGBB", value)
	}
	if _, err := fmt.Sscanf(value[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return nil, fmt.Errorf("parse colour %q: %w", value, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}, nil
}
