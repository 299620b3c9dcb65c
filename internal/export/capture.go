package export

import (
	"context"
	"fmt"
	"image"

	"tinytales/internal/compositor"
)

// capture runs the preparation hook and captures card index.
func capture(ctx context.Context, s compositor.Surface, prepare compositor.PrepareFunc, index int) (image.Image, error) {
	if prepare != nil {
		if err := prepare(ctx, index); err != nil {
			return nil, fmt.Errorf("prepare frame %d: %w", index+1, err)
		}
	}
	img, err := s.Capture(ctx, index)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("capture %d returned no image", index+1)
	}
	return img, nil
}
