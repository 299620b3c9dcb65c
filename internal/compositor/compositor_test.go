package compositor_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	xdraw "golang.org/x/image/draw"

	"tinytales/internal/compositor"
	"tinytales/internal/story"
)

type fakeSurface struct {
	captures []image.Image
	errs     []error
	element  compositor.Node
	backdrop color.Color
}

func (f *fakeSurface) Len() int { return len(f.captures) }

func (f *fakeSurface) Capture(ctx context.Context, index int) (image.Image, error) {
	if index < len(f.errs) && f.errs[index] != nil {
		return nil, f.errs[index]
	}
	return f.captures[index], nil
}

func (f *fakeSurface) Element(int) compositor.Node { return f.element }

func (f *fakeSurface) Backdrop() color.Color { return f.backdrop }

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

func TestFitLetterboxes(t *testing.T) {
	cases := []struct {
		name       string
		sw, sh     float64
		want       compositor.Rect
		wantsEmpty bool
	}{
		{name: "wide", sw: 1200, sh: 400, want: compositor.Rect{X: 0, Y: 100, W: 600, H: 200}},
		{name: "tall", sw: 400, sh: 800, want: compositor.Rect{X: 200, Y: 0, W: 200, H: 400}},
		{name: "same aspect", sw: 300, sh: 200, want: compositor.Rect{X: 0, Y: 0, W: 600, H: 400}},
		{name: "zero", sw: 0, sh: 200, wantsEmpty: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := compositor.Fit(tc.sw, tc.sh, 600, 400)
			if tc.wantsEmpty {
				if !got.Empty() {
					t.Fatalf("expected empty rect, got %+v", got)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("Fit = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFitPreservesAspectAndStaysInside(t *testing.T) {
	for _, size := range [][2]float64{{1, 1}, {999, 3}, {3, 999}, {640, 481}, {17, 11}} {
		r := compositor.Fit(size[0], size[1], 600, 400)
		if r.X < 0 || r.Y < 0 || r.X+r.W > 600.0001 || r.Y+r.H > 400.0001 {
			t.Fatalf("rect %+v escapes canvas for %v", r, size)
		}
		srcAspect := size[0] / size[1]
		if diff := r.W/r.H - srcAspect; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("aspect changed for %v: %+v", size, r)
		}
		if r.W != 600 && r.H != 400 {
			t.Fatalf("rect %+v touches neither edge for %v", r, size)
		}
	}
}

func TestResolveBackgroundWalksAncestry(t *testing.T) {
	red := color.RGBA{R: 0xFF, A: 0xFF}
	grey := color.RGBA{R: 0xF0, G: 0xF0, B: 0xF0, A: 0xFF}
	root := &compositor.Element{Name: "page", Fill: red}
	card := &compositor.Element{Name: "card", Fill: color.Transparent, Up: &compositor.Element{Name: "column", Up: root}}
	if got := compositor.ResolveBackground(card, grey); !sameColor(got, red) {
		t.Fatalf("expected ancestor red, got %v", got)
	}
	orphan := &compositor.Element{Name: "card"}
	if got := compositor.ResolveBackground(orphan, grey); !sameColor(got, grey) {
		t.Fatalf("expected body grey, got %v", got)
	}
	if got := compositor.ResolveBackground(orphan, nil); !sameColor(got, compositor.White) {
		t.Fatalf("expected white, got %v", got)
	}
}

func TestComposeDrawsLetterboxedCapture(t *testing.T) {
	blue := color.RGBA{B: 0xFF, A: 0xFF}
	backdrop := color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xFF}
	surface := &fakeSurface{captures: []image.Image{solid(100, 100, blue)}, backdrop: backdrop}
	comp, err := compositor.New(60, 40)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frame, err := comp.Compose(context.Background(), surface, 0)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if frame.Status != compositor.StatusDrawn {
		t.Fatalf("unexpected status %v", frame.Status)
	}
	if !sameColor(frame.Image.At(30, 20), blue) {
		t.Fatalf("centre should be the capture, got %v", frame.Image.At(30, 20))
	}
	if !sameColor(frame.Image.At(2, 20), backdrop) {
		t.Fatalf("letterbox bar should be the backdrop, got %v", frame.Image.At(2, 20))
	}
}

func TestComposeElementFill(t *testing.T) {
	green := color.RGBA{G: 0xFF, A: 0xFF}
	surface := &fakeSurface{
		captures: []image.Image{solid(10, 10, color.Black)},
		element:  &compositor.Element{Fill: green},
		backdrop: color.RGBA{R: 0xFF, A: 0xFF},
	}
	comp, _ := compositor.New(60, 40, compositor.WithFill(compositor.FillElement))
	frame, err := comp.Compose(context.Background(), surface, 0)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !sameColor(frame.Image.At(1, 1), green) {
		t.Fatalf("expected element fill, got %v", frame.Image.At(1, 1))
	}
}

func TestComposeZeroSizeSkipsDraw(t *testing.T) {
	surface := &fakeSurface{captures: []image.Image{image.NewRGBA(image.Rect(0, 0, 0, 10))}}
	comp, _ := compositor.New(60, 40)
	frame, err := comp.Compose(context.Background(), surface, 0)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if frame.Status != compositor.StatusEmpty {
		t.Fatalf("expected empty status, got %v", frame.Status)
	}
	if !sameColor(frame.Image.At(30, 20), compositor.White) {
		t.Fatalf("expected white canvas, got %v", frame.Image.At(30, 20))
	}
}

func TestComposeCaptureErrorDrawsErrorFrame(t *testing.T) {
	surface := &fakeSurface{captures: []image.Image{nil}, errs: []error{errors.New("render failed")}}
	comp, _ := compositor.New(200, 100)
	frame, err := comp.Compose(context.Background(), surface, 0)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if frame.Status != compositor.StatusFailed || frame.Err == nil {
		t.Fatalf("unexpected frame %+v", frame)
	}
	if !sameColor(frame.Image.At(1, 1), compositor.ErrorFill) {
		t.Fatalf("expected error fill, got %v", frame.Image.At(1, 1))
	}
}

func TestComposeRunsPrepareHook(t *testing.T) {
	var prepared []int
	surface := &fakeSurface{captures: []image.Image{solid(4, 4, color.Black), solid(4, 4, color.Black)}}
	comp, _ := compositor.New(8, 8, compositor.WithPrepare(func(ctx context.Context, index int) error {
		prepared = append(prepared, index)
		return nil
	}))
	for i := 0; i < surface.Len(); i++ {
		if _, err := comp.Compose(context.Background(), surface, i); err != nil {
			t.Fatalf("Compose: %v", err)
		}
	}
	if len(prepared) != 2 || prepared[0] != 0 || prepared[1] != 1 {
		t.Fatalf("unexpected prepare calls %v", prepared)
	}
}

func TestComposeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	comp, _ := compositor.New(8, 8)
	if _, err := comp.Compose(ctx, &fakeSurface{captures: []image.Image{solid(1, 1, color.Black)}}, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestCardSurfaceRendersIllustrationAndPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(30, 20, color.RGBA{R: 0xFF, A: 0xFF})); err != nil {
		t.Fatalf("encode: %v", err)
	}
	sentences := story.NewSentences([]string{"A tiny cat naps in a very long sunbeam today.", "Another cat."}, story.English)
	sentences[0].Resolve(story.EncodeDataURI("image/png", buf.Bytes()))
	sentences[1].Fail("Max retries reached")

	surface, err := compositor.NewCardSurface(sentences, compositor.CardOptions{Width: 300, CardColor: compositor.White})
	if err != nil {
		t.Fatalf("NewCardSurface: %v", err)
	}
	for i := range sentences {
		img, err := surface.Capture(context.Background(), i)
		if err != nil {
			t.Fatalf("Capture(%d): %v", i, err)
		}
		if img.Bounds().Dx() != 300 || img.Bounds().Dy() <= 200 {
			t.Fatalf("unexpected card size %v", img.Bounds())
		}
	}
	img, _ := surface.Capture(context.Background(), 0)
	if !sameColor(img.At(150, 16+89), color.RGBA{R: 0xFF, A: 0xFF}) {
		t.Fatalf("expected illustration pixel, got %v", img.At(150, 105))
	}
}

func TestCardSurfaceRejectsBrokenImage(t *testing.T) {
	sentences := story.NewSentences([]string{"Broken."}, story.English)
	sentences[0].Resolve("data:image/png;base64,bm90IGEgcG5n")
	surface, err := compositor.NewCardSurface(sentences, compositor.CardOptions{})
	if err != nil {
		t.Fatalf("NewCardSurface: %v", err)
	}
	if _, err := surface.Capture(context.Background(), 0); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseHex(t *testing.T) {
	c, err := compositor.ParseHex("#E0E0E0")
	if err != nil || !sameColor(c, compositor.ErrorFill) {
		t.Fatalf("ParseHex = %v, %v", c, err)
	}
	if _, err := compositor.ParseHex("E0E0E0"); err == nil {
		t.Fatal("expected error without #")
	}
}

func TestScaleUsesCatmullRomLetterbox(t *testing.T) {
	if compositor.Scaler != xdraw.Interpolator(xdraw.CatmullRom) {
		t.Fatalf("unexpected scaler %T", compositor.Scaler)
	}
	red := color.RGBA{R: 0xFF, A: 0xFF}
	src := image.NewRGBA(image.Rect(0, 0, 10, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 10; x++ {
			src.Set(x, y, red)
		}
	}
	dst := compositor.Scale(src, 40, 40, color.White)
	near := func(got color.RGBA, want color.RGBA) bool {
		d := func(a, b uint8) int {
			if a > b {
				return int(a - b)
			}
			return int(b - a)
		}
		return d(got.R, want.R) <= 2 && d(got.G, want.G) <= 2 && d(got.B, want.B) <= 2
	}
	if got := dst.RGBAAt(20, 20); !near(got, red) {
		t.Fatalf("centre pixel = %v, want red", got)
	}
	if got := dst.RGBAAt(20, 2); !near(got, color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}) {
		t.Fatalf("letterbox bar = %v, want white", got)
	}
}
