package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"tinytales/internal/narration"
	"tinytales/internal/story"
)

// PNGDataURI encodes a solid w x h image as a data URI.
func PNGDataURI(t testing.TB, w, h int, fill color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return story.EncodeDataURI("image/png", buf.Bytes())
}

// WAVDataURI encodes samples of silence as a 16-bit mono WAV data URI.
func WAVDataURI(t testing.TB, rate, samples int) string {
	t.Helper()

	data := narration.EncodeWAV(narration.PCM{SampleRate: rate, Samples: make([]int16, samples)})
	return story.EncodeDataURI("audio/wav", data)
}

// IllustratedSentences returns settled sentences with real PNG illustrations.
func IllustratedSentences(t testing.TB, texts ...string) []story.Sentence {
	t.Helper()

	sentences := story.NewSentences(texts, story.English)
	for i := range sentences {
		sentences[i].Resolve(PNGDataURI(t, 60, 40, color.RGBA{R: 200, G: 120, B: 40, A: 255}))
	}
	return sentences
}
