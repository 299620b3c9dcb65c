package muxer

import (
	"context"
	"image"
	"time"
)

// State is the recorder lifecycle state.
type State string

const (
	StateInactive  State = "inactive"
	StateRecording State = "recording"
)

// Recorder captures a video track and an audio track on one media timeline.
// WriteAudio makes a Recorder usable as a narration sink.
type Recorder interface {
	Start(ctx context.Context) error
	State() State
	MimeType() string
	WriteFrame(img image.Image) error
	WriteAudio(samples []int16) error
	Advance(d time.Duration) error
	RequestData() error
	Stop(ctx context.Context) (Recording, error)
}

// Recording is the encoded container delivered as data chunks.
type Recording struct {
	MimeType string
	Chunks   [][]byte
	Duration time.Duration
}

// Size returns the total byte count across chunks.
func (r Recording) Size() int64 {
	var total int64
	for _, c := range r.Chunks {
		total += int64(len(c))
	}
	return total
}

// Bytes concatenates the chunks.
func (r Recording) Bytes() []byte {
	out := make([]byte, 0, r.Size())
	for _, c := range r.Chunks {
		out = append(out, c...)
	}
	return out
}

// Extension returns the container file extension.
func (r Recording) Extension() string {
	return ExtensionFor(r.MimeType)
}
