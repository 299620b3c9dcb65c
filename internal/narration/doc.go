// Package narration synthesizes, decodes and plays per-sentence speech into
// the recorder's audio track.
//
// Playback runs in media time: samples are written to the Sink as fast as it
// accepts them and the clip ends once every sample is written. A wall-clock
// timeout of max(floor, duration+margin) guards against a stalled sink. When
// synthesis fails or returns nothing the sentence gets a fixed silent pause.
package narration
