// Package muxer records composited frames and narration into one video.
//
// A Recorder keeps a media-time timeline: each frame is held until the next
// one arrives, and its on-screen duration is the audio written meanwhile.
// TimelineRecorder stores the timeline in a scratch directory and encodes it
// with ffmpeg when stopped, using the first container profile ffmpeg
// supports. Record drives the start, per-frame, drain, flush and stop
// sequence.
package muxer
