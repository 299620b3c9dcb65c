package muxer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"tinytales/internal/logging"
	"tinytales/internal/narration"
	"tinytales/internal/services"
	"tinytales/internal/textutil"
)

// Item is one frame of the recording.
type Item struct {
	Text        string
	LanguageTag string
}

// FrameFunc returns the composited frame for item index.
type FrameFunc func(ctx context.Context, index int) (image.Image, error)

// Narrator speaks one item into the recorder's audio track.
type Narrator interface {
	Narrate(ctx context.Context, text, languageTag string) (narration.Result, error)
}

// Session wires the pieces of one recording.
type Session struct {
	Recorder Recorder
	Frames   FrameFunc
	Narrator Narrator
	Drain    time.Duration
	Flush    time.Duration
	// Pause holds a frame whose narration failed. Zero means one second.
	Pause    time.Duration
	Progress func(fraction float64, status string)
	Logger   *slog.Logger
}

// Record starts the recorder, shows each frame for the length of its
// narration, drains, flushes and stops. If the recorder leaves the recording
// state mid-loop, Record stops early and returns whatever was captured.
func Record(ctx context.Context, s Session, items []Item) (Recording, error) {
	logger := logging.NewComponentLogger(s.Logger, "muxer")
	progress := func(f float64, status string) {
		if s.Progress != nil {
			s.Progress(f, status)
		}
	}
	pause := s.Pause
	if pause <= 0 {
		pause = time.Second
	}
	rec := s.Recorder
	if err := rec.Start(ctx); err != nil {
		progress(0, "Error starting recorder: "+err.Error())
		return Recording{}, recorderFailed(err)
	}
	progress(0, "Recording started. MimeType: "+rec.MimeType())

	total := len(items)
	for i, item := range items {
		if state := rec.State(); state != StateRecording {
			logger.Warn("recorder left recording state; ending early",
				logging.String("state", string(state)),
				logging.Int("frames_done", i),
				logging.String(logging.FieldEventType, "recorder_state_changed"),
			)
			return finish(ctx, rec, progress)
		}
		if err := ctx.Err(); err != nil {
			_, _ = rec.Stop(context.WithoutCancel(ctx))
			return Recording{}, services.Wrap(services.ErrCancelled, "video", "record", "recording cancelled", err)
		}
		fraction := float64(i+1) / float64(total)
		itemCtx := services.WithSentenceIndex(ctx, i)

		frame, err := s.Frames(itemCtx, i)
		if err != nil {
			_, _ = rec.Stop(context.WithoutCancel(ctx))
			if ctx.Err() != nil {
				return Recording{}, services.Wrap(services.ErrCancelled, "video", "record", "recording cancelled", ctx.Err())
			}
			return Recording{}, recorderFailed(fmt.Errorf("frame %d: %w", i+1, err))
		}
		if err := rec.WriteFrame(frame); err != nil {
			logger.Warn("frame write failed", logging.Error(err), logging.Int("frame", i+1))
			continue
		}

		progress(fraction, fmt.Sprintf("Generating speech: %q", textutil.Truncate(item.Text, 15)))
		result, err := s.Narrator.Narrate(itemCtx, item.Text, item.LanguageTag)
		if err != nil {
			if ctx.Err() != nil {
				_, _ = rec.Stop(context.WithoutCancel(ctx))
				return Recording{}, services.Wrap(services.ErrCancelled, "video", "record", "recording cancelled", ctx.Err())
			}
			logging.WarnWithContext(logger, "narration failed; holding frame silently", "narration_failed",
				logging.Error(err),
				logging.Int("frame", i+1),
				logging.Duration("pause", pause),
			)
			if err := rec.Advance(pause); err != nil {
				logger.Warn("silent pause not recorded", logging.Error(err), logging.Int("frame", i+1))
			}
			progress(fraction, fmt.Sprintf("TTS error for %q. Using %s pause.", textutil.Truncate(item.Text, 10), pause))
			progress(fraction, fmt.Sprintf("Frame %d/%d processed.", i+1, total))
			continue
		}
		if result.Outcome == narration.OutcomePaused {
			progress(fraction, fmt.Sprintf("TTS error for %q. Using 1s pause.", textutil.Truncate(item.Text, 10)))
		}
		progress(fraction, fmt.Sprintf("Frame %d/%d processed.", i+1, total))
	}

	if err := rec.Advance(s.Drain); err != nil {
		logger.Warn("drain interval not recorded", logging.Error(err))
	}
	if rec.State() == StateRecording {
		if err := rec.RequestData(); err != nil {
			logger.Warn("final data request failed", logging.Error(err))
		}
		if err := rec.Advance(s.Flush); err != nil {
			logger.Warn("flush interval not recorded", logging.Error(err))
		}
	}
	return finish(ctx, rec, progress)
}

func finish(ctx context.Context, rec Recorder, progress func(float64, string)) (Recording, error) {
	recording, err := rec.Stop(context.WithoutCancel(ctx))
	if err != nil {
		progress(1, "Recorder Error: "+err.Error())
		return recording, recorderFailed(err)
	}
	if len(recording.Chunks) == 0 {
		progress(1, "Error: No data recorded. Video might be empty.")
		return recording, services.Wrap(services.ErrRecorder, "video", "stop", "no data chunks recorded", nil)
	}
	if recording.Size() == 0 {
		progress(1, "Error: Final video file is 0 bytes.")
		return recording, services.Wrap(services.ErrRecorder, "video", "stop", "generated video is 0 bytes", nil)
	}
	return recording, nil
}

func recorderFailed(err error) error {
	return services.Wrap(services.ErrRecorder, "video", "record", "recorder failed", err)
}
