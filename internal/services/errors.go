package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRateLimited   = errors.New("rate limited")
	ErrProvider      = errors.New("provider error")
	ErrPlayback      = errors.New("decode or playback error")
	ErrRecorder      = errors.New("recorder failure")
	ErrCancelled     = errors.New("cancelled")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrExternalTool  = errors.New("external tool error")
	ErrDisabled      = errors.New("feature disabled")
)

// Kind names a failure category surfaced to callers and persisted in events.
type Kind string

const (
	KindNone          Kind = ""
	KindRateLimited   Kind = "rate_limited"
	KindProvider      Kind = "provider_error"
	KindPlayback      Kind = "decode_or_playback_error"
	KindRecorderFatal Kind = "recorder_fatal"
	KindCancelled     Kind = "cancelled"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindDisabled      Kind = "disabled"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its failure kind. Context cancellation counts as
// cancelled even when no marker was attached.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrPlayback):
		return KindPlayback
	case errors.Is(err, ErrRecorder), errors.Is(err, ErrExternalTool):
		return KindRecorderFatal
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDisabled):
		return KindDisabled
	default:
		return KindProvider
	}
}

// Retryable reports whether the failure kind may succeed on a later attempt.
func (k Kind) Retryable() bool {
	return k == KindRateLimited
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
