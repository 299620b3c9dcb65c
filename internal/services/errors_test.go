package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"tinytales/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRecorder, "video", "stop", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRecorder) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"video", "stop", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, services.KindNone},
		{"rate", services.Wrap(services.ErrRateLimited, "illustration", "fetch", "429", nil), services.KindRateLimited},
		{"context", fmt.Errorf("wait: %w", context.Canceled), services.KindCancelled},
		{"playback", services.Wrap(services.ErrPlayback, "narration", "decode", "", nil), services.KindPlayback},
		{"recorder", services.Wrap(services.ErrRecorder, "video", "", "0 bytes", nil), services.KindRecorderFatal},
		{"validation", services.Wrap(services.ErrValidation, "", "", "empty prompt", nil), services.KindValidation},
		{"unknown", errors.New("boom"), services.KindProvider},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKindRetryable(t *testing.T) {
	if !services.KindRateLimited.Retryable() {
		t.Fatal("rate limited should be retryable")
	}
	if services.KindProvider.Retryable() || services.KindCancelled.Retryable() {
		t.Fatal("terminal kinds must not be retryable")
	}
}
