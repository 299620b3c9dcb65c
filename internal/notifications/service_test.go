package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tinytales/internal/config"
	"tinytales/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventStoryGenerated, notifications.Payload{"prompt": "cats"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "story generated",
			event: notifications.EventStoryGenerated,
			payload: notifications.Payload{
				"prompt":    "a cat who loves rain",
				"language":  "English",
				"sentences": 5,
			},
			expectTitle:   "Tiny Tales - Story Ready",
			expectMessage: "📖 New story: a cat who loves rain (5 sentences)",
			expectTags:    "tinytales,story,english",
		},
		{
			name:          "illustrations finished",
			event:         notifications.EventIllustrationsFinished,
			payload:       notifications.Payload{"total": 5, "failed": 0},
			expectTitle:   "Tiny Tales - Illustrated",
			expectMessage: "🎨 Illustrated 5 of 5 sentences",
			expectTags:    "tinytales,illustration,completed",
		},
		{
			name:          "illustrations with failures",
			event:         notifications.EventIllustrationsFinished,
			payload:       notifications.Payload{"total": 5, "failed": 2},
			expectTitle:   "Tiny Tales - Illustrated (with errors)",
			expectMessage: "🎨 Illustrated 3 of 5 sentences, 2 failed",
			expectTags:    "tinytales,illustration,completed",
		},
		{
			name:  "export finished",
			event: notifications.EventExportFinished,
			payload: notifications.Payload{
				"format": "gif",
				"file":   "tiny-cat-tale.gif",
				"bytes":  int64(2048),
			},
			expectTitle:   "Tiny Tales - Export Complete",
			expectMessage: "📦 Export ready: tiny-cat-tale.gif (2.0 kB)",
			expectTags:    "tinytales,export,gif",
		},
		{
			name:  "export failed",
			event: notifications.EventExportFailed,
			payload: notifications.Payload{
				"format": "video",
				"error":  errors.New("ffmpeg missing"),
			},
			expectTitle:    "Tiny Tales - Export Failed",
			expectMessage:  "❌ VIDEO export failed: ffmpeg missing",
			expectTags:     "tinytales,export,failed",
			expectPriority: "high",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "illustration",
				"error":   "quota exhausted",
			},
			expectTitle:    "Tiny Tales - Error",
			expectMessage:  "❌ Error with illustration: quota exhausted",
			expectTags:     "tinytales,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonoursDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for disabled event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Story = false
	cfg.Notifications.Illustrations = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{
		notifications.EventStoryGenerated,
		notifications.EventIllustrationsFinished,
		notifications.Event("unknown"),
	} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for rejected notification")
	}
}
