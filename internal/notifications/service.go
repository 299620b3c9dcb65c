package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tinytales/internal/config"
)

const userAgent = "TinyTales-Go/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventStoryGenerated        Event = "story_generated"
	EventIllustrationsFinished Event = "illustrations_finished"
	EventExportFinished        Event = "export_finished"
	EventExportFailed          Event = "export_failed"
	EventError                 Event = "error"
	EventTest                  Event = "test"
)

// Payload carries event fields as strings.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventStoryGenerated:        cfg.Notifications.Story,
			EventIllustrationsFinished: cfg.Notifications.Illustrations,
			EventExportFinished:        cfg.Notifications.Exports,
			EventExportFailed:          cfg.Notifications.Exports || cfg.Notifications.Errors,
			EventError:                 cfg.Notifications.Errors,
			EventTest:                  true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventStoryGenerated:
		prompt := payloadString(payload, "prompt")
		body := fmt.Sprintf("📖 New story: %s", prompt)
		if count := payloadInt(payload, "sentences"); count > 0 {
			body = fmt.Sprintf("%s (%d sentences)", body, count)
		}
		return message{
			title: "Tiny Tales - Story Ready",
			body:  body,
			tags:  []string{"tinytales", "story", languageTag(payload)},
		}, true
	case EventIllustrationsFinished:
		total := payloadInt(payload, "total")
		failed := payloadInt(payload, "failed")
		title := "Tiny Tales - Illustrated"
		body := fmt.Sprintf("🎨 Illustrated %d of %d sentences", total-failed, total)
		if failed > 0 {
			title = "Tiny Tales - Illustrated (with errors)"
			body = fmt.Sprintf("%s, %d failed", body, failed)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"tinytales", "illustration", "completed"},
		}, true
	case EventExportFinished:
		kind := payloadString(payload, "format")
		body := fmt.Sprintf("📦 Export ready: %s", payloadString(payload, "file"))
		if size := payloadInt(payload, "bytes"); size > 0 {
			body = fmt.Sprintf("%s (%s)", body, humanize.Bytes(uint64(size)))
		}
		return message{
			title: "Tiny Tales - Export Complete",
			body:  body,
			tags:  []string{"tinytales", "export", kind},
		}, true
	case EventExportFailed:
		return message{
			title:    "Tiny Tales - Export Failed",
			body:     fmt.Sprintf("❌ %s export failed: %s", strings.ToUpper(payloadString(payload, "format")), payloadString(payload, "error")),
			tags:     []string{"tinytales", "export", "failed"},
			priority: "high",
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if text := payloadString(payload, "error"); text != "" {
			builder.WriteString(text)
		} else {
			builder.WriteString("unknown")
		}
		return message{
			title:    "Tiny Tales - Error",
			body:     builder.String(),
			tags:     []string{"tinytales", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Tiny Tales - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"tinytales", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func languageTag(payload Payload) string {
	if lang := payloadString(payload, "language"); lang != "" {
		return strings.ToLower(lang)
	}
	return "generated"
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadInt(payload Payload, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
