package genai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const snippetLimit = 160

// parseStory reads the story model's reply. The reply should be a JSON
// object with a "story" field, possibly fenced or wrapped in chatter. A reply
// with no object at all is taken as the story prose itself.
func parseStory(text string) (StoryResult, error) {
	var parsed StoryResult
	body := unfence(text)
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end < start {
		parsed.Story = strings.TrimSpace(body)
		return parsed, nil
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), &parsed); err != nil {
		if start == 0 {
			return parsed, fmt.Errorf("parse payload: %w (payload: %s)", err, snippet(body))
		}
		// Braces inside prose are not a payload.
		parsed.Story = strings.TrimSpace(body)
		return parsed, nil
	}
	parsed.Story = strings.TrimSpace(parsed.Story)
	return parsed, nil
}

// unfence strips a ``` or ```json fence around the reply.
func unfence(text string) string {
	body := strings.TrimSpace(text)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimLeft(body[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// snippet collapses whitespace and caps text for error messages.
func snippet(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetLimit {
		clean = string(runes[:snippetLimit]) + "..."
	}
	return clean
}
