package story

import (
	"fmt"

	"github.com/google/uuid"
)

// Sentence is one narrative unit paired with one illustration and one
// narration clip.
type Sentence struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	Language       Language `json:"language"`
	ImageURL       string   `json:"imageUrl"`
	IsImageLoading bool     `json:"isImageLoading"`
	ImageError     string   `json:"imageError,omitempty"`
}

// NewSentences builds loading sentences for texts in narrative order.
func NewSentences(texts []string, lang Language) []Sentence {
	out := make([]Sentence, 0, len(texts))
	for _, text := range texts {
		out = append(out, Sentence{
			ID:             uuid.NewString(),
			Text:           text,
			Language:       lang,
			IsImageLoading: true,
		})
	}
	return out
}

// Resolve records a successful illustration.
func (s *Sentence) Resolve(imageURL string) {
	s.ImageURL = imageURL
	s.IsImageLoading = false
	s.ImageError = ""
}

// Fail replaces the illustration with the placeholder and records why.
func (s *Sentence) Fail(reason string) {
	if reason == "" {
		reason = "unknown error"
	}
	s.ImageURL = PlaceholderImageURL
	s.IsImageLoading = false
	s.ImageError = reason
}

// StopReason marks sentences left unfinished by a cancelled batch.
const StopReason = "Stopped by user"

// Reload puts the sentence back to loading, dropping any earlier image or
// failure.
func (s *Sentence) Reload() {
	s.ImageURL = ""
	s.IsImageLoading = true
	s.ImageError = ""
}

// Stop settles an unfinished sentence after cancellation. A real resolved
// image is kept; a placeholder is not.
func (s *Sentence) Stop() {
	resolved := s.ImageError == "" && s.ImageURL != "" && !IsPlaceholder(s.ImageURL)
	s.IsImageLoading = false
	if resolved {
		return
	}
	s.ImageError = StopReason
}

// Valid reports whether the sentence has a real illustration ready for export.
func (s Sentence) Valid() bool {
	return !s.IsImageLoading && s.ImageError == "" && s.ImageURL != "" && !IsPlaceholder(s.ImageURL)
}

// CheckInvariant verifies a settled sentence has an image.
func (s Sentence) CheckInvariant() error {
	if !s.IsImageLoading && s.ImageError == "" && s.ImageURL == "" {
		return fmt.Errorf("sentence %s: settled without image or error", s.ID)
	}
	return nil
}

// Texts extracts sentence text, the only part of a sentence that is persisted.
func Texts(sentences []Sentence) []string {
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, s.Text)
	}
	return out
}

// ValidOnly returns the sentences that are ready for export.
func ValidOnly(sentences []Sentence) []Sentence {
	out := make([]Sentence, 0, len(sentences))
	for _, s := range sentences {
		if s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

// Pending reports whether any sentence is still waiting on its illustration.
func Pending(sentences []Sentence) bool {
	for _, s := range sentences {
		if s.IsImageLoading {
			return true
		}
	}
	return false
}
