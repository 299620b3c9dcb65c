package testsupport

import (
	"context"
	"testing"

	"tinytales/internal/config"
	"tinytales/internal/story"
	"tinytales/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SaveStory records a history entry, splitting text into sentences.
func SaveStory(t testing.TB, st *store.Store, prompt string, lang story.Language, text string) store.StoryRecord {
	t.Helper()

	rec, err := st.SaveHistory(context.Background(), prompt, lang, text, story.SplitSentences(text))
	if err != nil {
		t.Fatalf("store.SaveHistory: %v", err)
	}
	return rec
}
