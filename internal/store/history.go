package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tinytales/internal/services"
	"tinytales/internal/story"
	"tinytales/internal/textutil"
)

// SaveHistory records a generated story at the top of the history. An entry
// with the same prompt and language is replaced; the oldest entries beyond
// the history limit are dropped.
func (s *Store) SaveHistory(ctx context.Context, prompt string, lang story.Language, storyText string, sentences []string) (StoryRecord, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return StoryRecord{}, services.Wrap(services.ErrValidation, "store", "save history", "prompt is required", nil)
	}
	encoded, err := encodeSentences(sentences)
	if err != nil {
		return StoryRecord{}, err
	}
	rec := StoryRecord{
		ID:        newID("story"),
		Prompt:    prompt,
		Language:  lang,
		Story:     storyText,
		Sentences: decodeSentences(encoded),
		Timestamp: s.now().UTC(),
		Comments:  []Comment{},
	}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM stories WHERE prompt = ? AND language = ?", prompt, string(lang)); err != nil {
			return fmt.Errorf("replace history entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO stories ("+storyColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			rec.ID, rec.Prompt, string(rec.Language), rec.Story, encoded, formatTime(rec.Timestamp),
		); err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM stories WHERE id NOT IN (SELECT id FROM stories ORDER BY created_at DESC, rowid DESC LIMIT ?)",
			s.historyLimit,
		); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
		return nil
	})
	if err != nil {
		return StoryRecord{}, err
	}
	return rec, nil
}

// ListHistory returns history entries, most recent first.
func (s *Store) ListHistory(ctx context.Context) ([]StoryRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+storyColumns+" FROM stories ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	out := []StoryRecord{}
	for rows.Next() {
		rec, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetStory loads one history entry.
func (s *Store) GetStory(ctx context.Context, id string) (StoryRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+storyColumns+" FROM stories WHERE id = ?", id)
	rec, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoryRecord{}, services.Wrap(services.ErrNotFound, "store", "get story", fmt.Sprintf("story %q not found", id), nil)
	}
	if err != nil {
		return StoryRecord{}, fmt.Errorf("get story: %w", err)
	}
	return rec, nil
}

// DeleteStory removes a history entry.
func (s *Store) DeleteStory(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM stories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete story", fmt.Sprintf("story %q not found", id), nil)
	}
	return nil
}

// ClearHistory removes every history entry and reports how many were removed.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM stories")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// FindHistory ranks history entries by textual similarity of their prompt
// and story to query. Entries sharing no terms with query are omitted.
func (s *Store) FindHistory(ctx context.Context, query string) ([]StoryRecord, error) {
	if strings.TrimSpace(query) == "" {
		return s.ListHistory(ctx)
	}
	history, err := s.ListHistory(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]string, len(history))
	for i, rec := range history {
		docs[i] = rec.Prompt + " " + rec.Story
	}
	matches := textutil.Rank(query, docs)
	out := make([]StoryRecord, 0, len(matches))
	for _, m := range matches {
		out = append(out, history[m.Index])
	}
	return out, nil
}
