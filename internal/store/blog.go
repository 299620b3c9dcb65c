package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tinytales/internal/services"
)

// Publish copies history entry storyID into a new blog post titled title.
// Posts start with no likes or comments; only the newest posts up to the blog
// limit are kept.
func (s *Store) Publish(ctx context.Context, storyID, title string) (StoryRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return StoryRecord{}, services.Wrap(services.ErrValidation, "store", "publish", "blog title is required", nil)
	}
	source, err := s.GetStory(ctx, storyID)
	if err != nil {
		return StoryRecord{}, err
	}
	post := source
	post.ID = newID("blog")
	post.StoryID = source.ID
	post.Prompt = title
	post.Timestamp = s.now().UTC()
	post.Likes = 0
	post.Comments = []Comment{}
	if err := s.insertPost(ctx, post); err != nil {
		return StoryRecord{}, err
	}
	return post, nil
}

func (s *Store) insertPost(ctx context.Context, post StoryRecord) error {
	encoded, err := encodeSentences(post.Sentences)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO blog_posts ("+postColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			post.ID, post.StoryID, post.Prompt, string(post.Language), post.Story, encoded, post.Likes, formatTime(post.Timestamp),
		); err != nil {
			return fmt.Errorf("insert blog post: %w", err)
		}
		for _, c := range post.Comments {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO comments ("+commentColumns+") VALUES (?, ?, ?, ?, ?)",
				c.ID, post.ID, c.Author, c.Text, formatTime(c.Timestamp),
			); err != nil {
				return fmt.Errorf("insert comment: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM blog_posts WHERE id NOT IN (SELECT id FROM blog_posts ORDER BY created_at DESC, rowid DESC LIMIT ?)",
			s.blogLimit,
		); err != nil {
			return fmt.Errorf("trim blog: %w", err)
		}
		return nil
	})
}

// ListBlog returns published posts with their comments, most recent first.
func (s *Store) ListBlog(ctx context.Context) ([]StoryRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+postColumns+" FROM blog_posts ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("list blog: %w", err)
	}
	posts := []StoryRecord{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan blog post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	comments, err := s.allComments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if list, ok := comments[posts[i].ID]; ok {
			posts[i].Comments = list
		}
	}
	return posts, nil
}

// GetPost loads one published post with its comments.
func (s *Store) GetPost(ctx context.Context, id string) (StoryRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM blog_posts WHERE id = ?", id)
	post, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoryRecord{}, postNotFound("get post", id)
	}
	if err != nil {
		return StoryRecord{}, fmt.Errorf("get post: %w", err)
	}
	comments, err := s.ListComments(ctx, id)
	if err != nil {
		return StoryRecord{}, err
	}
	post.Comments = comments
	return post, nil
}

// DeletePost removes a published post and its comments.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM blog_posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return postNotFound("delete post", id)
	}
	return nil
}

// AddComment appends a comment to a published post. A blank author becomes
// DefaultAuthor; blank text is rejected.
func (s *Store) AddComment(ctx context.Context, postID, author, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, services.Wrap(services.ErrValidation, "store", "add comment", "comment text cannot be empty", nil)
	}
	author = strings.TrimSpace(author)
	if author == "" {
		author = DefaultAuthor
	}
	c := Comment{
		ID:        newID("comment"),
		StoryID:   postID,
		Author:    author,
		Text:      text,
		Timestamp: s.now().UTC(),
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM blog_posts WHERE id = ?", postID).Scan(&exists); err != nil {
			return fmt.Errorf("check post: %w", err)
		}
		if exists == 0 {
			return postNotFound("add comment", postID)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO comments ("+commentColumns+") VALUES (?, ?, ?, ?, ?)",
			c.ID, c.StoryID, c.Author, c.Text, formatTime(c.Timestamp),
		); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// ListComments returns a post's comments in the order they were posted.
func (s *Store) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE post_id = ? ORDER BY created_at, rowid", postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	out := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) allComments(ctx context.Context) (map[string][]Comment, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+commentColumns+" FROM comments ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]Comment)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out[c.StoryID] = append(out[c.StoryID], c)
	}
	return out, rows.Err()
}

// Like increments a post's like count and returns the new total.
func (s *Store) Like(ctx context.Context, postID string) (int, error) {
	var likes int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE blog_posts SET likes = likes + 1 WHERE id = ?", postID)
		if err != nil {
			return fmt.Errorf("like post: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return postNotFound("like", postID)
		}
		return tx.QueryRowContext(ctx, "SELECT likes FROM blog_posts WHERE id = ?", postID).Scan(&likes)
	})
	if err != nil {
		return 0, err
	}
	return likes, nil
}

func postNotFound(op, id string) error {
	return services.Wrap(services.ErrNotFound, "store", op, fmt.Sprintf("blog post %q not found", id), nil)
}
