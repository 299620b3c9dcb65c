package store

import (
	"context"
	"fmt"
	"time"

	"tinytales/internal/story"
)

const day = 24 * time.Hour

func intRef(v int) *int { return &v }

func samplePosts(now time.Time) []StoryRecord {
	return []StoryRecord{
		{
			ID:       "mock-blog-1",
			Prompt:   "The Adventure of the Lost Sparkle Ball",
			Language: story.English,
			Story:    "Once upon a time, in a cozy little house, lived a tiny calico cat named Pip. Pip's most prized possession was a sparkle ball. One day, it rolled under the giant human sofa! Pip, with a brave meow, ventured into the dusty darkness. After a perilous journey past forgotten socks and giant dust bunnies, Pip triumphantly returned with the sparkle ball, a hero in his own tiny eyes.",
			Sentences: []string{
				"Once upon a time, in a cozy little house, lived a tiny calico cat named Pip.",
				"Pip's most prized possession was a sparkle ball.",
				"One day, it rolled under the giant human sofa!",
			},
			Timestamp: now.Add(-2 * day),
			Likes:     15,
			Comments: []Comment{
				{ID: "mock-c1-1", StoryID: "mock-blog-1", Author: "ReaderCat1", Text: "Great story!", Timestamp: now.Add(-day)},
			},
		},
		{
			ID:       "mock-blog-2",
			Prompt:   "नन्ही बिल्ली और उड़ता पत्ता (The Tiny Cat and the Flying Leaf)",
			Language: story.Hindi,
			Story:    "एक छोटी सी भूरी बिल्ली थी, जिसका नाम था मिनी। एक दिन मिनी ने एक उड़ता हुआ पत्ता देखा। वह पत्ता हवा में नाच रहा था। मिनी उसके पीछे भागी, उसे पकड़ने की कोशिश में। पत्ता कभी ऊपर, कभी नीचे, और मिनी उसके साथ-साथ। आखिर में पत्ता एक ऊँचे पेड़ पर अटक गया, और मिनी नीचे से उसे देखती रह गई।",
			Sentences: []string{
				"एक छोटी सी भूरी बिल्ली थी, जिसका नाम था मिनी।",
				"एक दिन मिनी ने एक उड़ता हुआ पत्ता देखा।",
			},
			Timestamp: now.Add(-5 * day),
			Likes:     8,
			Comments:  []Comment{},
		},
	}
}

func sampleUsers(now time.Time) []User {
	return []User{
		{ID: "user-1", Name: "Alice Wonderland", Email: "alice@example.com", Status: StatusApproved, SignupDate: now.Add(-5 * day),
			Access: Access{CanGenerateStory: true, CanGenerateIllustration: true, CanExportPDF: true, CanExportGIF: true, CanExportVideo: true, IllustrationGenerationLimit: intRef(50)}},
		{ID: "user-2", Name: "Bob The Builder", Email: "bob@example.com", Status: StatusPending, SignupDate: now.Add(-2 * day),
			Access: Access{CanGenerateStory: true, CanGenerateIllustration: true, CanExportPDF: true, CanExportGIF: true, CanExportVideo: true, StoryGenerationLimit: intRef(10), IllustrationGenerationLimit: intRef(10)}},
		{ID: "user-3", Name: "Charlie Cat", Email: "charlie@example.com", Status: StatusApproved, SignupDate: now.Add(-10 * day),
			Access: Access{CanGenerateIllustration: true, CanExportGIF: true, CanExportVideo: true, StoryGenerationLimit: intRef(0)}},
		{ID: "user-4", Name: "Diana Dreamer", Email: "diana@example.com", Status: StatusPending, SignupDate: now.Add(-day),
			Access: Access{CanGenerateStory: true, CanExportPDF: true, IllustrationGenerationLimit: intRef(0)}},
	}
}

// SeedBlog publishes the sample posts when the blog is empty. It reports how
// many posts were added.
func (s *Store) SeedBlog(ctx context.Context) (int, error) {
	count, err := s.count(ctx, "blog_posts")
	if err != nil || count > 0 {
		return 0, err
	}
	posts := samplePosts(s.now().UTC())
	for _, post := range posts {
		if err := s.insertPost(ctx, post); err != nil {
			return 0, fmt.Errorf("seed blog: %w", err)
		}
	}
	return len(posts), nil
}

// SeedUsers inserts the sample user records when there are none.
func (s *Store) SeedUsers(ctx context.Context) (int, error) {
	count, err := s.count(ctx, "users")
	if err != nil || count > 0 {
		return 0, err
	}
	users := sampleUsers(s.now().UTC())
	for _, u := range users {
		if _, err := s.CreateUser(ctx, u); err != nil {
			return 0, fmt.Errorf("seed users: %w", err)
		}
	}
	return len(users), nil
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
