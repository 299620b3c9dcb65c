package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tinytales/internal/story"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func intPointer(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

// textOnly keeps sentence text and drops anything that looks like image data.
func textOnly(sentences []string) []string {
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" || story.IsDataURI(s) || story.IsPlaceholder(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func encodeSentences(sentences []string) (string, error) {
	data, err := json.Marshal(textOnly(sentences))
	if err != nil {
		return "", fmt.Errorf("encode sentences: %w", err)
	}
	return string(data), nil
}

func decodeSentences(raw string) []string {
	var out []string
	if raw == "" {
		return []string{}
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}

type rowScanner interface{ Scan(dest ...any) error }

const storyColumns = "id, prompt, language, story, sentences_json, created_at"

func scanStory(scanner rowScanner) (StoryRecord, error) {
	var (
		rec        StoryRecord
		language   string
		sentences  string
		createdRaw string
	)
	if err := scanner.Scan(&rec.ID, &rec.Prompt, &language, &rec.Story, &sentences, &createdRaw); err != nil {
		return StoryRecord{}, err
	}
	rec.Language = story.Language(language)
	rec.Sentences = decodeSentences(sentences)
	rec.Comments = []Comment{}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.Timestamp = created
	}
	return rec, nil
}

const postColumns = "id, story_id, title, language, story, sentences_json, likes, created_at"

func scanPost(scanner rowScanner) (StoryRecord, error) {
	var (
		rec        StoryRecord
		storyID    sql.NullString
		language   string
		sentences  string
		createdRaw string
	)
	if err := scanner.Scan(&rec.ID, &storyID, &rec.Prompt, &language, &rec.Story, &sentences, &rec.Likes, &createdRaw); err != nil {
		return StoryRecord{}, err
	}
	rec.StoryID = storyID.String
	rec.Language = story.Language(language)
	rec.Sentences = decodeSentences(sentences)
	rec.Comments = []Comment{}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.Timestamp = created
	}
	return rec, nil
}

const commentColumns = "id, post_id, author, body, created_at"

func scanComment(scanner rowScanner) (Comment, error) {
	var (
		c          Comment
		createdRaw string
	)
	if err := scanner.Scan(&c.ID, &c.StoryID, &c.Author, &c.Text, &createdRaw); err != nil {
		return Comment{}, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		c.Timestamp = created
	}
	return c, nil
}

const userColumns = "id, name, email, status, signup_date, can_generate_story, can_generate_illustration, can_export_pdf, can_export_gif, can_export_video, story_generation_limit, illustration_generation_limit"

func scanUser(scanner rowScanner) (User, error) {
	var (
		u          User
		status     string
		signupRaw  string
		canStory   int
		canIllus   int
		canPDF     int
		canGIF     int
		canVideo   int
		storyLimit sql.NullInt64
		illusLimit sql.NullInt64
	)
	if err := scanner.Scan(&u.ID, &u.Name, &u.Email, &status, &signupRaw,
		&canStory, &canIllus, &canPDF, &canGIF, &canVideo, &storyLimit, &illusLimit); err != nil {
		return User{}, err
	}
	u.Status = UserStatus(status)
	if signup, err := parseTimeString(signupRaw); err == nil {
		u.SignupDate = signup
	}
	u.CanGenerateStory = canStory != 0
	u.CanGenerateIllustration = canIllus != 0
	u.CanExportPDF = canPDF != 0
	u.CanExportGIF = canGIF != 0
	u.CanExportVideo = canVideo != 0
	u.StoryGenerationLimit = intPointer(storyLimit)
	u.IllustrationGenerationLimit = intPointer(illusLimit)
	return u, nil
}
