package api

import (
	"time"

	"tinytales/internal/export"
	"tinytales/internal/store"
	"tinytales/internal/story"
	"tinytales/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromSentence converts a slideshow sentence.
func FromSentence(s story.Sentence) Sentence {
	return Sentence{
		ID:             s.ID,
		Text:           s.Text,
		Language:       string(s.Language),
		ImageURL:       s.ImageURL,
		IsImageLoading: s.IsImageLoading,
		ImageError:     s.ImageError,
	}
}

// FromSession converts the active session, images included.
func FromSession(s workflow.Session) Session {
	dto := Session{
		StoryID:     s.StoryID,
		Prompt:      s.Prompt,
		Language:    string(s.Language),
		Story:       s.Story,
		Progress:    s.Progress,
		Illustrated: s.Illustrated(),
		Pending:     s.Pending(),
		Limited:     s.Limited,
		Sentences:   make([]Sentence, len(s.Sentences)),
	}
	for i, sentence := range s.Sentences {
		dto.Sentences[i] = FromSentence(sentence)
	}
	return dto
}

// FromComment converts a post comment.
func FromComment(c store.Comment) Comment {
	return Comment{
		ID:        c.ID,
		StoryID:   c.StoryID,
		Author:    c.Author,
		Text:      c.Text,
		Timestamp: formatTime(c.Timestamp),
	}
}

// FromStory converts a history entry or post.
func FromStory(r store.StoryRecord) Story {
	dto := Story{
		ID:        r.ID,
		StoryID:   r.StoryID,
		Prompt:    r.Prompt,
		Language:  string(r.Language),
		Story:     r.Story,
		Sentences: append([]string{}, r.Sentences...),
		Timestamp: formatTime(r.Timestamp),
		Likes:     r.Likes,
		Comments:  make([]Comment, len(r.Comments)),
	}
	for i, c := range r.Comments {
		dto.Comments[i] = FromComment(c)
	}
	return dto
}

// FromStories converts a list of records.
func FromStories(records []store.StoryRecord) []Story {
	out := make([]Story, len(records))
	for i, r := range records {
		out[i] = FromStory(r)
	}
	return out
}

// FromUser converts a user record.
func FromUser(u store.User) User {
	return User{
		ID:                          u.ID,
		Name:                        u.Name,
		Email:                       u.Email,
		Status:                      string(u.Status),
		SignupDate:                  formatTime(u.SignupDate),
		CanGenerateStory:            u.CanGenerateStory,
		CanGenerateIllustration:     u.CanGenerateIllustration,
		CanExportPDF:                u.CanExportPDF,
		CanExportGIF:                u.CanExportGIF,
		CanExportVideo:              u.CanExportVideo,
		StoryGenerationLimit:        u.StoryGenerationLimit,
		IllustrationGenerationLimit: u.IllustrationGenerationLimit,
	}
}

// FromUsers converts a list of users.
func FromUsers(users []store.User) []User {
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = FromUser(u)
	}
	return out
}

// FromArtifact converts an export result.
func FromArtifact(a export.Artifact) Artifact {
	return Artifact{
		Format:   string(a.Format),
		FileName: a.FileName(),
		Path:     a.Path,
		MimeType: a.MimeType,
		Size:     a.Size,
		Frames:   a.Frames,
		Skipped:  a.Skipped,
		Failed:   a.Failed,
	}
}

// FromStatusSummary converts the workflow status.
func FromStatusSummary(s workflow.StatusSummary) Status {
	dto := Status{
		Working:     s.Working,
		Exporting:   s.Exporting,
		StoryID:     s.StoryID,
		Prompt:      s.Prompt,
		Sentences:   s.Sentences,
		Illustrated: s.Illustrated,
		Pending:     s.Pending,
		LastError:   s.LastError,
	}
	if s.LastExport != nil {
		artifact := FromArtifact(*s.LastExport)
		dto.LastExport = &artifact
	}
	return dto
}
