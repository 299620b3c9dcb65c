package admin

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"tinytales/internal/store"
)

var historyHeader = []string{
	"ID",
	"Timestamp",
	"Language",
	"Prompt/Title",
	"Full Story Text",
	"Likes Count",
	"Comment Count",
}

var usersHeader = []string{
	"User ID",
	"Name",
	"Email",
	"Status",
	"Signup Date",
	"CanGenerateStory",
	"StoryGenerationLimit",
	"CanGenerateIllustration",
	"IllustrationGenerationLimit",
	"CanExportPdf",
	"CanExportGif",
	"CanExportVideo",
}

const isoMillis = "2006-01-02T15:04:05.000Z"

func isoTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// WriteStoriesCSV writes history entries or blog posts. Nothing is written
// for an empty list.
func WriteStoriesCSV(w io.Writer, records []store.StoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(historyHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.ID,
			isoTime(rec.Timestamp),
			string(rec.Language),
			rec.Prompt,
			rec.Story,
			strconv.Itoa(rec.Likes),
			strconv.Itoa(len(rec.Comments)),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUsersCSV writes user records. Nothing is written for an empty list.
func WriteUsersCSV(w io.Writer, users []store.User) error {
	if len(users) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(usersHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, u := range users {
		row := []string{
			u.ID,
			u.Name,
			u.Email,
			string(u.Status),
			isoTime(u.SignupDate),
			strconv.FormatBool(u.CanGenerateStory),
			optionalInt(u.StoryGenerationLimit),
			strconv.FormatBool(u.CanGenerateIllustration),
			optionalInt(u.IllustrationGenerationLimit),
			strconv.FormatBool(u.CanExportPDF),
			strconv.FormatBool(u.CanExportGIF),
			strconv.FormatBool(u.CanExportVideo),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
