package store

import (
	"time"

	"tinytales/internal/story"
)

// StoryRecord is a saved story. History entries and blog posts share the
// shape; only posts carry likes and comments.
type StoryRecord struct {
	ID        string         `json:"id"`
	StoryID   string         `json:"storyId,omitempty"`
	Prompt    string         `json:"prompt"`
	Language  story.Language `json:"language"`
	Story     string         `json:"story"`
	Sentences []string       `json:"sentences"`
	Timestamp time.Time      `json:"timestamp"`
	Likes     int            `json:"likes"`
	Comments  []Comment      `json:"comments"`
}

// Comment is a reader comment on a published post.
type Comment struct {
	ID        string    `json:"id"`
	StoryID   string    `json:"storyId"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultAuthor is used for comments posted without a name.
const DefaultAuthor = "Anonymous"

// UserStatus is the approval state of a user record.
type UserStatus string

const (
	StatusApproved UserStatus = "approved"
	StatusPending  UserStatus = "pending"
)

// ParseUserStatus validates a status string.
func ParseUserStatus(value string) (UserStatus, bool) {
	switch UserStatus(value) {
	case StatusApproved:
		return StatusApproved, true
	case StatusPending:
		return StatusPending, true
	}
	return "", false
}

// Access is the per-user capability set. A nil limit means unlimited.
type Access struct {
	CanGenerateStory            bool `json:"canGenerateStory"`
	CanGenerateIllustration     bool `json:"canGenerateIllustration"`
	CanExportPDF                bool `json:"canExportPdf"`
	CanExportGIF                bool `json:"canExportGif"`
	CanExportVideo              bool `json:"canExportVideo"`
	StoryGenerationLimit        *int `json:"storyGenerationLimit"`
	IllustrationGenerationLimit *int `json:"illustrationGenerationLimit"`
}

// FullAccess returns the default capability set: everything allowed, no limits.
func FullAccess() Access {
	return Access{
		CanGenerateStory:        true,
		CanGenerateIllustration: true,
		CanExportPDF:            true,
		CanExportGIF:            true,
		CanExportVideo:          true,
	}
}

// User is an admin-managed user record.
type User struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Status     UserStatus `json:"status"`
	SignupDate time.Time  `json:"signupDate"`
	Access
}

// NewUser returns a pending user with full access.
func NewUser(name, email string) User {
	return User{Name: name, Email: email, Status: StatusPending, Access: FullAccess()}
}

// Limits are the global switches. A true field means the admin disabled the
// feature for everyone.
type Limits struct {
	StoryGeneration        bool `json:"storyGeneration"`
	IllustrationGeneration bool `json:"illustrationGeneration"`
	PDFExport              bool `json:"pdfExport"`
	GIFExport              bool `json:"gifExport"`
	VideoExport            bool `json:"videoExport"`
}

// DataSource names where the admin wants library data to live.
type DataSource string

const (
	DataSourceLocal    DataSource = "local"
	DataSourceFirebase DataSource = "firebase"
	DataSourceCustom   DataSource = "custom"
)

// ParseDataSource validates a data source name.
func ParseDataSource(value string) (DataSource, bool) {
	switch DataSource(value) {
	case DataSourceLocal, "":
		return DataSourceLocal, true
	case DataSourceFirebase:
		return DataSourceFirebase, true
	case DataSourceCustom:
		return DataSourceCustom, true
	}
	return "", false
}

// SiteSettings holds the admin's integration settings.
type SiteSettings struct {
	DataSource      DataSource `json:"dataSource"`
	FirebaseConfig  string     `json:"firebaseConfig"`
	CustomAPIURL    string     `json:"customApiUrl"`
	CustomAPIKey    string     `json:"customApiKey"`
	AIServiceAPIKey string     `json:"aiServiceApiKey"`
}
