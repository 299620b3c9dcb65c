package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Sentence is one slideshow page.
type Sentence struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	Language       string `json:"lang"`
	ImageURL       string `json:"imageUrl,omitempty"`
	IsImageLoading bool   `json:"isImageLoading"`
	ImageError     string `json:"imageError,omitempty"`
}

// Session is the active story.
type Session struct {
	StoryID     string     `json:"storyId"`
	Prompt      string     `json:"prompt"`
	Language    string     `json:"language"`
	Story       string     `json:"story"`
	Progress    string     `json:"progress,omitempty"`
	Illustrated bool       `json:"allIllustrationsDone"`
	Pending     bool       `json:"illustrationsPending"`
	Limited     bool       `json:"adminLimited,omitempty"`
	Sentences   []Sentence `json:"sentences"`
}

// Comment is a reader comment on a post.
type Comment struct {
	ID        string `json:"id"`
	StoryID   string `json:"storyId"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Story is a history entry or a published post.
type Story struct {
	ID        string    `json:"id"`
	StoryID   string    `json:"storyId,omitempty"`
	Prompt    string    `json:"prompt"`
	Language  string    `json:"language"`
	Story     string    `json:"story"`
	Sentences []string  `json:"sentences"`
	Timestamp string    `json:"timestamp"`
	Likes     int       `json:"likes"`
	Comments  []Comment `json:"comments"`
}

// User is an admin-managed user record.
type User struct {
	ID                          string `json:"id"`
	Name                        string `json:"name"`
	Email                       string `json:"email"`
	Status                      string `json:"status"`
	SignupDate                  string `json:"signupDate"`
	CanGenerateStory            bool   `json:"canGenerateStory"`
	CanGenerateIllustration     bool   `json:"canGenerateIllustration"`
	CanExportPDF                bool   `json:"canExportPdf"`
	CanExportGIF                bool   `json:"canExportGif"`
	CanExportVideo              bool   `json:"canExportVideo"`
	StoryGenerationLimit        *int   `json:"storyGenerationLimit"`
	IllustrationGenerationLimit *int   `json:"illustrationGenerationLimit"`
}

// Artifact describes a written export.
type Artifact struct {
	Format   string `json:"format"`
	FileName string `json:"fileName"`
	Path     string `json:"path"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size"`
	Frames   int    `json:"frames"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Status summarizes the daemon and the active session.
type Status struct {
	Running      bool               `json:"running"`
	Working      bool               `json:"working"`
	Exporting    bool               `json:"exporting"`
	StoryID      string             `json:"storyId,omitempty"`
	Prompt       string             `json:"prompt,omitempty"`
	Sentences    int                `json:"sentences"`
	Illustrated  bool               `json:"allIllustrationsDone"`
	Pending      bool               `json:"illustrationsPending"`
	LastError    string             `json:"lastError,omitempty"`
	LastExport   *Artifact          `json:"lastExport,omitempty"`
	DatabasePath string             `json:"databasePath"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}

// Error is the error envelope every failing endpoint returns.
type Error struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
