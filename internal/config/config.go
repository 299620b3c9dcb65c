package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	ExportDir string `toml:"export_dir"`
	LogDir    string `toml:"log_dir"`
	Database  string `toml:"database"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// GenAI contains settings for the text and image generation provider.
type GenAI struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	StoryModel       string `toml:"story_model"`
	ImageModel       string `toml:"image_model"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	TransportRetries int    `toml:"transport_retries"`
}

// Speech contains settings for the speech synthesis provider.
type Speech struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	AudioEncoding  string `toml:"audio_encoding"`
	SampleRateHz   int    `toml:"sample_rate_hz"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Illustration contains the rate-limit retry policy for image requests.
type Illustration struct {
	MaxRetries            int      `toml:"max_retries"`
	InitialBackoffSeconds int      `toml:"initial_backoff_seconds"`
	MaxBackoffSeconds     int      `toml:"max_backoff_seconds"`
	MinBackoffSeconds     int      `toml:"min_backoff_seconds"`
	RateLimitStatuses     []int    `toml:"rate_limit_statuses"`
	RateLimitPatterns     []string `toml:"rate_limit_patterns"`
}

// Export contains frame geometry and timing for PDF, GIF, and video output.
type Export struct {
	Width            int    `toml:"width"`
	Height           int    `toml:"height"`
	FrameRate        int    `toml:"frame_rate"`
	GIFFrameDelayMS  int    `toml:"gif_frame_delay_ms"`
	PDFMargin        int    `toml:"pdf_margin"`
	DrainMS          int    `toml:"drain_ms"`
	FlushMS          int    `toml:"flush_ms"`
	SilentPauseMS    int    `toml:"silent_pause_ms"`
	PlaybackFloorMS  int    `toml:"playback_floor_ms"`
	PlaybackMarginMS int    `toml:"playback_margin_ms"`
	BackdropColor    string `toml:"backdrop_color"`
	CardColor        string `toml:"card_color"`
	FontPath         string `toml:"font_path"`
}

// Library contains retention settings for history and published posts.
type Library struct {
	HistoryLimit int  `toml:"history_limit"`
	BlogLimit    int  `toml:"blog_limit"`
	SeedBlog     bool `toml:"seed_blog"`
}

// Admin contains the shared admin password.
type Admin struct {
	Password string `toml:"password"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Story          bool   `toml:"story"`
	Illustrations  bool   `toml:"illustrations"`
	Exports        bool   `toml:"exports"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Tiny Tales.
//
// Configuration sections by subsystem:
//   - Paths: data, export, and log directories plus the local API bind
//   - GenAI: story and illustration provider
//   - Speech: narration provider
//   - Illustration: rate-limit retry policy
//   - Export: frame geometry and recorder timing
//   - Library: history and blog retention
//   - Admin: shared admin password
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	GenAI         GenAI         `toml:"genai"`
	Speech        Speech        `toml:"speech"`
	Illustration  Illustration  `toml:"illustration"`
	Export        Export        `toml:"export"`
	Library       Library       `toml:"library"`
	Admin         Admin         `toml:"admin"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tinytales/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file beside the config or in the
// working directory is loaded first; existing environment variables win.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadEnvFiles(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadEnvFiles(configDir string) error {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	var present []string
	seen := map[string]struct{}{}
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			present = append(present, abs)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tinytales.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, export, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ExportDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	if c.Paths.Database != "" {
		return c.Paths.Database
	}
	return filepath.Join(c.Paths.DataDir, defaultDatabaseName)
}

// LockPath returns the single-instance lock file used by the local API.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "tinytales.lock")
}

// FFmpegBinary returns the ffmpeg executable name used for video muxing and
// audio decoding.
func (c *Config) FFmpegBinary() string {
	if value, ok := os.LookupEnv("TINYTALES_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return "ffmpeg"
}

// RetryDurations returns the illustration backoff policy as durations.
func (c *Config) RetryDurations() (initial, maxDelay, minDelay time.Duration) {
	return time.Duration(c.Illustration.InitialBackoffSeconds) * time.Second,
		time.Duration(c.Illustration.MaxBackoffSeconds) * time.Second,
		time.Duration(c.Illustration.MinBackoffSeconds) * time.Second
}

// Millis converts a millisecond setting to a duration.
func Millis(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
