package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGenAI()
	c.normalizeSpeech()
	c.normalizeIllustration()
	if err := c.normalizeExport(); err != nil {
		return err
	}
	c.normalizeLibrary()
	c.normalizeAdmin()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.Database, err = expandPath(strings.TrimSpace(c.Paths.Database)); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("TINYTALES_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeGenAI() {
	c.GenAI.APIKey = strings.TrimSpace(c.GenAI.APIKey)
	if c.GenAI.APIKey == "" {
		c.GenAI.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	c.GenAI.BaseURL = strings.TrimRight(strings.TrimSpace(c.GenAI.BaseURL), "/")
	if c.GenAI.BaseURL == "" {
		c.GenAI.BaseURL = defaultGenAIBaseURL
	}
	c.GenAI.StoryModel = strings.TrimSpace(c.GenAI.StoryModel)
	if c.GenAI.StoryModel == "" {
		c.GenAI.StoryModel = defaultStoryModel
	}
	c.GenAI.ImageModel = strings.TrimSpace(c.GenAI.ImageModel)
	if c.GenAI.ImageModel == "" {
		c.GenAI.ImageModel = defaultImageModel
	}
	if c.GenAI.TimeoutSeconds <= 0 {
		c.GenAI.TimeoutSeconds = defaultGenAITimeoutSeconds
	}
	if c.GenAI.TransportRetries < 0 {
		c.GenAI.TransportRetries = 0
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = firstEnv("GOOGLE_TTS_API_KEY")
	}
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = c.GenAI.APIKey
	}
	c.Speech.BaseURL = strings.TrimRight(strings.TrimSpace(c.Speech.BaseURL), "/")
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	c.Speech.AudioEncoding = strings.ToUpper(strings.TrimSpace(c.Speech.AudioEncoding))
	if c.Speech.AudioEncoding == "" {
		c.Speech.AudioEncoding = defaultSpeechEncoding
	}
	if c.Speech.SampleRateHz <= 0 {
		c.Speech.SampleRateHz = defaultSpeechSampleRate
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}
}

func (c *Config) normalizeIllustration() {
	if len(c.Illustration.RateLimitStatuses) == 0 {
		c.Illustration.RateLimitStatuses = append([]int(nil), defaultRateLimitStatuses...)
	}
	patterns := make([]string, 0, len(c.Illustration.RateLimitPatterns))
	for _, pattern := range c.Illustration.RateLimitPatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Illustration.RateLimitPatterns = patterns
}

func (c *Config) normalizeExport() error {
	var err error
	if c.Export.FontPath, err = expandPath(strings.TrimSpace(c.Export.FontPath)); err != nil {
		return fmt.Errorf("export.font_path: %w", err)
	}
	c.Export.BackdropColor = strings.TrimSpace(c.Export.BackdropColor)
	c.Export.CardColor = strings.TrimSpace(c.Export.CardColor)
	if c.Export.GIFFrameDelayMS <= 0 {
		c.Export.GIFFrameDelayMS = defaultGIFFrameDelayMS
	}
	if c.Export.PDFMargin < 0 {
		c.Export.PDFMargin = defaultPDFMargin
	}
	return nil
}

func (c *Config) normalizeLibrary() {
	if c.Library.HistoryLimit <= 0 {
		c.Library.HistoryLimit = defaultHistoryLimit
	}
	if c.Library.BlogLimit <= 0 {
		c.Library.BlogLimit = defaultBlogLimit
	}
}

func (c *Config) normalizeAdmin() {
	if value, ok := os.LookupEnv("TINYTALES_ADMIN_PASSWORD"); ok && strings.TrimSpace(value) != "" {
		c.Admin.Password = strings.TrimSpace(value)
		return
	}
	if strings.TrimSpace(c.Admin.Password) == "" {
		c.Admin.Password = defaultAdminPassword
	}
}

// UsesDefaultAdminPassword reports whether the shipped password is still active.
func (c *Config) UsesDefaultAdminPassword() bool {
	return c.Admin.Password == defaultAdminPassword
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = firstEnv("TINYTALES_NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
