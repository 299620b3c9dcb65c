package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateIllustration(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateSpeech(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireGenAI reports a configuration error when generation credentials are
// missing. Commands that never call the provider skip this check.
func (c *Config) RequireGenAI() error {
	if c.GenAI.APIKey != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/tinytales/config.toml"
	}
	return fmt.Errorf("genai.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'tinytales config init')", defaultPath)
}

func (c *Config) validateIllustration() error {
	if c.Illustration.MaxRetries < 0 {
		return errors.New("illustration.max_retries must be zero or positive")
	}
	if c.Illustration.InitialBackoffSeconds <= 0 {
		return errors.New("illustration.initial_backoff_seconds must be positive")
	}
	if c.Illustration.MaxBackoffSeconds < c.Illustration.InitialBackoffSeconds {
		return errors.New("illustration.max_backoff_seconds must be at least initial_backoff_seconds")
	}
	if c.Illustration.MinBackoffSeconds < 0 {
		return errors.New("illustration.min_backoff_seconds must be zero or positive")
	}
	for _, status := range c.Illustration.RateLimitStatuses {
		if status < 100 || status > 599 {
			return fmt.Errorf("illustration.rate_limit_statuses: %d is not an HTTP status", status)
		}
	}
	for _, pattern := range c.Illustration.RateLimitPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("illustration.rate_limit_patterns: %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		return errors.New("export.width and export.height must be positive")
	}
	if c.Export.FrameRate <= 0 {
		return errors.New("export.frame_rate must be positive")
	}
	if c.Export.DrainMS < 0 || c.Export.FlushMS < 0 || c.Export.SilentPauseMS < 0 {
		return errors.New("export drain, flush, and pause intervals must not be negative")
	}
	if c.Export.PlaybackFloorMS <= 0 {
		return errors.New("export.playback_floor_ms must be positive")
	}
	for name, value := range map[string]string{"backdrop_color": c.Export.BackdropColor, "card_color": c.Export.CardColor} {
		if value == "" {
			continue
		}
		if !hexColorPattern.MatchString(value) {
			return fmt.Errorf("export.%s: %q is not a #RRGGBB color", name, value)
		}
	}
	return nil
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func (c *Config) validateSpeech() error {
	switch c.Speech.AudioEncoding {
	case "LINEAR16", "MP3", "OGG_OPUS":
		return nil
	default:
		return fmt.Errorf("speech.audio_encoding: unsupported value %q", c.Speech.AudioEncoding)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
