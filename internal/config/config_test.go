package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"tinytales/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GOOGLE_TTS_API_KEY", "")
	t.Setenv("TINYTALES_ADMIN_PASSWORD", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "tinytales")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "tinytales.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.GenAI.APIKey != "test-key" {
		t.Fatalf("expected genai key from env, got %q", cfg.GenAI.APIKey)
	}
	if cfg.Speech.APIKey != "test-key" {
		t.Fatalf("expected speech key to fall back to genai key, got %q", cfg.Speech.APIKey)
	}
	if cfg.GenAI.ImageModel != "gemini-2.0-flash-exp" {
		t.Fatalf("unexpected image model: %q", cfg.GenAI.ImageModel)
	}
	if cfg.Illustration.MaxRetries != 3 {
		t.Fatalf("unexpected max retries: %d", cfg.Illustration.MaxRetries)
	}
	initial, maxDelay, minDelay := cfg.RetryDurations()
	if initial != 5*time.Second || maxDelay != time.Minute || minDelay != time.Second {
		t.Fatalf("unexpected retry durations: %s %s %s", initial, maxDelay, minDelay)
	}
	if cfg.Export.Width != 600 || cfg.Export.Height != 400 || cfg.Export.FrameRate != 10 {
		t.Fatalf("unexpected export geometry: %+v", cfg.Export)
	}
	if !cfg.UsesDefaultAdminPassword() {
		t.Fatal("expected shipped admin password by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.ExportDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tinytales.toml")

	type payload struct {
		GenAI struct {
			APIKey  string `toml:"api_key"`
			BaseURL string `toml:"base_url"`
		} `toml:"genai"`
		Illustration struct {
			MaxRetries        int      `toml:"max_retries"`
			RateLimitPatterns []string `toml:"rate_limit_patterns"`
		} `toml:"illustration"`
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.GenAI.APIKey = "abc123"
	custom.GenAI.BaseURL = "https://example.com/v1beta/"
	custom.Illustration.MaxRetries = 5
	custom.Illustration.RateLimitPatterns = []string{" quota exceeded ", ""}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")

	encoded, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.GenAI.APIKey != "abc123" {
		t.Fatalf("unexpected api key %q", cfg.GenAI.APIKey)
	}
	if cfg.GenAI.BaseURL != "https://example.com/v1beta" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.GenAI.BaseURL)
	}
	if cfg.Illustration.MaxRetries != 5 {
		t.Fatalf("unexpected max retries %d", cfg.Illustration.MaxRetries)
	}
	if len(cfg.Illustration.RateLimitPatterns) != 1 || cfg.Illustration.RateLimitPatterns[0] != "quota exceeded" {
		t.Fatalf("unexpected patterns %v", cfg.Illustration.RateLimitPatterns)
	}
	if cfg.Paths.DataDir != custom.Paths.DataDir {
		t.Fatalf("unexpected data dir %q", cfg.Paths.DataDir)
	}
	if cfg.Export.Width != config.Default().Export.Width {
		t.Fatalf("expected default export width, got %d", cfg.Export.Width)
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tinytales.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TINYTALES_DOTENV_PROBE=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("TINYTALES_DOTENV_PROBE") })

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := os.Getenv("TINYTALES_DOTENV_PROBE"); got != "from-dotenv" {
		t.Fatalf("expected .env value, got %q", got)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level %q", cfg.Logging.Level)
	}
}

func TestAdminPasswordEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("TINYTALES_ADMIN_PASSWORD", "s3cret")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Admin.Password != "s3cret" {
		t.Fatalf("unexpected password %q", cfg.Admin.Password)
	}
	if cfg.UsesDefaultAdminPassword() {
		t.Fatal("expected override to replace shipped password")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"pattern", func(c *config.Config) { c.Illustration.RateLimitPatterns = []string{"("} }, "rate_limit_patterns"},
		{"status", func(c *config.Config) { c.Illustration.RateLimitStatuses = []int{42} }, "rate_limit_statuses"},
		{"backoff", func(c *config.Config) { c.Illustration.MaxBackoffSeconds = 1 }, "max_backoff_seconds"},
		{"geometry", func(c *config.Config) { c.Export.Width = 0 }, "export.width"},
		{"color", func(c *config.Config) { c.Export.BackdropColor = "white" }, "backdrop_color"},
		{"encoding", func(c *config.Config) { c.Speech.AudioEncoding = "FLAC" }, "audio_encoding"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestRequireGenAI(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireGenAI(); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
	cfg.GenAI.APIKey = "key"
	if err := cfg.RequireGenAI(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Export.GIFFrameDelayMS != 2000 {
		t.Fatalf("unexpected gif delay %d", cfg.Export.GIFFrameDelayMS)
	}
}
