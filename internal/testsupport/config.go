package testsupport

import (
	"path/filepath"
	"testing"

	"tinytales/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.GenAI.APIKey = "test"
	cfgVal.Speech.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Library.SeedBlog = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGenAI points the generation and speech clients at baseURL.
func WithGenAI(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.GenAI.BaseURL = baseURL
		b.cfg.Speech.BaseURL = baseURL
		b.cfg.GenAI.TransportRetries = 0
	}
}

// WithLibraryLimits overrides the history and blog retention.
func WithLibraryLimits(history, blog int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.HistoryLimit = history
		b.cfg.Library.BlogLimit = blog
	}
}

// WithAdminPassword sets the shared admin password.
func WithAdminPassword(password string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Admin.Password = password
	}
}

// WithAPIToken sets the bearer token required by the local API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
