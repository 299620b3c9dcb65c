// Package daemonrun wires the Tiny Tales runtime: the store, the providers,
// the workflow manager and, for "tinytales serve", the daemon itself.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"tinytales/internal/config"
	"tinytales/internal/daemon"
	"tinytales/internal/export"
	"tinytales/internal/illustration"
	"tinytales/internal/logging"
	"tinytales/internal/narration"
	"tinytales/internal/narrative"
	"tinytales/internal/notifications"
	"tinytales/internal/services/genai"
	"tinytales/internal/store"
	"tinytales/internal/workflow"
)

// Components are the long-lived objects one process needs.
type Components struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	GenAI    *genai.Client
	Speech   narration.Speech
	Exporter *export.Exporter
	Notifier notifications.Service
	Manager  *workflow.Manager
}

// Build opens the store and constructs the providers and the workflow
// manager. Callers must Close the result.
func Build(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if cfg.Library.SeedBlog {
		if added, err := st.SeedBlog(context.Background()); err != nil {
			logger.Warn("seed blog failed", logging.Error(err))
		} else if added > 0 {
			logger.Info("blog seeded with sample posts", logging.Int("posts", added))
		}
	}

	client := genai.NewClient(genai.Config{
		APIKey:           cfg.GenAI.APIKey,
		BaseURL:          cfg.GenAI.BaseURL,
		StoryModel:       cfg.GenAI.StoryModel,
		ImageModel:       cfg.GenAI.ImageModel,
		TimeoutSeconds:   cfg.GenAI.TimeoutSeconds,
		TransportRetries: cfg.GenAI.TransportRetries,
	}, genai.WithLogger(logger))

	classifier, err := illustration.NewClassifier(cfg.Illustration.RateLimitStatuses, cfg.Illustration.RateLimitPatterns)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("rate limit classifier: %w", err)
	}
	fetcher := illustration.NewFetcher(illustration.FromGenAI(client),
		illustration.WithPolicy(illustration.PolicyFromConfig(cfg)),
		illustration.WithClassifier(classifier),
		illustration.WithLogger(logger),
	)

	var speech narration.Speech
	if strings.TrimSpace(cfg.Speech.APIKey) != "" {
		speech = genai.NewSpeechClient(genai.SpeechConfig{
			APIKey:         cfg.Speech.APIKey,
			BaseURL:        cfg.Speech.BaseURL,
			AudioEncoding:  cfg.Speech.AudioEncoding,
			SampleRateHz:   cfg.Speech.SampleRateHz,
			TimeoutSeconds: cfg.Speech.TimeoutSeconds,
		}, nil)
	}
	exporter, err := export.NewExporter(cfg, speech, export.WithLogger(logger))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManager(cfg, st,
		narrative.NewGenerator(client, logger),
		fetcher,
		workflow.WithExporter(exporter),
		workflow.WithNotifier(notifier),
		workflow.WithLogger(logger),
	)
	return &Components{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		GenAI:    client,
		Speech:   speech,
		Exporter: exporter,
		Notifier: notifier,
		Manager:  manager,
	}, nil
}

// Close releases the store.
func (c *Components) Close() error {
	if c == nil || c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "tinytales-daemon.log")
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "tinytales.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	components, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}
	if added, err := components.Store.SeedUsers(signalCtx); err != nil {
		logger.Warn("seed users failed", logging.Error(err))
	} else if added > 0 {
		logger.Info("sample users created", logging.Int("users", added))
	}
	if cfg.UsesDefaultAdminPassword() {
		logging.WarnWithContext(logger, "admin password is the built-in default", "admin_default_password",
			logging.String(logging.FieldErrorHint, "set admin.password or TINYTALES_ADMIN_PASSWORD"),
			logging.String(logging.FieldImpact, "anyone on this machine can use the admin API"),
		)
	}

	d, err := daemon.New(cfg, components.Store, logger, components.Manager)
	if err != nil {
		_ = components.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("tinytales daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	ffmpeg := cfg.FFmpegBinary()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("genai_key_present", strings.TrimSpace(cfg.GenAI.APIKey) != ""),
		logging.Bool("speech_key_present", strings.TrimSpace(cfg.Speech.APIKey) != ""),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
