package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tinytales/internal/config"
	"tinytales/internal/daemonrun"
	"tinytales/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	runtimeOnce sync.Once
	runtime     *daemonrun.Components
	runtimeErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// ensureRuntime opens the library and builds the workflow manager once per
// invocation.
func (c *commandContext) ensureRuntime() (*daemonrun.Components, error) {
	c.runtimeOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.runtimeErr = err
			return
		}
		logger, err := c.newLogger(cfg)
		if err != nil {
			c.runtimeErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.runtime, c.runtimeErr = daemonrun.Build(cfg, logger)
	})
	return c.runtime, c.runtimeErr
}

// newLogger writes to the log directory only, so progress bars and tables on
// the terminal stay readable. --verbose mirrors the log to stderr as well.
func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	if c.verbose != nil && *c.verbose {
		return logging.NewFromConfig(cfg)
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "tinytales.log")},
	})
}

func (c *commandContext) close() error {
	if c.runtime == nil {
		return nil
	}
	err := c.runtime.Close()
	c.runtime = nil
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func requireArg(args []string, name string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New(name + " is required")
	}
	return strings.TrimSpace(args[0]), nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
