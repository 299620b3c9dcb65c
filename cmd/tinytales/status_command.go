package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tinytales/internal/admin"
	"tinytales/internal/config"
	"tinytales/internal/daemonrun"
	"tinytales/internal/deps"
	"tinytales/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			section := func(title string, lines []string) {
				for _, line := range renderSectionHeader(title, colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range lines {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)
			}

			section("System Status", []string{
				renderStatusLine("Config", statusInfo, ctx.configPath, colorize),
				daemonStatusLine(cmd.Context(), cfg, colorize),
				adminStatusLine(cfg, colorize),
				notifyStatusLine(cfg, colorize),
			})
			section("Dependencies", dependencyLines(deps.Check(cfg), colorize))

			var checks []preflight.Result
			if offline {
				checks = []preflight.Result{
					preflight.CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
					preflight.CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
					preflight.CheckSpeech(cfg),
				}
			} else {
				checks = preflight.RunAll(cmd.Context(), cfg)
			}
			section("Preflight", preflightLines(checks, colorize))

			rt, err := ctx.ensureRuntime()
			if err != nil {
				section("Library", []string{renderStatusLine("Database", statusError, err.Error(), colorize)})
				return nil
			}
			section("Library", libraryLines(cmd.Context(), rt, colorize))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip checks that call the GenAI provider")
	return cmd
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
			detail += " (video export unavailable)"
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func libraryLines(ctx context.Context, rt *daemonrun.Components, colorize bool) []string {
	lines := []string{renderStatusLine("Database", statusInfo, rt.Store.Path(), colorize)}
	if history, err := rt.Store.ListHistory(ctx); err == nil {
		lines = append(lines, renderStatusLine("History", statusInfo, fmt.Sprintf("%d of %d stories", len(history), rt.Config.Library.HistoryLimit), colorize))
	}
	if posts, err := rt.Store.ListBlog(ctx); err == nil {
		lines = append(lines, renderStatusLine("Blog", statusInfo, pluralize(len(posts), "post"), colorize))
	}
	if users, err := rt.Store.ListUsers(ctx); err == nil {
		lines = append(lines, renderStatusLine("Users", statusInfo, pluralize(len(users), "user"), colorize))
	}
	if limits, err := rt.Store.GetLimits(ctx); err == nil {
		access := admin.Access{Limits: limits}
		var off []string
		for _, feature := range admin.Features() {
			if access.Disabled(feature) {
				off = append(off, string(feature))
			}
		}
		if len(off) == 0 {
			lines = append(lines, renderStatusLine("Feature switches", statusOK, "all enabled", colorize))
		} else {
			lines = append(lines, renderStatusLine("Feature switches", statusWarn, "disabled: "+strings.Join(off, ", "), colorize))
		}
	}
	return lines
}

// daemonStatusLine probes the daemon's health route on the configured bind.
func daemonStatusLine(ctx context.Context, cfg *config.Config, colorize bool) string {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" || strings.HasSuffix(bind, ":0") {
		return renderStatusLine("Daemon", statusInfo, "API disabled", colorize)
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, "http://"+bind+"/api/health", nil)
	if err != nil {
		return renderStatusLine("Daemon", statusWarn, err.Error(), colorize)
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return renderStatusLine("Daemon", statusInfo, "Not running", colorize)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return renderStatusLine("Daemon", statusWarn, fmt.Sprintf("%s answered %d", bind, resp.StatusCode), colorize)
	}
	return renderStatusLine("Daemon", statusOK, "Running on "+bind, colorize)
}

func adminStatusLine(cfg *config.Config, colorize bool) string {
	switch {
	case strings.TrimSpace(cfg.Admin.Password) == "":
		return renderStatusLine("Admin", statusWarn, "Locked (no password configured)", colorize)
	case cfg.UsesDefaultAdminPassword():
		return renderStatusLine("Admin", statusWarn, "Using the default password", colorize)
	}
	return renderStatusLine("Admin", statusOK, "Password configured", colorize)
}

func notifyStatusLine(cfg *config.Config, colorize bool) string {
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return renderStatusLine("Notifications", statusInfo, "Disabled", colorize)
	}
	return renderStatusLine("Notifications", statusOK, cfg.Notifications.NtfyTopic, colorize)
}
