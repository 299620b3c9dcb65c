package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tinytales/internal/export"
	"tinytales/internal/illustration"
	"tinytales/internal/services"
	"tinytales/internal/workflow"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		languageFlag string
		userID       string
		noIllustrate bool
		exportFlag   string
		outPath      string
		view         bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a new story and illustrate it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return services.Wrap(services.ErrValidation, "cli", "generate", "please enter a story prompt", nil)
			}
			lang, err := parseLanguageFlag(languageFlag)
			if err != nil {
				return err
			}
			var format export.Format
			if strings.TrimSpace(exportFlag) != "" {
				if format, err = export.ParseFormat(exportFlag); err != nil {
					return err
				}
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireGenAI(); err != nil {
				return err
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			quiet := jsonOutput || view
			reporter := newProgressReporter(cmd.ErrOrStderr(), "Generating story", quiet)
			stop := watchProgress(rt.Manager, reporter)
			session, err := rt.Manager.Generate(cmd.Context(), workflow.GenerateRequest{
				Prompt:   prompt,
				Language: lang,
				UserID:   userID,
			})
			stop()
			reporter.finish()
			if err != nil {
				return err
			}

			if view {
				return viewSession(cmd.Context(), rt, session, !noIllustrate, userID)
			}

			result := newSessionOutput(session)
			var summary illustration.Summary
			if !noIllustrate {
				session, summary, err = illustrateCurrent(cmd.Context(), rt, userID, newProgressReporter(cmd.ErrOrStderr(), "Illustrating", quiet))
				if err != nil {
					return err
				}
				result = newSessionOutput(session)
				result.Summary = &summaryOutput{Resolved: summary.Resolved, Failed: summary.Failed, Stopped: summary.Stopped}
			}
			if format != "" {
				exported, err := exportCurrent(cmd.Context(), rt, format, userID, outPath, newProgressReporter(cmd.ErrOrStderr(), "Exporting", quiet))
				if err != nil {
					return err
				}
				result.Export = &exported
			}

			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printSession(out, session)
			if result.Summary != nil {
				fmt.Fprintln(out)
				printSummary(out, summary, session)
			}
			if result.Export != nil {
				printExport(out, *result.Export)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&languageFlag, "language", "l", "en", "Story language: en (English) or hi (Hindi)")
	cmd.Flags().BoolVar(&noIllustrate, "no-illustrate", false, "Skip illustration generation")
	cmd.Flags().StringVarP(&exportFlag, "export", "e", "", "Export the story as pdf, gif or video")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Copy the export to this path")
	cmd.Flags().BoolVar(&view, "view", false, "Open the slideshow viewer while illustrations load")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	addUserFlag(cmd, &userID)
	return cmd
}
