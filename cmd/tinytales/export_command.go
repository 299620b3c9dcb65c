package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tinytales/internal/admin"
	"tinytales/internal/export"
	"tinytales/internal/illustration"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a story as PDF, GIF or narrated video",
	}
	exportCmd.AddCommand(newExportFormatCommand(ctx, export.FormatPDF, "Render a landscape PDF with one page per sentence"))
	exportCmd.AddCommand(newExportFormatCommand(ctx, export.FormatGIF, "Render an animated GIF with one frame per sentence"))
	exportCmd.AddCommand(newExportFormatCommand(ctx, export.FormatVideo, "Record a narrated slideshow video"))
	return exportCmd
}

func newExportFormatCommand(ctx *commandContext, format export.Format, short string) *cobra.Command {
	var (
		userID     string
		outPath    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   string(format) + " <story-id>",
		Short: short,
		Long:  short + ". Missing illustrations are generated first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storyID, err := requireArg(args, "story id")
			if err != nil {
				return err
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			access, err := admin.Resolve(cmd.Context(), rt.Store, userID)
			if err != nil {
				return err
			}
			if err := access.Require(format.Feature()); err != nil {
				return err
			}
			session, _, err := rt.Manager.Open(cmd.Context(), storyID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if session.Pending() {
				if err := rt.Config.RequireGenAI(); err != nil {
					return err
				}
				var summary illustration.Summary
				session, summary, err = illustrateCurrent(cmd.Context(), rt, userID, newProgressReporter(cmd.ErrOrStderr(), "Illustrating", jsonOutput))
				if err != nil {
					return err
				}
				if !jsonOutput {
					printSummary(out, summary, session)
				}
			}

			result, err := exportCurrent(cmd.Context(), rt, format, userID, outPath, newProgressReporter(cmd.ErrOrStderr(), "Exporting "+string(format), jsonOutput))
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printExport(out, result)
			if result.Frames == 0 {
				fmt.Fprintln(out, "Warning: no illustrated sentences were available")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Copy the export to this path")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	addUserFlag(cmd, &userID)
	return cmd
}
