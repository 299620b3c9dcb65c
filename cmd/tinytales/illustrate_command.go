package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIllustrateCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "illustrate <story-id>",
		Short: "Reload a story from history and generate its illustrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storyID, err := requireArg(args, "story id")
			if err != nil {
				return err
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
			if _, _, err := rt.Manager.Open(cmd.Context(), storyID); err != nil {
				return err
			}
			reporter := newProgressReporter(cmd.ErrOrStderr(), "Illustrating", jsonOutput)
			session, summary, err := illustrateCurrent(cmd.Context(), rt, userID, reporter)
			if err != nil {
				return err
			}
			if jsonOutput {
				result := newSessionOutput(session)
				result.Summary = &summaryOutput{Resolved: summary.Resolved, Failed: summary.Failed, Stopped: summary.Stopped}
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			printSession(out, session)
			fmt.Fprintln(out)
			printSummary(out, summary, session)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	addUserFlag(cmd, &userID)
	return cmd
}
