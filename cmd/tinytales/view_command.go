package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tinytales/internal/viewer"
)

func newViewCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var noIllustrate bool

	cmd := &cobra.Command{
		Use:   "view [story-id]",
		Short: "Page through a story in the terminal slideshow",
		Long:  "Open a story from history in the slideshow viewer. Without an id, pick one from a searchable list.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			storyID := ""
			if len(args) == 1 {
				storyID, err = requireArg(args, "story id")
				if err != nil {
					return err
				}
			} else {
				records, err := rt.Store.ListHistory(cmd.Context())
				if err != nil {
					return err
				}
				if len(records) == 0 {
					return errors.New("no stories in history yet; run `tinytales generate` first")
				}
				record, ok, err := viewer.Pick(cmd.Context(), records)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				storyID = record.ID
			}

			session, _, err := rt.Manager.Open(cmd.Context(), storyID)
			if err != nil {
				return err
			}
			illustrate := !noIllustrate && session.Pending()
			if illustrate && rt.Config.RequireGenAI() != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "No GenAI key configured; showing the story without illustrations")
				illustrate = false
			}
			return viewSession(cmd.Context(), rt, session, illustrate, userID)
		},
	}
	cmd.Flags().BoolVar(&noIllustrate, "no-illustrate", false, "Show the story without generating illustrations")
	addUserFlag(cmd, &userID)
	return cmd
}
