package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinytales/internal/admin"
	"tinytales/internal/config"
	"tinytales/internal/fileutil"
	"tinytales/internal/store"
	"tinytales/internal/textutil"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage generated stories",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryDeleteCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	historyCmd.AddCommand(newHistoryCSVCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var query string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent stories, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			var records []store.StoryRecord
			if strings.TrimSpace(query) != "" {
				records, err = rt.Store.FindHistory(cmd.Context(), query)
			} else {
				records, err = rt.Store.ListHistory(cmd.Context())
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No stories yet")
				return nil
			}
			fmt.Fprintln(out, renderStoryTable(records, false))
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show stories matching this text")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderStoryTable(records []store.StoryRecord, blog bool) string {
	columns := []tableColumn{
		{Header: "ID"},
		{Header: "When"},
		{Header: "Lang"},
		{Header: "Prompt", Wrap: 40},
		{Header: "Sentences", Align: alignRight},
	}
	if blog {
		columns[3].Header = "Title"
		columns = append(columns, tableColumn{Header: "Likes", Align: alignRight}, tableColumn{Header: "Comments", Align: alignRight})
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{
			r.ID,
			humanize.Time(r.Timestamp),
			string(r.Language),
			textutil.Truncate(r.Prompt, 80),
			strconv.Itoa(len(r.Sentences)),
		}
		if blog {
			row = append(row, strconv.Itoa(r.Likes), strconv.Itoa(len(r.Comments)))
		}
		rows = append(rows, row)
	}
	return renderTable(columns, rows)
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <story-id>",
		Short: "Show a saved story",
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
			record, err := rt.Store.GetStory(cmd.Context(), storyID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, record)
			}
			printRecord(cmd, record)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printRecord(cmd *cobra.Command, record store.StoryRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderPairs([][2]string{
		{"ID", record.ID},
		{"Prompt", record.Prompt},
		{"Language", record.Language.DisplayName()},
		{"Created", record.Timestamp.Local().Format("2006-01-02 15:04")},
	}, 72))
	fmt.Fprintln(out)
	for i, sentence := range record.Sentences {
		fmt.Fprintf(out, "%2d. %s\n", i+1, sentence)
	}
}

func newHistoryDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <story-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a story from history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storyID, err := requireArg(args, "story id")
			if err != nil {
				return err
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			if err := rt.Store.DeleteStory(cmd.Context(), storyID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted story %s\n", storyID)
			return nil
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every story from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear history without --yes")
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			removed, err := rt.Store.ClearHistory(cmd.Context())
			if err != nil {
				return err
			}
			rt.Manager.Reset()
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d stories\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm clearing history")
	return cmd
}

func newHistoryCSVCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Export history as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			records, err := rt.Store.ListHistory(cmd.Context())
			if err != nil {
				return err
			}
			return writeCSV(cmd, outPath, func(w io.Writer) error {
				return admin.WriteStoriesCSV(w, records)
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the CSV to this file instead of stdout")
	return cmd
}

// writeCSV writes atomically to outPath, or to stdout when no path is set.
func writeCSV(cmd *cobra.Command, outPath string, write func(io.Writer) error) error {
	outPath = strings.TrimSpace(outPath)
	if outPath == "" {
		return write(cmd.OutOrStdout())
	}
	target, err := config.ExpandPath(outPath)
	if err != nil {
		return err
	}
	pending, err := fileutil.CreatePending(filepath.Dir(target))
	if err != nil {
		return err
	}
	defer func() { _ = pending.Discard() }()
	if err := write(pending); err != nil {
		return err
	}
	written, err := pending.Commit(filepath.Base(target))
	if err != nil {
		return err
	}
	if info, err := os.Stat(written); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", written, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
