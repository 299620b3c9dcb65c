package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newBlogCommand(ctx *commandContext) *cobra.Command {
	blogCmd := &cobra.Command{
		Use:   "blog",
		Short: "Publish stories and read the local blog",
	}
	blogCmd.AddCommand(newBlogListCommand(ctx))
	blogCmd.AddCommand(newBlogShowCommand(ctx))
	blogCmd.AddCommand(newBlogPublishCommand(ctx))
	blogCmd.AddCommand(newBlogCommentCommand(ctx))
	blogCmd.AddCommand(newBlogLikeCommand(ctx))
	return blogCmd
}

func newBlogListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List published posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			posts, err := rt.Store.ListBlog(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, posts)
			}
			if len(posts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No blog posts yet")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStoryTable(posts, true))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newBlogShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <post-id>",
		Short: "Show a post with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := requireArg(args, "post id")
			if err != nil {
				return err
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			post, err := rt.Store.GetPost(cmd.Context(), postID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, post)
			}
			printRecord(cmd, post)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n%s, %s\n", pluralize(post.Likes, "like"), pluralize(len(post.Comments), "comment"))
			for _, c := range post.Comments {
				fmt.Fprintf(out, "  %s (%s): %s\n", c.Author, humanize.Time(c.Timestamp), c.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newBlogPublishCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "publish <story-id>",
		Short: "Publish a story from history to the blog",
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
			if strings.TrimSpace(title) == "" {
				record, err := rt.Store.GetStory(cmd.Context(), storyID)
				if err != nil {
					return err
				}
				title = record.Prompt
			}
			post, err := rt.Store.Publish(cmd.Context(), storyID, title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %q as %s\n", post.Prompt, post.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Post title (defaults to the story prompt)")
	return cmd
}

func newBlogCommentCommand(ctx *commandContext) *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "comment <post-id> <text>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := requireArg(args, "post id")
			if err != nil {
				return err
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			comment, err := rt.Store.AddComment(cmd.Context(), postID, author, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment %s added by %s\n", comment.ID, comment.Author)
			return nil
		},
	}
	cmd.Flags().StringVarP(&author, "author", "a", "", "Comment author (defaults to Anonymous)")
	return cmd
}

func newBlogLikeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "like <post-id>",
		Short: "Like a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			postID, err := requireArg(args, "post id")
			if err != nil {
				return err
			}
			rt, err := ctx.ensureRuntime()
			if err != nil {
				return err
			}
			likes, err := rt.Store.Like(cmd.Context(), postID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %s\n", postID, pluralize(likes, "like"))
			return nil
		},
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}
