package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tinytales/internal/config"
	"tinytales/internal/daemonrun"
	"tinytales/internal/export"
	"tinytales/internal/fileutil"
	"tinytales/internal/illustration"
	"tinytales/internal/services"
	"tinytales/internal/story"
	"tinytales/internal/viewer"
	"tinytales/internal/workflow"
)

// sessionOutput is the JSON shape of a story session.
type sessionOutput struct {
	StoryID     string           `json:"storyId"`
	Prompt      string           `json:"prompt"`
	Language    story.Language   `json:"language"`
	Story       string           `json:"story"`
	Sentences   []sentenceOutput `json:"sentences"`
	Illustrated bool             `json:"illustrated"`
	Limited     bool             `json:"limited,omitempty"`
	Summary     *summaryOutput   `json:"illustrations,omitempty"`
	Export      *exportOutput    `json:"export,omitempty"`
}

type sentenceOutput struct {
	Text       string `json:"text"`
	HasImage   bool   `json:"hasImage"`
	ImageError string `json:"imageError,omitempty"`
}

type summaryOutput struct {
	Resolved  int  `json:"resolved"`
	Failed    int  `json:"failed"`
	Stopped   int  `json:"stopped"`
	Cancelled bool `json:"cancelled,omitempty"`
}

type exportOutput struct {
	Format export.Format `json:"format"`
	Path   string        `json:"path"`
	Size   int64         `json:"size"`
	Frames int           `json:"frames"`
}

func newSessionOutput(session workflow.Session) sessionOutput {
	out := sessionOutput{
		StoryID:     session.StoryID,
		Prompt:      session.Prompt,
		Language:    session.Language,
		Story:       session.Story,
		Illustrated: session.Illustrated(),
		Limited:     session.Limited,
	}
	for _, s := range session.Sentences {
		out.Sentences = append(out.Sentences, sentenceOutput{
			Text:       s.Text,
			HasImage:   s.Valid(),
			ImageError: s.ImageError,
		})
	}
	return out
}

// watchProgress forwards workflow events for storyID to the reporter.
func watchProgress(manager *workflow.Manager, reporter *progressReporter) func() {
	return manager.Subscribe(func(ev workflow.Event) {
		switch ev.Type {
		case workflow.EventProgress, workflow.EventExport, workflow.EventStory:
			reporter.update(ev.Fraction, ev.Status)
		}
	})
}

func illustrateCurrent(ctx context.Context, rt *daemonrun.Components, userID string, reporter *progressReporter) (workflow.Session, illustration.Summary, error) {
	stop := watchProgress(rt.Manager, reporter)
	defer stop()
	defer reporter.finish()
	return rt.Manager.Illustrate(ctx, userID)
}

// exportCurrent renders the active session and, when dest is set, copies the
// artifact there.
func exportCurrent(ctx context.Context, rt *daemonrun.Components, format export.Format, userID, dest string, reporter *progressReporter) (exportOutput, error) {
	defer reporter.finish()
	artifact, err := rt.Manager.Export(ctx, workflow.ExportRequest{
		Format:   format,
		UserID:   userID,
		Progress: reporter.update,
	})
	if err != nil {
		return exportOutput{}, err
	}
	path := artifact.Path
	if dest = strings.TrimSpace(dest); dest != "" {
		target, err := config.ExpandPath(dest)
		if err != nil {
			return exportOutput{}, err
		}
		if err := fileutil.CopyFileVerified(artifact.Path, target); err != nil {
			return exportOutput{}, fmt.Errorf("copy export: %w", err)
		}
		path = target
	}
	return exportOutput{Format: artifact.Format, Path: path, Size: artifact.Size, Frames: artifact.Frames}, nil
}

func printSession(out io.Writer, session workflow.Session) {
	fmt.Fprintf(out, "Story %s (%s)\n", session.StoryID, session.Language.DisplayName())
	if session.Prompt != "" {
		fmt.Fprintf(out, "Prompt: %s\n", session.Prompt)
	}
	fmt.Fprintln(out)
	for i, s := range session.Sentences {
		marker := " "
		switch {
		case s.Valid():
			marker = "*"
		case s.ImageError != "":
			marker = "!"
		}
		fmt.Fprintf(out, "%s %2d. %s\n", marker, i+1, s.Text)
	}
}

func printSummary(out io.Writer, summary illustration.Summary, session workflow.Session) {
	if session.Limited {
		fmt.Fprintln(out, "Illustrations are admin-limited. Showing placeholders.")
		return
	}
	fmt.Fprintf(out, "Illustrations: %d ready, %d failed", summary.Resolved, summary.Failed)
	if summary.Stopped > 0 {
		fmt.Fprintf(out, ", %d stopped", summary.Stopped)
	}
	fmt.Fprintln(out)
}

func printExport(out io.Writer, result exportOutput) {
	fmt.Fprintf(out, "Exported %s to %s (%s)\n", strings.ToUpper(string(result.Format)), result.Path, humanize.Bytes(uint64(max(result.Size, 0))))
}

// viewSession opens the slideshow. When illustrate is set, illustrations are
// fetched in the background and stream into the view; quitting the viewer
// stops them.
func viewSession(ctx context.Context, rt *daemonrun.Components, session workflow.Session, illustrate bool, userID string) error {
	events := make(chan workflow.Event, 64)
	unsubscribe := rt.Manager.Subscribe(func(ev workflow.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var illustrateErr error
	if illustrate && session.Pending() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, illustrateErr = rt.Manager.Illustrate(runCtx, userID)
		}()
	}
	err := viewer.Show(runCtx, session, events)
	cancel()
	wg.Wait()
	if err != nil {
		return err
	}
	if illustrateErr != nil && !errors.Is(illustrateErr, context.Canceled) && !errors.Is(illustrateErr, services.ErrCancelled) {
		return illustrateErr
	}
	return nil
}

func parseLanguageFlag(value string) (story.Language, error) {
	lang, err := story.ParseLanguage(value)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "cli", "parse language", err.Error(), nil)
	}
	return lang, nil
}

func addUserFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "user", "", "User ID whose capabilities apply")
}
