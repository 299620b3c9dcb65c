package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

const progressSteps = 1000

// progressReporter renders workflow progress. On a terminal it drives a
// progress bar; elsewhere it prints each new status line once.
type progressReporter struct {
	mu   sync.Mutex
	out  io.Writer
	bar  *progressbar.ProgressBar
	last string
}

func newProgressReporter(out io.Writer, description string, quiet bool) *progressReporter {
	p := &progressReporter{out: out}
	if quiet {
		p.out = io.Discard
		return p
	}
	if !shouldColorize(out) {
		return p
	}
	width := 40
	if file, ok := out.(*os.File); ok {
		if cols, _, err := term.GetSize(int(file.Fd())); err == nil && cols > 60 {
			width = cols / 3
		}
	}
	p.bar = progressbar.NewOptions(progressSteps,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(width),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	return p
}

// update records fraction (0..1) and status. It is safe to call from
// workflow listeners.
func (p *progressReporter) update(fraction float64, status string) {
	if p == nil {
		return
	}
	status = strings.TrimSpace(status)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		if status != "" {
			p.bar.Describe(status)
		}
		if fraction > 0 {
			_ = p.bar.Set(int(clampFraction(fraction) * progressSteps))
		}
		return
	}
	if status == "" || status == p.last {
		return
	}
	p.last = status
	fmt.Fprintln(p.out, status)
}

func (p *progressReporter) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
