package viewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"tinytales/internal/story"
	"tinytales/internal/workflow"
)

// EventMsg carries a workflow event into the program.
type EventMsg workflow.Event

type eventsClosedMsg struct{}

// Slideshow shows one sentence per page.
type Slideshow struct {
	title     string
	storyID   string
	sentences []story.Sentence
	index     int
	width     int

	status   string
	fraction float64
	bar      progress.Model
	spin     spinner.Model
	events   <-chan workflow.Event
	quitting bool
}

// NewSlideshow builds a slideshow for session. events may be nil.
func NewSlideshow(session workflow.Session, events <-chan workflow.Event) Slideshow {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	title := strings.TrimSpace(session.Prompt)
	if title == "" {
		title = "Tiny Tale"
	}
	return Slideshow{
		title:     title,
		storyID:   session.StoryID,
		sentences: append([]story.Sentence(nil), session.Sentences...),
		width:     defaultWidth,
		status:    session.Progress,
		bar:       bar,
		spin:      spin,
		events:    events,
	}
}

// Index is the zero-based page being shown.
func (m Slideshow) Index() int { return m.index }

// Sentences returns the pages as currently known.
func (m Slideshow) Sentences() []story.Sentence {
	return append([]story.Sentence(nil), m.sentences...)
}

// Next advances one page, stopping at the last.
func (m Slideshow) Next() Slideshow {
	if m.index < len(m.sentences)-1 {
		m.index++
	}
	return m
}

// Prev goes back one page, stopping at the first.
func (m Slideshow) Prev() Slideshow {
	if m.index > 0 {
		m.index--
	}
	return m
}

func (m Slideshow) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForEvent(m.events))
}

func waitForEvent(ch <-chan workflow.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg(ev)
	}
}

func (m Slideshow) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 8; w > 10 && w < 60 {
			m.bar.Width = w
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "right", "l", "n", " ", "pgdown":
			return m.Next(), nil
		case "left", "h", "p", "pgup":
			return m.Prev(), nil
		case "home", "g":
			m.index = 0
			return m, nil
		case "end", "G":
			if len(m.sentences) > 0 {
				m.index = len(m.sentences) - 1
			}
			return m, nil
		}
		return m, nil
	case EventMsg:
		m = m.apply(workflow.Event(msg))
		return m, waitForEvent(m.events)
	case eventsClosedMsg:
		m.events = nil
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		if bar, ok := updated.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd
	}
	return m, nil
}

func (m Slideshow) apply(ev workflow.Event) Slideshow {
	if m.storyID != "" && ev.StoryID != "" && ev.StoryID != m.storyID {
		return m
	}
	if ev.Sentence != nil && ev.Index >= 0 && ev.Index < len(m.sentences) {
		m.sentences = append([]story.Sentence(nil), m.sentences...)
		m.sentences[ev.Index] = *ev.Sentence
	}
	switch ev.Type {
	case workflow.EventProgress, workflow.EventExport, workflow.EventStory:
		m.fraction = ev.Fraction
		if ev.Status != "" {
			m.status = ev.Status
		}
	case workflow.EventError:
		m.status = "Error: " + ev.Status
	}
	return m
}

func (m Slideshow) illustratedFraction() float64 {
	if len(m.sentences) == 0 {
		return 0
	}
	done := 0
	for _, s := range m.sentences {
		if !s.IsImageLoading {
			done++
		}
	}
	return float64(done) / float64(len(m.sentences))
}

func (m Slideshow) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	if len(m.sentences) == 0 {
		b.WriteString(subtleStyle.Render("This story has no sentences."))
		b.WriteString("\n")
		return b.String()
	}
	current := m.sentences[m.index]
	b.WriteString(pageStyle.Render(fmt.Sprintf("Page %d of %d", m.index+1, len(m.sentences))))
	b.WriteString("\n")

	cardWidth := m.width - 4
	if cardWidth < 20 {
		cardWidth = 20
	}
	b.WriteString(cardStyle.Width(cardWidth).Render(current.Text))
	b.WriteString("\n")
	b.WriteString(m.illustrationStatus(current))
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.illustratedFraction()))
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(subtleStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("←/→ page • g/G first/last • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Slideshow) illustrationStatus(s story.Sentence) string {
	switch {
	case s.IsImageLoading:
		return m.spin.View() + " " + subtleStyle.Render("Generating illustration...")
	case s.ImageError != "":
		return errorStyle.Render("Illustration unavailable: " + s.ImageError)
	case story.IsPlaceholder(s.ImageURL):
		return warnStyle.Render("Placeholder illustration")
	case s.ImageURL != "":
		return okStyle.Render("Illustration ready") + subtleStyle.Render(fmt.Sprintf(" (%s)", humanize.Bytes(uint64(dataURISize(s.ImageURL)))))
	}
	return subtleStyle.Render("No illustration")
}

// dataURISize estimates the decoded size of a base64 data URI.
func dataURISize(uri string) int {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return 0
	}
	payload := strings.TrimRight(uri[comma+1:], "=")
	return len(payload) * 3 / 4
}

// Show runs the slideshow until the user quits or ctx ends.
func Show(ctx context.Context, session workflow.Session, events <-chan workflow.Event) error {
	program := tea.NewProgram(NewSlideshow(session, events), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := program.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
