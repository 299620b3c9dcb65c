package viewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"tinytales/internal/store"
	"tinytales/internal/textutil"
)

const maxVisible = 12

// History lists saved stories behind a fuzzy filter.
type History struct {
	records  []store.StoryRecord
	haystack []string
	filtered []int
	cursor   int
	input    textinput.Model
	chosen   *store.StoryRecord
	quitting bool
}

// NewHistory builds a browser over records, newest first as given.
func NewHistory(records []store.StoryRecord) History {
	input := textinput.New()
	input.Placeholder = "filter stories"
	input.Prompt = "/ "
	input.Focus()
	haystack := make([]string, len(records))
	for i, r := range records {
		haystack[i] = strings.ToLower(r.Prompt + " " + r.Story)
	}
	h := History{records: records, haystack: haystack, input: input}
	h.refilter()
	return h
}

// Chosen returns the picked story, if any.
func (h History) Chosen() (store.StoryRecord, bool) {
	if h.chosen == nil {
		return store.StoryRecord{}, false
	}
	return *h.chosen, true
}

// Visible returns the records matching the current filter in display order.
func (h History) Visible() []store.StoryRecord {
	out := make([]store.StoryRecord, len(h.filtered))
	for i, idx := range h.filtered {
		out[i] = h.records[idx]
	}
	return out
}

func (h *History) refilter() {
	query := strings.ToLower(strings.TrimSpace(h.input.Value()))
	h.filtered = h.filtered[:0]
	if query == "" {
		for i := range h.records {
			h.filtered = append(h.filtered, i)
		}
	} else {
		for _, match := range fuzzy.Find(query, h.haystack) {
			h.filtered = append(h.filtered, match.Index)
		}
	}
	if h.cursor >= len(h.filtered) {
		h.cursor = max(len(h.filtered)-1, 0)
	}
}

func (h History) Init() tea.Cmd { return textinput.Blink }

func (h History) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			h.quitting = true
			return h, tea.Quit
		case "esc":
			if h.input.Value() != "" {
				h.input.SetValue("")
				h.refilter()
				return h, nil
			}
			h.quitting = true
			return h, tea.Quit
		case "up", "ctrl+p":
			if h.cursor > 0 {
				h.cursor--
			}
			return h, nil
		case "down", "ctrl+n":
			if h.cursor < len(h.filtered)-1 {
				h.cursor++
			}
			return h, nil
		case "enter":
			if len(h.filtered) == 0 {
				return h, nil
			}
			record := h.records[h.filtered[h.cursor]]
			h.chosen = &record
			h.quitting = true
			return h, tea.Quit
		}
	}
	var cmd tea.Cmd
	h.input, cmd = h.input.Update(msg)
	h.refilter()
	return h, cmd
}

func (h History) View() string {
	if h.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Story history"))
	b.WriteString("\n")
	b.WriteString(h.input.View())
	b.WriteString("\n\n")
	if len(h.filtered) == 0 {
		b.WriteString(subtleStyle.Render("No stories match."))
		b.WriteString("\n")
	}
	start := 0
	if h.cursor >= maxVisible {
		start = h.cursor - maxVisible + 1
	}
	for i := start; i < len(h.filtered) && i < start+maxVisible; i++ {
		r := h.records[h.filtered[i]]
		title := textutil.Truncate(r.Prompt, 40)
		meta := subtleStyle.Render(fmt.Sprintf("%s · %d sentences · %s", r.Language.DisplayName(), len(r.Sentences), humanize.Time(r.Timestamp)))
		if i == h.cursor {
			b.WriteString(selectedStyle.Render(title) + "  " + meta)
		} else {
			b.WriteString(itemStyle.Render(title) + "  " + meta)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("type to filter • ↑/↓ move • enter open • esc quit"))
	b.WriteString("\n")
	return b.String()
}

// Pick runs the browser and returns the chosen story.
func Pick(ctx context.Context, records []store.StoryRecord) (store.StoryRecord, bool, error) {
	program := tea.NewProgram(NewHistory(records), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil {
		return store.StoryRecord{}, false, err
	}
	h, ok := final.(History)
	if !ok {
		return store.StoryRecord{}, false, nil
	}
	record, picked := h.Chosen()
	return record, picked, nil
}
