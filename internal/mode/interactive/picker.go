// ABOUTME: Bubble Tea single-choice picker used for ad hoc context file selection
// ABOUTME: Typing narrows candidates with sahilm/fuzzy; enter picks, esc finishes with no choice

package interactive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
)

var (
	promptStyle    = lipgloss.NewStyle().Bold(true)
	filterStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
	selectionStyle = lipgloss.NewStyle().Reverse(true)
	dimStyle       = lipgloss.NewStyle().Faint(true)
)

const defaultMaxHeight = 12

// PickerModel is a filterable, scrollable single-choice list.
type PickerModel struct {
	prompt    string
	items     []string
	visible   []string
	selected  int
	scrollOff int
	maxHeight int
	filter    string
	width     int

	choice string
	done   bool
}

// NewPickerModel creates a picker over items.
func NewPickerModel(prompt string, items []string) PickerModel {
	m := PickerModel{
		prompt:    prompt,
		items:     items,
		maxHeight: defaultMaxHeight,
	}
	m.applyFilter()
	return m
}

// Init returns nil; no commands needed at startup.
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update handles key and window-size messages.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyUp, tea.KeyCtrlP:
			m.moveUp()
		case tea.KeyDown, tea.KeyCtrlN, tea.KeyTab:
			m.moveDown()
		case tea.KeyEnter:
			if len(m.visible) > 0 {
				m.choice = m.visible[m.selected]
			}
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC, tea.KeyCtrlD:
			m.choice = ""
			m.done = true
			return m, tea.Quit
		case tea.KeyBackspace:
			if m.filter != "" {
				r := []rune(m.filter)
				m = m.SetFilter(string(r[:len(r)-1]))
			}
		case tea.KeySpace:
			m = m.SetFilter(m.filter + " ")
		case tea.KeyRunes:
			m = m.SetFilter(m.filter + string(msg.Runes))
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if msg.Height > 3 {
			m.maxHeight = min(defaultMaxHeight, msg.Height-2)
			m.adjustScroll()
		}
	}
	return m, nil
}

// View renders the prompt, the filter line, and the visible window of items.
func (m PickerModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(promptStyle.Render(m.prompt))
	b.WriteString(filterStyle.Render(m.filter))
	b.WriteByte('\n')

	if len(m.visible) == 0 {
		b.WriteString(dimStyle.Render("  no matches"))
		return b.String()
	}
	end := min(m.scrollOff+m.maxHeight, len(m.visible))
	for i := m.scrollOff; i < end; i++ {
		line := "  " + m.visible[i]
		if m.width > 0 {
			line = runewidth.Truncate(line, m.width, "…")
		}
		if i == m.selected {
			line = selectionStyle.Render(line)
		}
		if i > m.scrollOff {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if rest := len(m.visible) - end; rest > 0 {
		b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("  … %d more", rest)))
	}
	return b.String()
}

// SetFilter sets the fuzzy filter string and refilters. Returns a new model.
func (m PickerModel) SetFilter(f string) PickerModel {
	m.filter = f
	m.selected = 0
	m.scrollOff = 0
	m.applyFilter()
	return m
}

// Choice returns the picked item; empty when the user finished without one.
func (m PickerModel) Choice() string { return m.choice }

// VisibleItems returns the currently filtered items.
func (m PickerModel) VisibleItems() []string { return m.visible }

// Selected returns the highlighted item, or "" when nothing matches.
func (m PickerModel) Selected() string {
	if len(m.visible) == 0 {
		return ""
	}
	return m.visible[m.selected]
}

func (m *PickerModel) moveUp() {
	if m.selected > 0 {
		m.selected--
		m.adjustScroll()
	}
}

func (m *PickerModel) moveDown() {
	if m.selected < len(m.visible)-1 {
		m.selected++
		m.adjustScroll()
	}
}

func (m *PickerModel) adjustScroll() {
	if m.selected < m.scrollOff {
		m.scrollOff = m.selected
	}
	if m.selected >= m.scrollOff+m.maxHeight {
		m.scrollOff = m.selected - m.maxHeight + 1
	}
}

func (m *PickerModel) applyFilter() {
	if m.filter == "" {
		m.visible = make([]string, len(m.items))
		copy(m.visible, m.items)
		return
	}
	matches := fuzzy.Find(m.filter, m.items)
	m.visible = make([]string, len(matches))
	for i, match := range matches {
		m.visible[i] = m.items[match.Index]
	}
}

// Picker runs a PickerModel as a Bubble Tea program for each choice.
type Picker struct {
	In  io.Reader // defaults to os.Stdin
	Out io.Writer // defaults to os.Stderr
}

// PickOne shows candidates and returns the user's choice, or "" when the
// user finished without picking.
func (p *Picker) PickOne(ctx context.Context, prompt string, candidates []string) (string, error) {
	in, out := p.In, p.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	prog := tea.NewProgram(
		NewPickerModel(prompt, candidates),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := prog.Run()
	if err != nil {
		return "", fmt.Errorf("picker: %w", err)
	}
	m, ok := final.(PickerModel)
	if !ok {
		return "", fmt.Errorf("picker: unexpected model %T", final)
	}
	return m.Choice(), nil
}
