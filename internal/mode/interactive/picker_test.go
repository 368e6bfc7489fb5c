// ABOUTME: Tests for the Bubble Tea context-file picker
// ABOUTME: Drives Update with key messages and checks filtering, navigation, and choice

package interactive

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mauromedda/gpt-go/internal/projectctx"
)

// Compile-time checks.
var (
	_ tea.Model         = PickerModel{}
	_ projectctx.Picker = (*Picker)(nil)
)

func send(m PickerModel, msgs ...tea.Msg) (PickerModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(PickerModel)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var files = []string{"cmd/main.go", "internal/engine/chat.go", "internal/engine/title.go", "README.md"}

func TestPickerModel_EnterPicksHighlighted(t *testing.T) {
	t.Parallel()
	m, cmd := send(NewPickerModel("Add file: ", files),
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	if got := m.Choice(); got != "internal/engine/chat.go" {
		t.Errorf("Choice() = %q", got)
	}
	if cmd == nil {
		t.Error("enter should quit the program")
	}
}

func TestPickerModel_FilterNarrows(t *testing.T) {
	t.Parallel()
	m, _ := send(NewPickerModel("", files), runes("title"))
	if vis := m.VisibleItems(); len(vis) == 0 || vis[0] != "internal/engine/title.go" {
		t.Fatalf("VisibleItems() = %v", vis)
	}
	for range 5 {
		m, _ = send(m, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	if len(m.VisibleItems()) != len(files) {
		t.Errorf("clearing the filter should show all items, got %v", m.VisibleItems())
	}
}

func TestPickerModel_EscFinishesEmpty(t *testing.T) {
	t.Parallel()
	m, cmd := send(NewPickerModel("", files), tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEsc})
	if m.Choice() != "" {
		t.Errorf("Choice() = %q, want empty", m.Choice())
	}
	if cmd == nil {
		t.Error("esc should quit the program")
	}
	if m.View() != "" {
		t.Errorf("View() after finish = %q", m.View())
	}
}

func TestPickerModel_NoMatchEnterIsEmpty(t *testing.T) {
	t.Parallel()
	m, _ := send(NewPickerModel("", files), runes("zzzz"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.Choice() != "" {
		t.Errorf("Choice() = %q", m.Choice())
	}
}

func TestPickerModel_NavigationClamps(t *testing.T) {
	t.Parallel()
	m, _ := send(NewPickerModel("", files), tea.KeyMsg{Type: tea.KeyUp})
	if m.Selected() != files[0] {
		t.Errorf("Selected() = %q", m.Selected())
	}
	for range 10 {
		m, _ = send(m, tea.KeyMsg{Type: tea.KeyDown})
	}
	if m.Selected() != files[len(files)-1] {
		t.Errorf("Selected() = %q", m.Selected())
	}
}

func TestPickerModel_ViewScrolls(t *testing.T) {
	t.Parallel()
	var many []string
	for i := range 30 {
		many = append(many, strings.Repeat("x", i+1))
	}
	m, _ := send(NewPickerModel("pick: ", many), tea.WindowSizeMsg{Width: 40, Height: 7})
	view := m.View()
	if !strings.HasPrefix(view, "pick: ") {
		t.Errorf("View() = %q", view)
	}
	if !strings.Contains(view, "25 more") {
		t.Errorf("View() should report hidden items: %q", view)
	}
	for range 8 {
		m, _ = send(m, tea.KeyMsg{Type: tea.KeyDown})
	}
	if !strings.Contains(m.View(), strings.Repeat("x", 9)) {
		t.Errorf("selected item should be scrolled into view")
	}
}
