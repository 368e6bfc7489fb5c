// ABOUTME: lipgloss styles for CLI notices, hints, errors, and tables
// ABOUTME: Colours degrade to plain text when stderr is not a terminal

package print

import "github.com/charmbracelet/lipgloss"

var (
	NoticeStyle = lipgloss.NewStyle().Faint(true)
	HintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Italic(true) // cyan
	ErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)   // red
	HeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	OKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
)
