// ABOUTME: Fixes the lipgloss background before bubbletea or glamour can probe the terminal
// ABOUTME: Imported for side effects by cmd/gpt ahead of the picker and markdown renderer

package termfix

import "github.com/charmbracelet/lipgloss"

func init() {
	// With an explicit background lipgloss never sends the OSC 10/11 query
	// whose late reply would land in the picker's input or the RPC stdin.
	// This package must not import bubbletea, directly or transitively.
	lipgloss.SetHasDarkBackground(true)
}
