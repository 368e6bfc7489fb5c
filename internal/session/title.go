// ABOUTME: Title normalisation, grapheme-aware truncation, and output buffer naming
// ABOUTME: Truncation appends "..." only when the title exceeds the limit

package session

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// Ellipsis marks a truncated title.
const Ellipsis = "..."

// Truncate shortens title to max grapheme clusters followed by Ellipsis.
// Titles of at most max clusters, or max <= 0, are returned unchanged.
func Truncate(title string, max int) string {
	if max <= 0 || uniseg.GraphemeClusterCount(title) <= max {
		return title
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(title)
	for n := 0; n < max && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	return b.String() + Ellipsis
}

// CleanTitle reduces model or instruction text to a single-line title:
// first non-empty line, collapsed whitespace, surrounding quotes removed.
func CleanTitle(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		line = strings.Trim(line, "\"'`“”‘’")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// Policy selects how chat output buffers are allocated.
type Policy string

const (
	// PolicyNamed gives every session its own titled buffer.
	PolicyNamed Policy = "named"
	// PolicyEphemeral reuses one shared buffer, cleared per chat.
	PolicyEphemeral Policy = "ephemeral"
)

// EphemeralBuffer is the shared output buffer of PolicyEphemeral.
const EphemeralBuffer = "*gpt*"

// ParsePolicy validates a policy name; empty means PolicyNamed.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyNamed:
		return PolicyNamed, nil
	case PolicyEphemeral:
		return PolicyEphemeral, nil
	}
	return "", fmt.Errorf("unknown buffer policy %q (want named or ephemeral)", s)
}

// BufferName returns the output buffer name for a session under policy.
func BufferName(policy Policy, id int, title string) string {
	if policy == PolicyEphemeral {
		return EphemeralBuffer
	}
	return fmt.Sprintf("*gpt[%d]: %s*", id, title)
}
