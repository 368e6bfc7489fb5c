// ABOUTME: Line diffs between a buffer before and after a transform or completion
// ABOUTME: Produces unified-format hunks from a longest-common-subsequence edit script

package diff

import (
	"fmt"
	"strings"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

type opKind byte

const (
	opEqual  opKind = ' '
	opDelete opKind = '-'
	opInsert opKind = '+'
)

type op struct {
	kind       opKind
	line       string
	oldN, newN int // 0-based line numbers before this op
}

// Unified returns a unified diff of before and after labelled with path,
// or "" when they are equal.
func Unified(path, before, after string, context int) string {
	if before == after {
		return ""
	}
	ops := script(splitLines(before), splitLines(after))

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks(ops, context) {
		writeHunk(&b, ops[h[0]:h[1]])
	}
	return b.String()
}

// Stat counts inserted and deleted lines.
func Stat(before, after string) (added, deleted int) {
	for _, o := range script(splitLines(before), splitLines(after)) {
		switch o.kind {
		case opInsert:
			added++
		case opDelete:
			deleted++
		}
	}
	return added, deleted
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// script computes the edit script with an LCS table.
func script(a, b []string) []op {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	ops := make([]op, 0, n+m)
	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && a[i] == b[j]:
			ops = append(ops, op{opEqual, a[i], i, j})
			i++
			j++
		case i < n && (j == m || lcs[i+1][j] >= lcs[i][j+1]):
			ops = append(ops, op{opDelete, a[i], i, j})
			i++
		default:
			ops = append(ops, op{opInsert, b[j], i, j})
			j++
		}
	}
	return ops
}

// hunks returns [start, end) op ranges covering each change plus context.
// Ranges whose context overlaps are merged.
func hunks(ops []op, context int) [][2]int {
	var out [][2]int
	for i, o := range ops {
		if o.kind == opEqual {
			continue
		}
		start := max(0, i-context)
		end := min(len(ops), i+1+context)
		if len(out) > 0 && start <= out[len(out)-1][1] {
			out[len(out)-1][1] = end
			continue
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func writeHunk(b *strings.Builder, ops []op) {
	var oldCount, newCount int
	for _, o := range ops {
		if o.kind != opInsert {
			oldCount++
		}
		if o.kind != opDelete {
			newCount++
		}
	}
	fmt.Fprintf(b, "@@ -%s +%s @@\n", span(ops[0].oldN, oldCount), span(ops[0].newN, newCount))
	for _, o := range ops {
		b.WriteByte(byte(o.kind))
		b.WriteString(o.line)
		if !strings.HasSuffix(o.line, "\n") {
			b.WriteString("\n\\ No newline at end of file\n")
		}
	}
}

// span formats a hunk range the way diff -u does.
func span(start, count int) string {
	switch count {
	case 0:
		return fmt.Sprintf("%d,0", start)
	case 1:
		return fmt.Sprintf("%d", start+1)
	default:
		return fmt.Sprintf("%d,%d", start+1, count)
	}
}
