// ABOUTME: Tests for unified diff output and line statistics
// ABOUTME: Compares against diff -u formatted expectations

package diff

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUnified(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		before, after string
		context       int
		want          string
	}{
		{
			name:   "equal",
			before: "a\n", after: "a\n",
			context: 3,
			want:    "",
		},
		{
			name:   "single line change",
			before: "one\ntwo\nthree\n", after: "one\nTWO\nthree\n",
			context: 3,
			want:    "--- a/f.txt\n+++ b/f.txt\n@@ -1,3 +1,3 @@\n one\n-two\n+TWO\n three\n",
		},
		{
			name:   "insertion at end without context",
			before: "a\nb\n", after: "a\nb\nc\n",
			context: 0,
			want:    "--- a/f.txt\n+++ b/f.txt\n@@ -2,0 +3 @@\n+c\n",
		},
		{
			name:   "two separate hunks",
			before: "1\n2\n3\n4\n5\n6\n7\n8\n", after: "X\n2\n3\n4\n5\n6\n7\nY\n",
			context: 1,
			want: "--- a/f.txt\n+++ b/f.txt\n" +
				"@@ -1,2 +1,2 @@\n-1\n+X\n 2\n" +
				"@@ -7,2 +7,2 @@\n 7\n-8\n+Y\n",
		},
		{
			name:   "missing final newline",
			before: "x", after: "y",
			context: 3,
			want:    "--- a/f.txt\n+++ b/f.txt\n@@ -1 +1 @@\n-x\n\\ No newline at end of file\n+y\n\\ No newline at end of file\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Unified("f.txt", tt.before, tt.after, tt.context)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Unified mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnified_MergesNearbyChanges(t *testing.T) {
	t.Parallel()
	got := Unified("f", "1\n2\n3\n4\n5\n", "A\n2\n3\n4\nE\n", 3)
	if n := strings.Count(got, "@@ -"); n != 1 {
		t.Errorf("got %d hunks, want 1:\n%s", n, got)
	}
}

func TestStat(t *testing.T) {
	t.Parallel()
	added, deleted := Stat("a\nb\nc\n", "a\nB\nc\nd\n")
	if added != 2 || deleted != 1 {
		t.Errorf("Stat = +%d -%d, want +2 -1", added, deleted)
	}
}
