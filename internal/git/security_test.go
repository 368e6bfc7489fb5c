// ABOUTME: Security tests for git argument validation
// ABOUTME: Tests command injection prevention and the subcommand/option allowlists

package git

import (
	"strings"
	"testing"
)

func TestSanitizeArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{name: "rev-parse toplevel", args: []string{"rev-parse", "--show-toplevel"}},
		{name: "ls-files listing", args: []string{"ls-files", "--cached", "--others", "--exclude-standard", "-z"}},
		{name: "ls-files pathspec", args: []string{"ls-files", "--", "src/main.go"}},
		{name: "semicolon", args: []string{"ls-files", "; rm -rf /"}, errorMsg: "dangerous character"},
		{name: "pipe", args: []string{"ls-files", "| cat /etc/passwd"}, errorMsg: "dangerous character"},
		{name: "backtick", args: []string{"rev-parse", "`whoami`"}, errorMsg: "command substitution"},
		{name: "dollar paren", args: []string{"rev-parse", "$(whoami)"}, errorMsg: "command substitution"},
		{name: "disallowed subcommand", args: []string{"push", "--force"}, errorMsg: "not allowed"},
		{name: "disallowed option", args: []string{"ls-files", "--exec=sh"}, errorMsg: "option not allowed"},
		{name: "path traversal", args: []string{"ls-files", "../../etc/passwd"}, errorMsg: "traversal"},
		{name: "empty", args: nil, errorMsg: "no git command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := sanitizeArgs(tt.args)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(got) != len(tt.args) {
					t.Errorf("sanitizeArgs(%v) = %v", tt.args, got)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errorMsg)
			}
		})
	}
}

func TestSanitizeArgs_DropsEmpty(t *testing.T) {
	t.Parallel()

	got, err := sanitizeArgs([]string{"rev-parse", "", "--show-toplevel"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %v, want empty argument dropped", got)
	}
}
