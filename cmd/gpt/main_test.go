// ABOUTME: Tests for the gpt command tree: position helpers and end-to-end flows
// ABOUTME: Flows run against /bin/sh fake back ends with GPT_GO_HOME in a temp dir

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLineRange(t *testing.T) {
	t.Parallel()
	const text = "one\ntwo\nthree\n"
	tests := []struct {
		rng        string
		start, end int
		wantErr    bool
	}{
		{"", 0, 14, false},
		{"1:1", 0, 4, false},
		{"2:3", 4, 14, false},
		{"2", 4, 8, false},
		{"3:9", 8, 14, false},
		{"0:1", 0, 0, true},
		{"3:2", 0, 0, true},
		{"4:4", 0, 0, true},
		{"x:y", 0, 0, true},
	}
	for _, tt := range tests {
		start, end, err := lineRange(text, tt.rng)
		if (err != nil) != tt.wantErr {
			t.Errorf("lineRange(%q) err = %v, wantErr %v", tt.rng, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (start != tt.start || end != tt.end) {
			t.Errorf("lineRange(%q) = %d, %d, want %d, %d", tt.rng, start, end, tt.start, tt.end)
		}
	}
}

func TestPosition(t *testing.T) {
	t.Parallel()
	const text = "héllo\nwörld"
	tests := []struct {
		line, col int
		want      int
		wantErr   bool
	}{
		{0, 1, 11, false},
		{1, 1, 0, false},
		{1, 3, 2, false},
		{1, 99, 5, false},
		{2, 2, 7, false},
		{3, 1, 0, true},
		{1, 0, 0, true},
	}
	for _, tt := range tests {
		got, err := position(text, tt.line, tt.col)
		if (err != nil) != tt.wantErr {
			t.Errorf("position(%d, %d) err = %v", tt.line, tt.col, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("position(%d, %d) = %d, want %d", tt.line, tt.col, got, tt.want)
		}
	}
}

func TestLangOf(t *testing.T) {
	t.Parallel()
	if got := langOf("pkg/main.go"); got != "go" {
		t.Errorf("langOf = %q", got)
	}
	if got := langOf("Makefile"); got != "" {
		t.Errorf("langOf = %q", got)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()
	var names []string
	for _, c := range newRootCmd().Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"rpc", "chat", "transform", "complete", "title", "context", "history", "log", "key"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing subcommand %q in %v", want, names)
		}
	}
}

// execute runs the CLI with a fake back end and an isolated home.
func execute(t *testing.T, script, stdin string, args ...string) (string, string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("GPT_GO_HOME", home)
	t.Setenv("GPT_API_KEY_OPENAI", "sk-test")
	backend := filepath.Join(home, "backend.sh")
	if err := os.WriteFile(backend, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--backend", backend, "-C", home}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func TestChatCommand(t *testing.T) {
	out, errOut, err := execute(t, `printf 'model=%s key=%s' "$3" "$2"`, "", "chat", "--no-context", "-m", "gpt-test", "hello")
	if err != nil {
		t.Fatalf("chat: %v (stderr %q)", err, errOut)
	}
	if diff := cmp.Diff("model=gpt-test key=sk-test\n", out); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestChatCommand_PipedInput(t *testing.T) {
	out, _, err := execute(t, `grep -q 'piped text' "$1" && printf 'seen'`, "piped text\n", "chat", "--no-context", "explain")
	if err != nil {
		t.Fatal(err)
	}
	if out != "seen\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestChatCommand_BackendFailure(t *testing.T) {
	_, errOut, err := execute(t, "echo 'no quota' >&2; exit 5", "", "chat", "--no-context", "hello")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(errOut, "gpt: failed") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestTransformCommand_WritesBack(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(file, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, errOut, err := execute(t, `printf 'TWO\n'`, "", "transform", "--no-context", "--lines", "2:2", "--write", file, "uppercase")
	if err != nil {
		t.Fatalf("transform: %v (stderr %q)", err, errOut)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("one\nTWO\nthree\n", string(data)); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteCommand_AcceptsAndWrites(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.py")
	if err := os.WriteFile(file, []byte("def f():\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, errOut, err := execute(t, `printf '    return 1\n'`, "", "complete", "--no-context", "--yes", "--write", file)
	if err != nil {
		t.Fatalf("complete: %v (stderr %q)", err, errOut)
	}
	data, _ := os.ReadFile(file)
	if diff := cmp.Diff("def f():\n    return 1\n", string(data)); diff != "" {
		t.Errorf("file mismatch (-want +got):\n%s", diff)
	}
}

func TestTitleCommand(t *testing.T) {
	out, errOut, err := execute(t, `printf '"Greeting Chat"'`, "User: hi\n\nAssistant: hello", "title")
	if err != nil {
		t.Fatalf("title: %v (stderr %q)", err, errOut)
	}
	if out != "Greeting Chat\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestContextAndHistoryCommands(t *testing.T) {
	home := t.TempDir()
	t.Setenv("GPT_GO_HOME", home)
	run := func(args ...string) string {
		t.Helper()
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append([]string{"-C", home}, args...))
		if err := root.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	run("context", "set", "a.go", "b.go")
	run("context", "add", "c.go")
	run("context", "remove", "a.go")
	if got := run("context", "show"); got != "b.go\nc.go\n" {
		t.Errorf("context show = %q", got)
	}
	run("context", "clear")
	if got := run("context", "show"); got != "" {
		t.Errorf("context after clear = %q", got)
	}

	if err := os.WriteFile(filepath.Join(home, "history"), []byte("fix bug\nwrite tests\nfix bug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := run("history"); got != "fix bug\nwrite tests\n" {
		t.Errorf("history = %q", got)
	}
}

func TestTransformCommand_Diff(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(file, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, errOut, err := execute(t, `printf 'TWO\n'`, "", "transform", "--no-context", "--lines", "2", "--diff", file, "uppercase")
	if err != nil {
		t.Fatalf("transform: %v (stderr %q)", err, errOut)
	}
	if !strings.Contains(out, "@@ -1,3 +1,3 @@\n one\n-two\n+TWO\n three\n") {
		t.Errorf("stdout missing diff:\n%s", out)
	}
	data, _ := os.ReadFile(file)
	if string(data) != "one\ntwo\nthree\n" {
		t.Errorf("file changed without --write: %q", data)
	}
}

func TestKeyCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("GPT_GO_HOME", home)
	t.Setenv("GPT_API_KEY_ANTHROPIC", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	run := func(stdin string, args ...string) (string, error) {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetIn(strings.NewReader(stdin))
		root.SetArgs(args)
		err := root.Execute()
		return out.String(), err
	}

	if _, err := run("", "key", "set", "anthropic"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := run("sk-ant-0123456789abcd\n", "key", "set", "anthropic"); err != nil {
		t.Fatal(err)
	}
	out, err := run("", "key", "show", "anthropic")
	if err != nil {
		t.Fatal(err)
	}
	if out != "sk-a*************abcd\n" {
		t.Errorf("key show = %q", out)
	}
	info, err := os.Stat(filepath.Join(home, "auth.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("auth.json mode = %o", perm)
	}
}
