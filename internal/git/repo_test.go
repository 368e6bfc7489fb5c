// ABOUTME: Tests for repository root discovery and file listing
// ABOUTME: Uses temporary git repos; exercises real git commands

package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test")
	return dir
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func TestRepoRoot(t *testing.T) {
	t.Parallel()

	repo := initTestRepo(t)
	sub := filepath.Join(repo, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	root, err := RepoRoot(context.Background(), sub)
	if err != nil {
		t.Fatalf("RepoRoot: %v", err)
	}
	// Resolve symlinks for macOS /private/var vs /var.
	want, _ := filepath.EvalSymlinks(repo)
	got, _ := filepath.EvalSymlinks(root)
	if got != want {
		t.Errorf("RepoRoot = %q, want %q", root, repo)
	}
	if !IsWorktree(context.Background(), sub) {
		t.Error("expected IsWorktree=true inside repo")
	}
}

func TestRepoRoot_NotGit(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	if _, err := RepoRoot(context.Background(), dir); err == nil {
		t.Error("expected error outside a repository")
	}
	if IsWorktree(context.Background(), dir) {
		t.Error("expected IsWorktree=false for non-git directory")
	}
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	repo := initTestRepo(t)
	write := func(rel, content string) {
		path := filepath.Join(repo, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("main.go", "package main")
	write("pkg/util.go", "package pkg")
	write("build/out.bin", "x")
	write(".gitignore", "build/\n")
	runGit(t, repo, "add", "main.go")

	files, err := ListFiles(context.Background(), repo)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	for _, want := range []string{"main.go", "pkg/util.go", ".gitignore"} {
		if !slices.Contains(files, want) {
			t.Errorf("missing %s in %v", want, files)
		}
	}
	if slices.Contains(files, "build/out.bin") {
		t.Errorf("ignored file listed: %v", files)
	}
}
