// ABOUTME: Tests for the filesystem project provider
// ABOUTME: Covers marker-file root detection, walk listing, and path escapes

package projectctx

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestFSProvider_MarkerRootAndWalk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "go.mod"), "module x\n")
	mustWrite(t, filepath.Join(root, "pkg", "a.go"), "package pkg\n")
	mustWrite(t, filepath.Join(root, "node_modules", "dep.js"), "x")
	mustWrite(t, filepath.Join(root, ".hidden", "secret"), "x")

	p := &FSProvider{Dir: filepath.Join(root, "pkg")}
	got, err := p.Root(context.Background())
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	wantRoot, _ := filepath.EvalSymlinks(root)
	gotRoot, _ := filepath.EvalSymlinks(got)
	if gotRoot != wantRoot {
		t.Errorf("Root = %q, want %q", got, root)
	}

	files, err := p.ListProjectFiles(context.Background())
	if err != nil {
		t.Fatalf("ListProjectFiles: %v", err)
	}
	if !slices.Contains(files, "pkg/a.go") || !slices.Contains(files, "go.mod") {
		t.Errorf("files = %v", files)
	}
	if slices.Contains(files, "node_modules/dep.js") || slices.Contains(files, ".hidden/secret") {
		t.Errorf("skipped dirs listed: %v", files)
	}

	content, err := p.ReadFile(context.Background(), "pkg/a.go")
	if err != nil || content != "package pkg\n" {
		t.Errorf("ReadFile = %q, %v", content, err)
	}
	if _, err := p.ReadFile(context.Background(), "../outside"); err == nil {
		t.Error("expected escape to be rejected")
	}
	if _, err := p.ReadFile(context.Background(), "/etc/passwd"); err == nil {
		t.Error("expected absolute path to be rejected")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
