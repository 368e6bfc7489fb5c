// ABOUTME: Project file provider: root discovery, file enumeration, and content reads
// ABOUTME: Prefers git for root and listing, falling back to marker files and a directory walk

package projectctx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mauromedda/gpt-go/internal/git"
)

// ErrContextUnavailable means no project root could be resolved.
var ErrContextUnavailable = errors.New("no project context available")

// FileProvider is the project-file collaborator used for context resolution.
type FileProvider interface {
	Root(ctx context.Context) (string, error)
	ListProjectFiles(ctx context.Context) ([]string, error)
	ReadFile(ctx context.Context, path string) (string, error)
}

// rootMarkers identify a project root when git is unavailable.
var rootMarkers = []string{".git", "go.mod", ".projectile", "package.json", "pyproject.toml"}

// skipDirs are never descended into by the fallback walk.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
}

// maxWalkFiles bounds the fallback listing.
const maxWalkFiles = 20000

// FSProvider resolves the project containing Dir on the local filesystem.
type FSProvider struct {
	Dir string
}

// Root returns the project root for p.Dir.
func (p *FSProvider) Root(ctx context.Context) (string, error) {
	dir, err := filepath.Abs(p.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}
	if root, err := git.RepoRoot(ctx, dir); err == nil && root != "" {
		return root, nil
	}
	for d := dir; ; d = filepath.Dir(d) {
		for _, m := range rootMarkers {
			if _, err := os.Stat(filepath.Join(d, m)); err == nil {
				return d, nil
			}
		}
		if filepath.Dir(d) == d {
			break
		}
	}
	return "", fmt.Errorf("%w: %s", ErrContextUnavailable, dir)
}

// ListProjectFiles returns project-relative paths with forward slashes.
func (p *FSProvider) ListProjectFiles(ctx context.Context) ([]string, error) {
	root, err := p.Root(ctx)
	if err != nil {
		return nil, err
	}
	if git.IsWorktree(ctx, root) {
		if files, err := git.ListFiles(ctx, root); err == nil {
			return files, nil
		}
	}
	return walkFiles(ctx, root)
}

func walkFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		if len(files) >= maxWalkFiles {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// ReadFile reads a project-relative path. Paths escaping the root are rejected.
func (p *FSProvider) ReadFile(ctx context.Context, path string) (string, error) {
	root, err := p.Root(ctx)
	if err != nil {
		return "", err
	}
	full, err := resolveInRoot(root, path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func resolveInRoot(root, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path %q must be project-relative", path)
	}
	full := filepath.Join(root, filepath.FromSlash(path))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes project root", path)
	}
	return full, nil
}
