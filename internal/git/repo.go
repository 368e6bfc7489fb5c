// ABOUTME: Repository discovery helpers: toplevel resolution and tracked file listing
// ABOUTME: Wraps read-only git invocations with timeouts and argument validation

package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const gitTimeout = 10 * time.Second

// RepoRoot returns the repository root for dir via git rev-parse --show-toplevel.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	out, err := gitCmd(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("git repo root: %w: %s", err, strings.TrimSpace(out))
	}
	return strings.TrimSpace(out), nil
}

// IsWorktree reports whether dir is inside a git working tree.
func IsWorktree(ctx context.Context, dir string) bool {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	out, err := gitCmd(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// ListFiles returns tracked and untracked-but-not-ignored files under root,
// relative to root, in git's order.
func ListFiles(ctx context.Context, root string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	out, err := gitCmd(ctx, root, "ls-files", "--cached", "--others", "--exclude-standard", "-z")
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var files []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(out, "\x00") {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		files = append(files, f)
	}
	return files, nil
}

// gitCmd runs a validated git command in dir and returns its stdout.
func gitCmd(ctx context.Context, dir string, args ...string) (string, error) {
	sanitized, err := sanitizeArgs(args)
	if err != nil {
		return "", fmt.Errorf("git command validation failed: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", sanitized...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var stderr string
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = string(ee.Stderr)
		}
		return stderr, err
	}
	return string(out), nil
}
