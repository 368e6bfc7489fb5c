// ABOUTME: Process-wide ordered set of selected project files, persisted on demand
// ABOUTME: Paths are NFC-normalised so visually identical names compare equal

package projectctx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Selection is the ordered, duplicate-free list of files attached to every
// new chat. It is safe for concurrent use.
type Selection struct {
	mu    sync.RWMutex
	paths []string
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return norm.NFC.String(filepath.ToSlash(filepath.Clean(p)))
}

// Set replaces the selection, keeping first occurrences in order.
func (s *Selection) Set(paths []string) {
	next := make([]string, 0, len(paths))
	for _, p := range paths {
		p = normalizePath(p)
		if p != "" && !slices.Contains(next, p) {
			next = append(next, p)
		}
	}
	s.mu.Lock()
	s.paths = next
	s.mu.Unlock()
}

// Add appends path unless already selected. Reports whether it was added.
func (s *Selection) Add(path string) bool {
	path = normalizePath(path)
	if path == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.paths, path) {
		return false
	}
	s.paths = append(s.paths, path)
	return true
}

// Remove drops path from the selection.
func (s *Selection) Remove(path string) bool {
	path = normalizePath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.paths, path)
	if i < 0 {
		return false
	}
	s.paths = slices.Delete(s.paths, i, i+1)
	return true
}

// Paths returns a copy of the selection in selection order.
func (s *Selection) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.paths)
}

// Len returns the number of selected paths.
func (s *Selection) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.paths = nil
	s.mu.Unlock()
}

type selectionFile struct {
	Files []string `json:"files"`
}

// Save writes the selection to path as JSON, creating parent directories.
func (s *Selection) Save(path string) error {
	data, err := json.MarshalIndent(selectionFile{Files: s.Paths()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal selection: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create selection dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write selection: %w", err)
	}
	return nil
}

// Load replaces the selection with the contents of path. A missing file
// leaves the selection untouched.
func (s *Selection) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read selection: %w", err)
	}
	var f selectionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse selection %s: %w", path, err)
	}
	s.Set(f.Files)
	return nil
}
