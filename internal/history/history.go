// ABOUTME: Append-only instruction history persisted one JSON string per line
// ABOUTME: Offers newest-first candidates and fuzzy-ranked suggestions

package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// DefaultMax bounds the entries kept in memory after Load.
const DefaultMax = 1000

// History is the ordered sequence of submitted instructions.
type History struct {
	mu      sync.Mutex
	entries []string
	path    string
	max     int
}

// New returns an in-memory history. With a non-empty path, Add also
// appends to that file.
func New(path string, max int) *History {
	if max <= 0 {
		max = DefaultMax
	}
	return &History{path: path, max: max}
}

// Load reads the history file. A missing file is a fresh start.
func (h *History) Load() error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading history file: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry string
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// Plain-text lines from older files.
			entry = line
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning history file: %w", err)
	}
	if len(entries) > h.max {
		entries = entries[len(entries)-h.max:]
	}

	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()
	return nil
}

// Add appends entry; blank entries are ignored.
func (h *History) Add(entry string) error {
	if strings.TrimSpace(entry) == "" {
		return nil
	}
	h.mu.Lock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = slices.Delete(h.entries, 0, len(h.entries)-h.max)
	}
	h.mu.Unlock()

	if h.path == "" {
		return nil
	}
	return h.appendToFile(entry)
}

func (h *History) appendToFile(entry string) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o700); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding history entry: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening history file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing history file: %w", err)
	}
	return nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns all entries, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}

// Candidates returns distinct entries, most recent first.
func (h *History) Candidates() []string {
	entries := h.Entries()
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if e := entries[i]; !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// Suggest ranks candidates against query. An empty query returns the
// candidates in recency order. limit <= 0 means no limit.
func (h *History) Suggest(query string, limit int) []string {
	cands := h.Candidates()
	var out []string
	if strings.TrimSpace(query) == "" {
		out = cands
	} else {
		for _, m := range fuzzy.Find(query, cands) {
			out = append(out, m.Str)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
