// ABOUTME: Tests for the fsnotify settings watcher
// ABOUTME: Validates change detection, debouncing, creation of new files, and shutdown

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_DetectsWriteAndCreate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := filepath.Join(dir, "settings.json")
	later := filepath.Join(dir, "project.json")
	if err := os.WriteFile(existing, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}

	var called atomic.Int32
	w, err := NewWatcher([]string{existing, later}, func() { called.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	w.SetDebounce(20 * time.Millisecond)
	w.Start(context.Background())
	defer w.Close()

	if err := os.WriteFile(existing, []byte(`{"model":"x"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return called.Load() >= 1 })

	before := called.Load()
	if err := os.WriteFile(later, []byte(`{}`), 0o600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return called.Load() > before })
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watched := filepath.Join(dir, "settings.json")

	var called atomic.Int32
	w, err := NewWatcher([]string{watched}, func() { called.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	w.SetDebounce(10 * time.Millisecond)
	w.Start(context.Background())
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if called.Load() != 0 {
		t.Errorf("onChange called %d times for unrelated file", called.Load())
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	var called atomic.Int32
	w, err := NewWatcher([]string{path}, func() { called.Add(1) })
	if err != nil {
		t.Fatal(err)
	}
	w.SetDebounce(150 * time.Millisecond)
	w.Start(context.Background())
	defer w.Close()

	for i := range 5 {
		if err := os.WriteFile(path, []byte{byte('0' + i)}, 0o600); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	waitFor(t, func() bool { return called.Load() >= 1 })
	time.Sleep(250 * time.Millisecond)
	if n := called.Load(); n != 1 {
		t.Errorf("onChange called %d times, want 1", n)
	}
}

func TestWatcher_StopsOnContext(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher([]string{filepath.Join(t.TempDir(), "s.json")}, func() {})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
