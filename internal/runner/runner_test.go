// ABOUTME: Tests for the back-end process runner using /bin/sh scripts as fake back ends
// ABOUTME: Covers argument contract, ordered delivery, failure retention, ticks, and cancellation

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fakeBackend(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backend.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

type recorder struct {
	mu     sync.Mutex
	chunks []string
	events []Event
}

func (r *recorder) Deliver(chunk string) {
	r.mu.Lock()
	r.chunks = append(r.chunks, chunk)
	r.mu.Unlock()
}

func (r *recorder) onEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.chunks, "")
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

var testInvocation = Invocation{APIKey: "sk-test", Model: "gpt-4o", MaxTokens: 2000, Temperature: 0, Provider: "openai"}

func waitDone(t *testing.T, h *Handle) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return res
}

func TestInvocation_Args(t *testing.T) {
	t.Parallel()

	got := Invocation{APIKey: "k", Model: "m", MaxTokens: 10, Temperature: 0.5, Provider: "anthropic"}.Args("/tmp/p.txt")
	want := []string{"/tmp/p.txt", "k", "m", "10", "0.5", "anthropic"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Args = %v, want %v", got, want)
	}
}

func TestStart_Success(t *testing.T) {
	t.Parallel()

	backend := fakeBackend(t, `printf 'args:%s %s %s %s %s\n' "$2" "$3" "$4" "$5" "$6"
printf 'prompt:'
cat "$1"
printf '\nhello '
sleep 0.05
printf 'world'`)

	rec := &recorder{}
	r := New(Options{Backend: backend, TempDir: t.TempDir(), TickInterval: 10 * time.Millisecond})
	h, err := r.Start(context.Background(), "User: hi\n\nAssistant: ", testInvocation, rec, rec.onEvent)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitDone(t, h)

	if !res.Success() || res.Err() != nil {
		t.Fatalf("result = %+v", res)
	}
	want := "args:sk-test gpt-4o 2000 0 openai\nprompt:User: hi\n\nAssistant: \nhello world"
	if got := rec.text(); got != want {
		t.Errorf("delivered = %q, want %q", got, want)
	}
	if res.Output != want {
		t.Errorf("Output = %q", res.Output)
	}
	if _, err := os.Stat(h.PromptFile()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("prompt file should be removed on success, stat err = %v", err)
	}
	kinds := rec.kinds()
	if kinds[0] != EventStarted || kinds[len(kinds)-1] != EventCompleted {
		t.Errorf("event kinds = %v", kinds)
	}
	if h.State() != StateCleaned {
		t.Errorf("State = %s, want cleaned", h.State())
	}
}

func TestStart_FailureKeepsPrompt(t *testing.T) {
	t.Parallel()

	backend := fakeBackend(t, `printf 'partial'
echo 'quota exceeded' >&2
exit 1`)

	rec := &recorder{}
	r := New(Options{Backend: backend, TempDir: t.TempDir(), TickInterval: 5 * time.Millisecond})
	h, err := r.Start(context.Background(), "prompt", testInvocation, rec, rec.onEvent)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	res := waitDone(t, h)

	if res.Success() {
		t.Fatal("expected failure")
	}
	if res.Status != "exit status 1" || res.ExitCode != 1 {
		t.Errorf("status = %q code = %d", res.Status, res.ExitCode)
	}
	if !res.Kept {
		t.Error("Kept should be true")
	}
	data, err := os.ReadFile(res.PromptFile)
	if err != nil || string(data) != "prompt" {
		t.Errorf("prompt file should survive failure: %q, %v", data, err)
	}
	var exitErr *ExitError
	if !errors.As(res.Err(), &exitErr) || !strings.Contains(exitErr.Error(), "quota exceeded") {
		t.Errorf("Err = %v", res.Err())
	}
	if rec.text() != "partial" {
		t.Errorf("delivered = %q", rec.text())
	}
	if n := h.tickStops.Load(); n != 1 {
		t.Errorf("ticker stopped %d times, want 1", n)
	}
	h.stopTicker()
	if n := h.tickStops.Load(); n != 1 {
		t.Errorf("ticker stopped %d times after extra stop, want 1", n)
	}
	kinds := rec.kinds()
	if kinds[len(kinds)-1] != EventFailed {
		t.Errorf("last event = %s", kinds[len(kinds)-1])
	}
}

func TestStart_ProgressTicksStopAtTermination(t *testing.T) {
	t.Parallel()

	backend := fakeBackend(t, `sleep 0.3; printf done`)
	rec := &recorder{}
	r := New(Options{Backend: backend, TempDir: t.TempDir(), TickInterval: 20 * time.Millisecond})
	h, err := r.Start(context.Background(), "p", testInvocation, rec, rec.onEvent)
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, h)
	time.Sleep(60 * time.Millisecond)

	kinds := rec.kinds()
	progress := 0
	terminal := -1
	for i, k := range kinds {
		switch k {
		case EventProgress:
			progress++
			if terminal >= 0 {
				t.Errorf("progress event after terminal event at %d", i)
			}
		case EventCompleted, EventFailed:
			if terminal >= 0 {
				t.Errorf("second terminal event at %d", i)
			}
			terminal = i
		}
	}
	if progress == 0 {
		t.Error("expected at least one progress event")
	}
	if terminal != len(kinds)-1 {
		t.Errorf("terminal event not last: %v", kinds)
	}
}

func TestStart_BackgroundChildDoesNotDelayTermination(t *testing.T) {
	t.Parallel()

	backend := fakeBackend(t, `printf done; sleep 3 & exit 0`)
	rec := &recorder{}
	r := New(Options{
		Backend:      backend,
		TempDir:      t.TempDir(),
		TickInterval: 20 * time.Millisecond,
		DrainDelay:   100 * time.Millisecond,
	})
	start := time.Now()
	h, err := r.Start(context.Background(), "p", testInvocation, rec, rec.onEvent)
	if err != nil {
		t.Fatal(err)
	}
	res := waitDone(t, h)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("terminal event after %s, want well before the background child exits", elapsed)
	}
	if !res.Success() {
		t.Errorf("Status = %q, want success", res.Status)
	}
	if got := rec.text(); got != "done" {
		t.Errorf("delivered = %q, want %q", got, "done")
	}
	progress := 0
	for _, k := range rec.kinds() {
		if k == EventProgress {
			progress++
		}
	}
	if progress > 10 {
		t.Errorf("%d progress events for a process that exited at once", progress)
	}
}

func TestStart_SplitMultibyteRunes(t *testing.T) {
	t.Parallel()

	// "é" is 0xC3 0xA9; emit the bytes in separate writes.
	backend := fakeBackend(t, `printf '\303'; sleep 0.05; printf '\251!'`)
	rec := &recorder{}
	h, err := New(Options{Backend: backend, TempDir: t.TempDir()}).Start(context.Background(), "p", testInvocation, rec, nil)
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, h)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, c := range rec.chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk split a rune: %q", c)
		}
	}
	if strings.Join(rec.chunks, "") != "é!" {
		t.Errorf("delivered = %q", rec.chunks)
	}
}

func TestStart_ContextCancelKillsGroup(t *testing.T) {
	t.Parallel()

	backend := fakeBackend(t, `sleep 30 & wait`)
	ctx, cancel := context.WithCancel(context.Background())
	h, err := New(Options{Backend: backend, TempDir: t.TempDir()}).Start(ctx, "p", testInvocation, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	res := waitDone(t, h)
	if res.Success() {
		t.Error("cancelled process should not succeed")
	}
	if !strings.Contains(res.Status, "killed") {
		t.Errorf("Status = %q, want signal description", res.Status)
	}
}

func TestWait_ContextExpires(t *testing.T) {
	t.Parallel()

	backend := fakeBackend(t, `sleep 0.3`)
	h, err := New(Options{Backend: backend, TempDir: t.TempDir()}).Start(context.Background(), "p", testInvocation, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait err = %v", err)
	}
	<-h.Done()
}

func TestStart_MissingBackend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := New(Options{Backend: filepath.Join(dir, "nope"), TempDir: dir}).Start(context.Background(), "p", testInvocation, nil, nil)
	if err == nil {
		t.Fatal("expected start error")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "gpt-prompt-*.txt"))
	if len(matches) != 0 {
		t.Errorf("prompt file left behind: %v", matches)
	}
}

func TestStart_PTY(t *testing.T) {
	t.Parallel()

	backend := fakeBackend(t, `printf 'a\nb'`)
	rec := &recorder{}
	h, err := New(Options{Backend: backend, TempDir: t.TempDir(), UsePTY: true}).Start(context.Background(), "p", testInvocation, rec, nil)
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	res := waitDone(t, h)
	if !res.Success() {
		t.Fatalf("result = %+v", res)
	}
	if got := rec.text(); got != "a\nb" {
		t.Errorf("delivered = %q, want raw newlines", got)
	}
}

func TestValidPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []byte
		want int
	}{
		{[]byte("abc"), 3},
		{[]byte{'a', 0xC3}, 1},
		{[]byte{'a', 0xC3, 0xA9}, 3},
		{[]byte{0xE2, 0x82}, 0},
		{[]byte{0xE2, 0x82, 0xAC}, 3},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := validPrefix(tt.in); got != tt.want {
			t.Errorf("validPrefix(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
