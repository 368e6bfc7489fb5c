// ABOUTME: Launches the model back end as a subprocess fed by a temporary prompt file
// ABOUTME: Streams stdout into a sink, emits liveness ticks, and finalizes on exit

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/mauromedda/gpt-go/internal/log"
)

// DefaultTickInterval is the liveness signal period.
const DefaultTickInterval = time.Second

// DefaultDrainDelay bounds how long output is read after the back end exits.
const DefaultDrainDelay = 2 * time.Second

// promptPattern names temporary prompt files.
const promptPattern = "gpt-prompt-*.txt"

// Sink receives output chunks in arrival order.
type Sink interface {
	Deliver(chunk string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(chunk string)

// Deliver calls f(chunk).
func (f SinkFunc) Deliver(chunk string) { f(chunk) }

// Invocation holds the back-end parameters passed after the prompt file.
type Invocation struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Provider    string
}

// Args returns the positional argument vector for promptFile.
func (inv Invocation) Args(promptFile string) []string {
	return []string{
		promptFile,
		inv.APIKey,
		inv.Model,
		strconv.Itoa(inv.MaxTokens),
		strconv.FormatFloat(inv.Temperature, 'f', -1, 64),
		inv.Provider,
	}
}

// Options configures a Runner.
type Options struct {
	// Backend is the executable implementing the streaming contract.
	Backend string
	// TempDir holds prompt files; empty means os.TempDir().
	TempDir string
	// TickInterval is the liveness period; zero means DefaultTickInterval.
	TickInterval time.Duration
	// UsePTY attaches stdout to a pseudo-terminal so the child flushes per write.
	UsePTY bool
	// Env is appended to the inherited environment.
	Env []string
	// DrainDelay bounds reading output left open by background children
	// after the back end exits; zero means DefaultDrainDelay.
	DrainDelay time.Duration
}

// Runner starts back-end processes. It holds no per-process state and is
// safe for concurrent use.
type Runner struct {
	opts Options
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.DrainDelay <= 0 {
		opts.DrainDelay = DefaultDrainDelay
	}
	return &Runner{opts: opts}
}

// Start writes prompt to a temporary file and launches the back end.
// Output goes to sink; lifecycle events go to onEvent (may be nil), which is
// never called concurrently for one handle. Cancelling ctx kills the
// process group.
func (r *Runner) Start(ctx context.Context, prompt string, inv Invocation, sink Sink, onEvent func(Event)) (*Handle, error) {
	if r.opts.Backend == "" {
		return nil, errors.New("runner: no backend configured")
	}
	promptFile, err := writePrompt(r.opts.TempDir, prompt)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, r.opts.Backend, inv.Args(promptFile)...)
	cmd.Env = append(os.Environ(), r.opts.Env...)
	setProcGroup(cmd)
	cmd.Cancel = func() error {
		return killProcGroup(cmd)
	}
	cmd.WaitDelay = 2 * time.Second

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = os.Remove(promptFile)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stderr = stderrW

	var stdout io.ReadCloser
	if r.opts.UsePTY {
		stdout, err = startWithPTY(cmd)
	} else {
		stdout, err = startWithPipe(cmd)
	}
	stderrW.Close()
	if err != nil {
		stderrR.Close()
		_ = os.Remove(promptFile)
		return nil, fmt.Errorf("start backend %s: %w", r.opts.Backend, err)
	}

	h := newHandle(cmd, promptFile, sink, onEvent, newTailBuffer(stderrTail), r.opts.DrainDelay)
	log.Debug("runner: started pid=%d backend=%s prompt=%s", cmd.Process.Pid, r.opts.Backend, promptFile)
	h.run(stdout, stderrR, r.opts.TickInterval)
	return h, nil
}

func writePrompt(dir, prompt string) (string, error) {
	f, err := os.CreateTemp(dir, promptPattern)
	if err != nil {
		return "", fmt.Errorf("create prompt file: %w", err)
	}
	if _, err := f.WriteString(prompt); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write prompt file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close prompt file: %w", err)
	}
	return f.Name(), nil
}

// startWithPipe starts cmd with stdout on an os.Pipe owned by the caller,
// so reaping the child never closes the read side.
func startWithPipe(cmd *exec.Cmd) (io.ReadCloser, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = w
	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	w.Close()
	return r, nil
}
