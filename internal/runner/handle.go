// ABOUTME: Per-process state machine: Created, Running, Completed or Failed, Cleaned
// ABOUTME: The liveness ticker stops exactly once and terminal events follow all output

package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/mauromedda/gpt-go/internal/log"
)

// State is the lifecycle position of a Handle.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCleaned
)

var stateNames = [...]string{"created", "running", "completed", "failed", "cleaned"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// EventKind identifies a lifecycle event.
type EventKind int

const (
	EventStarted EventKind = iota
	EventProgress
	EventCompleted
	EventFailed
)

var eventNames = [...]string{"started", "progress", "completed", "failed"}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is emitted on start, on every liveness tick, and once on termination.
type Event struct {
	Kind    EventKind
	PID     int
	Elapsed time.Duration
	// Result is set for EventCompleted and EventFailed.
	Result *Result
}

// Result describes a finished process.
type Result struct {
	ExitCode int
	// Status is the raw status description, e.g. "exit status 1".
	Status string
	// Stderr is the tail of the child's standard error.
	Stderr string
	// PromptFile is the temporary prompt path. It still exists only when Kept.
	PromptFile string
	Kept       bool
	Output     string
	Duration   time.Duration
}

// Success reports a zero exit status.
func (r Result) Success() bool {
	return r.ExitCode == 0 && r.Status != ""
}

// Err returns an *ExitError for failed results and nil otherwise.
func (r Result) Err() error {
	if r.Success() {
		return nil
	}
	return &ExitError{Status: r.Status, Code: r.ExitCode, Stderr: r.Stderr, PromptFile: r.PromptFile}
}

// ExitError is a back-end failure: non-zero exit or death by signal.
type ExitError struct {
	Status     string
	Code       int
	Stderr     string
	PromptFile string
}

func (e *ExitError) Error() string {
	msg := "backend failed: " + e.Status
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Handle wraps one live back-end process.
type Handle struct {
	cmd        *exec.Cmd
	promptFile string
	sink       Sink
	onEvent    func(Event)
	stderr     *tailBuffer
	started    time.Time
	drainDelay time.Duration

	state atomic.Int32

	emitMu   sync.Mutex
	finished bool

	stopTick  chan struct{}
	stopOnce  sync.Once
	tickStops atomic.Int32

	output []byte
	result Result
	done   chan struct{}
}

func newHandle(cmd *exec.Cmd, promptFile string, sink Sink, onEvent func(Event), stderr *tailBuffer, drainDelay time.Duration) *Handle {
	if sink == nil {
		sink = SinkFunc(func(string) {})
	}
	h := &Handle{
		cmd:        cmd,
		promptFile: promptFile,
		sink:       sink,
		onEvent:    onEvent,
		stderr:     stderr,
		started:    time.Now(),
		drainDelay: drainDelay,
		stopTick:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	h.state.Store(int32(StateCreated))
	return h
}

// PID returns the child's process id.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// PromptFile returns the temporary prompt path.
func (h *Handle) PromptFile() string {
	return h.promptFile
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Done is closed after the terminal event has been emitted.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the process finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the outcome; valid only after Done is closed.
func (h *Handle) Result() Result {
	<-h.done
	return h.result
}

func (h *Handle) run(stdout, stderr io.ReadCloser, tick time.Duration) {
	h.state.Store(int32(StateRunning))
	h.emit(Event{Kind: EventStarted, PID: h.PID()})

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		h.pump(stdout)
	}()
	go func() {
		defer readers.Done()
		defer stderr.Close()
		_, _ = io.Copy(h.stderr, stderr)
	}()
	go h.tick(tick)
	go func() {
		err := h.cmd.Wait()
		h.stopTicker()
		h.drain(&readers, stdout, stderr)
		h.finish(err)
	}()
}

// drain waits for the output readers after the child has been reaped. A
// descendant still holding the pipes gets drainDelay before they are closed.
func (h *Handle) drain(readers *sync.WaitGroup, pipes ...io.Closer) {
	drained := make(chan struct{})
	go func() {
		readers.Wait()
		close(drained)
	}()
	t := time.NewTimer(h.drainDelay)
	defer t.Stop()
	select {
	case <-drained:
		return
	case <-t.C:
	}
	log.Debug("runner: pid=%d exited with output still open, closing pipes", h.PID())
	for _, p := range pipes {
		_ = p.Close()
	}
	<-drained
}

// pump forwards stdout to the sink, never splitting a UTF-8 sequence.
func (h *Handle) pump(r io.ReadCloser) {
	defer r.Close()
	buf := make([]byte, 4096)
	var carry []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			cut := validPrefix(data)
			if cut > 0 {
				h.output = append(h.output, data[:cut]...)
				h.sink.Deliver(string(data[:cut]))
			}
			carry = append([]byte(nil), data[cut:]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
				log.Warn("runner: read stdout: %v", err)
			}
			break
		}
	}
	if len(carry) > 0 {
		h.output = append(h.output, carry...)
		h.sink.Deliver(string(carry))
	}
}

// validPrefix returns the length of data up to any trailing incomplete rune.
func validPrefix(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				return i
			}
			break
		}
	}
	return len(data)
}

func (h *Handle) tick(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-h.stopTick:
			return
		case <-t.C:
			h.emitMu.Lock()
			if !h.finished && h.alive() {
				h.emitLocked(Event{Kind: EventProgress, PID: h.PID(), Elapsed: time.Since(h.started)})
			}
			h.emitMu.Unlock()
		}
	}
}

// alive probes the child with signal 0.
func (h *Handle) alive() bool {
	return h.cmd.Process.Signal(syscall.Signal(0)) == nil
}

// stopTicker ends the liveness signal. Safe to call any number of times.
func (h *Handle) stopTicker() {
	h.stopOnce.Do(func() {
		close(h.stopTick)
		h.tickStops.Add(1)
	})
}

func (h *Handle) finish(waitErr error) {
	h.stopTicker()

	res := Result{
		PromptFile: h.promptFile,
		Stderr:     h.stderr.String(),
		Output:     string(h.output),
		Duration:   time.Since(h.started),
	}
	if ps := h.cmd.ProcessState; ps != nil {
		res.ExitCode = ps.ExitCode()
		res.Status = ps.String()
	} else if waitErr != nil {
		res.ExitCode = -1
		res.Status = waitErr.Error()
	}

	kind, state := EventCompleted, StateCompleted
	if res.Success() {
		if err := os.Remove(h.promptFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("runner: remove prompt file: %v", err)
		}
	} else {
		res.Kept = true
		kind, state = EventFailed, StateFailed
		log.Info("runner: pid=%d %s, prompt kept at %s", h.PID(), res.Status, h.promptFile)
	}
	h.result = res

	h.emitMu.Lock()
	h.finished = true
	h.state.Store(int32(state))
	h.emitLocked(Event{Kind: kind, PID: h.PID(), Elapsed: res.Duration, Result: &res})
	h.emitMu.Unlock()

	close(h.done)
	h.state.Store(int32(StateCleaned))
}

func (h *Handle) emit(ev Event) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	h.emitLocked(ev)
}

func (h *Handle) emitLocked(ev Event) {
	if h.onEvent != nil {
		h.onEvent(ev)
	}
}
