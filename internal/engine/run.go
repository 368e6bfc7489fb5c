// ABOUTME: Session run bookkeeping: launch, progress forwarding, and terminal settlement
// ABOUTME: Gated runs settle only once both the process has exited and the gate is decided

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mauromedda/gpt-go/internal/deliver"
	"github.com/mauromedda/gpt-go/internal/gate"
	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/runner"
	"github.com/mauromedda/gpt-go/internal/session"
	"github.com/mauromedda/gpt-go/internal/types"
)

// Run is one started session.
type Run struct {
	ID     int
	Mode   types.Mode
	Buffer string
	Handle *runner.Handle
	// Gate is set for point completions.
	Gate *gate.Gate

	sink  deliver.Sink
	gated bool

	// finish runs flow-specific cleanup once the process has exited.
	finish func(runner.Result)

	mu       sync.Mutex
	procDone bool
	result   runner.Result
	decision gate.Decision
	once     sync.Once
	done     chan struct{}
}

// Done is closed once the session has reached its final status.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run is settled and returns the process result.
// A failed process yields a *runner.ExitError.
func (r *Run) Wait(ctx context.Context) (runner.Result, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return runner.Result{}, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.result.Err()
}

// Delivered returns the text applied to the target so far.
func (r *Run) Delivered() string {
	if r.sink == nil {
		return ""
	}
	return r.sink.Delivered()
}

func newRun(sess session.Session, sink deliver.Sink, gated bool) *Run {
	return &Run{
		ID:     sess.ID,
		Mode:   sess.Mode,
		Buffer: sess.Target,
		sink:   sink,
		gated:  gated,
		done:   make(chan struct{}),
	}
}

// launch records the session start, spawns the back end, and settles the
// session in the background when the process exits. track registers the
// run against its buffer.
func (e *Engine) launch(r *Run, promptText string, track bool) error {
	cfg := e.Config()
	sess, _ := e.deps.Store.Get(r.ID)
	e.record(session.RecordSessionStart, r.ID, session.StartData{
		Mode:        r.Mode.String(),
		Target:      r.Buffer,
		Instruction: sess.Instruction,
		Model:       cfg.Invocation.Model,
		Provider:    cfg.Invocation.Provider,
	})
	e.record(session.RecordPrompt, r.ID, session.PromptData{Prompt: promptText})
	e.setStatus(r.ID, types.StatusRunning, "")

	sink := runner.SinkFunc(func(chunk string) {
		if r.sink != nil {
			r.sink.Deliver(chunk)
			if r.sink.Stopped() {
				return
			}
		}
		e.events.Publish(Event{Kind: EventOutput, Session: r.ID, Buffer: r.Buffer, Mode: r.Mode, Message: chunk})
	})
	if track {
		e.mu.Lock()
		e.active[r.Buffer] = append(e.active[r.Buffer], r)
		e.mu.Unlock()
	}

	h, err := runner.New(cfg.Runner).Start(e.ctx, promptText, cfg.Invocation, sink, func(ev runner.Event) {
		if ev.Kind == runner.EventProgress {
			e.events.Publish(Event{
				Kind:    EventProgress,
				Session: r.ID,
				Buffer:  e.targetOf(r),
				Message: "gpt: running...",
				Elapsed: elapsedSeconds(ev.Elapsed),
			})
		}
	})
	if err != nil {
		if track {
			e.untrack(r)
		}
		if r.finish != nil {
			r.finish(runner.Result{Status: err.Error(), ExitCode: -1})
		}
		e.setStatus(r.ID, types.StatusFailed, err.Error())
		e.record(session.RecordSessionEnd, r.ID, session.EndData{Status: types.StatusFailed.String(), Detail: err.Error()})
		e.notifySession(r.ID, r.Buffer, "gpt: "+err.Error())
		r.mu.Lock()
		r.procDone = true
		r.result = runner.Result{Status: err.Error(), ExitCode: -1}
		r.mu.Unlock()
		r.once.Do(func() { close(r.done) })
		return fmt.Errorf("session %d: %w", r.ID, err)
	}
	r.Handle = h

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		<-h.Done()
		res := h.Result()
		if track {
			e.untrack(r)
		}
		if r.finish != nil {
			r.finish(res)
		}
		e.record(session.RecordCompletion, r.ID, session.CompletionData{Completion: res.Output})
		if res.Success() {
			e.notifySession(r.ID, e.targetOf(r), "gpt: completed")
		} else {
			msg := fmt.Sprintf("gpt: failed: %s (prompt kept at %s)", res.Status, res.PromptFile)
			if last := lastLine(res.Stderr); last != "" {
				msg += ": " + last
			}
			e.notifySession(r.ID, e.targetOf(r), msg)
		}
		r.mu.Lock()
		r.procDone = true
		r.result = res
		r.mu.Unlock()
		e.settle(r)
	}()
	return nil
}

// decide records a gate decision and settles the run if possible.
func (e *Engine) decide(r *Run, d gate.Decision) {
	r.mu.Lock()
	r.decision = d
	r.mu.Unlock()
	e.settle(r)
}

// settle applies the final status. A rejected gate cancels at once; an
// accepted or ungated run takes its status from the process result. The
// run is done when the process has exited and any gate is decided.
func (e *Engine) settle(r *Run) {
	r.mu.Lock()
	var (
		apply  bool
		status types.Status
		detail string
	)
	switch {
	case r.gated && r.decision == gate.Reject:
		apply, status, detail = true, types.StatusCanceled, gate.ErrUserAbort.Error()
	case r.procDone && (!r.gated || r.decision == gate.Accept):
		apply = true
		if r.result.Success() {
			status = types.StatusCompleted
		} else {
			status, detail = types.StatusFailed, r.result.Status
		}
	}
	finished := r.procDone && (!r.gated || r.decision != 0)
	r.mu.Unlock()

	if apply {
		if sess, ok := e.setStatus(r.ID, status, detail); ok {
			e.record(session.RecordSessionEnd, r.ID, session.EndData{Status: sess.Status.String(), Detail: sess.Detail})
		}
	}
	if finished {
		r.once.Do(func() { close(r.done) })
	}
}

// setStatus transitions a session, reporting whether this call changed it.
// Transitions of terminal or forgotten sessions are ignored.
func (e *Engine) setStatus(id int, status types.Status, detail string) (session.Session, bool) {
	sess, err := e.deps.Store.SetStatus(id, status, detail)
	switch {
	case err == nil:
		return sess, true
	case errors.Is(err, session.ErrTerminal), errors.Is(err, session.ErrNotFound):
		log.Debug("engine: %v", err)
	default:
		log.Warn("engine: %v", err)
	}
	return sess, false
}

func (e *Engine) record(t session.RecordType, id int, data any) {
	if err := e.deps.Transcript.Write(t, id, data); err != nil {
		log.Warn("engine: transcript: %v", err)
	}
}

// targetOf returns the run's current buffer name, following renames.
func (e *Engine) targetOf(r *Run) string {
	if sess, ok := e.deps.Store.Get(r.ID); ok {
		return sess.Target
	}
	return r.Buffer
}

func (e *Engine) untrack(r *Run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, runs := range e.active {
		for i, other := range runs {
			if other != r {
				continue
			}
			runs = append(runs[:i:i], runs[i+1:]...)
			if len(runs) == 0 {
				delete(e.active, name)
			} else {
				e.active[name] = runs
			}
			return
		}
	}
}

// streaming reports whether append-mode output is still arriving in buffer.
func (e *Engine) streaming(buffer string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.active[buffer] {
		if r.Mode == types.ModeChat || r.Mode == types.ModeFollowUp {
			return true
		}
	}
	return false
}

// lastLine returns the final non-blank line of s.
func lastLine(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
