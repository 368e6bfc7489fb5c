// ABOUTME: One-shot CLI mode: runs a single engine flow and streams its output
// ABOUTME: Text, JSON, and stream-JSON formatters; optional glamour rendering and code extraction

package print

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mauromedda/gpt-go/internal/engine"
	"github.com/mauromedda/gpt-go/internal/gate"
	"github.com/mauromedda/gpt-go/internal/runner"
)

// Config configures one-shot execution.
type Config struct {
	OutputFormat string // "text" (default), "json", "stream-json"
	Render       bool   // render the final text as markdown (text format only)
	Code         bool   // print only the last fenced code block (text format only)
	Progress     bool   // show elapsed-time ticks on Err
	Width        int    // wrap width for rendering; 0 = 80

	Out io.Writer // defaults to os.Stdout
	Err io.Writer // defaults to os.Stderr

	// Keys decides completion gates. Nil accepts once the back end exits.
	Keys gate.KeySource
}

// StartFunc launches the flow whose output is printed.
type StartFunc func(ctx context.Context) (*engine.Run, error)

// Outcome summarises a finished run.
type Outcome struct {
	Session  int           `json:"session"`
	Buffer   string        `json:"buffer"`
	Text     string        `json:"text"`
	Decision gate.Decision `json:"-"`
	Result   runner.Result `json:"-"`
}

// Run starts a flow, streams its events through the configured formatter,
// settles any completion gate, and waits for the final status. A rejected
// completion returns gate.ErrUserAbort.
func Run(ctx context.Context, eng *engine.Engine, cfg Config, start StartFunc) (Outcome, error) {
	cfg = normalize(cfg)
	f := &lockedFormatter{f: newFormatter(cfg)}
	rl := &relay{f: f}
	detach := eng.OnEvent(rl.handle)
	defer detach()

	f.start()
	run, err := start(ctx)
	if err != nil {
		f.err(err)
		return Outcome{}, err
	}
	rl.bind(run.ID)

	var decision gate.Decision
	if run.Gate != nil {
		decision, err = settleGate(ctx, run, cfg, f)
		if err != nil {
			f.err(err)
		}
	}

	res, werr := run.Wait(ctx)
	out := Outcome{
		Session:  run.ID,
		Buffer:   run.Buffer,
		Text:     run.Delivered(),
		Decision: decision,
		Result:   res,
	}
	if decision == gate.Reject {
		werr = gate.ErrUserAbort
	}
	f.end(out, werr)
	return out, werr
}

func normalize(cfg Config) Config {
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "text"
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Err == nil {
		cfg.Err = os.Stderr
	}
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	return cfg
}

func settleGate(ctx context.Context, run *engine.Run, cfg Config, f formatter) (gate.Decision, error) {
	g := run.Gate
	if cfg.Keys == nil {
		select {
		case <-run.Handle.Done():
		case <-ctx.Done():
			g.Resolve(gate.Reject)
			return g.Decision(), ctx.Err()
		}
		g.Resolve(gate.Accept)
		return g.Decision(), nil
	}
	f.hint(fmt.Sprintf("press %s to accept, any other key to reject", g.AcceptKey()))
	return g.Await(ctx, cfg.Keys)
}

// lockedFormatter serialises calls from the caller and the engine's
// delivery goroutines.
type lockedFormatter struct {
	mu sync.Mutex
	f  formatter
}

func (l *lockedFormatter) start() { l.mu.Lock(); l.f.start(); l.mu.Unlock() }

func (l *lockedFormatter) text(s string) { l.mu.Lock(); l.f.text(s); l.mu.Unlock() }

func (l *lockedFormatter) progress(msg string, elapsed float64) {
	l.mu.Lock()
	l.f.progress(msg, elapsed)
	l.mu.Unlock()
}

func (l *lockedFormatter) notice(msg string) { l.mu.Lock(); l.f.notice(msg); l.mu.Unlock() }

func (l *lockedFormatter) hint(msg string) { l.mu.Lock(); l.f.hint(msg); l.mu.Unlock() }

func (l *lockedFormatter) err(e error) { l.mu.Lock(); l.f.err(e); l.mu.Unlock() }

func (l *lockedFormatter) end(out Outcome, err error) {
	l.mu.Lock()
	l.f.end(out, err)
	l.mu.Unlock()
}

// relay holds events published before the session id is known. Events
// without a session, such as context diagnostics, pass through at bind.
type relay struct {
	mu      sync.Mutex
	f       formatter
	id      int
	pending []engine.Event
}

func (r *relay) handle(ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id == 0 {
		r.pending = append(r.pending, ev)
		return
	}
	if ev.Session == r.id {
		dispatch(r.f, ev)
	}
}

func (r *relay) bind(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
	for _, ev := range r.pending {
		if ev.Session == id || ev.Session == 0 {
			dispatch(r.f, ev)
		}
	}
	r.pending = nil
}

func dispatch(f formatter, ev engine.Event) {
	switch ev.Kind {
	case engine.EventOutput:
		f.text(ev.Message)
	case engine.EventProgress:
		f.progress(ev.Message, ev.Elapsed)
	case engine.EventNotify:
		f.notice(ev.Message)
	}
}

// ExitCode maps a run error to a process exit code.
func ExitCode(err error) int {
	var ee *runner.ExitError
	switch {
	case err == nil, errors.Is(err, gate.ErrUserAbort):
		return 0
	case errors.As(err, &ee) && ee.Code > 0:
		return ee.Code
	}
	return 1
}
