// ABOUTME: Orchestration engine wiring prompt building, context, sessions, runner, and delivery
// ABOUTME: All process-wide state is owned here and injected through Deps; no package globals

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mauromedda/gpt-go/internal/eventbus"
	"github.com/mauromedda/gpt-go/internal/gate"
	"github.com/mauromedda/gpt-go/internal/history"
	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/projectctx"
	"github.com/mauromedda/gpt-go/internal/prompt"
	"github.com/mauromedda/gpt-go/internal/runner"
	"github.com/mauromedda/gpt-go/internal/session"
	"github.com/mauromedda/gpt-go/internal/textbuf"
	"github.com/mauromedda/gpt-go/internal/types"
)

var (
	// ErrEmptyInstruction rejects flows without an instruction.
	ErrEmptyInstruction = errors.New("empty instruction")
	// ErrNoBuffer means the named buffer does not exist.
	ErrNoBuffer = textbuf.ErrNoBuffer
	// ErrGatePending means the buffer awaits an accept/reject decision.
	ErrGatePending = errors.New("completion pending in buffer")
	// ErrNoGate means no completion is pending in the buffer.
	ErrNoGate = errors.New("no pending completion in buffer")
	// ErrBusy means a session is still streaming into the buffer.
	ErrBusy = errors.New("buffer is still receiving output")
	// ErrContextUnavailable means no project root could be resolved.
	ErrContextUnavailable = projectctx.ErrContextUnavailable
)

// DefaultSurroundingLimit bounds the runes of text sent around a region or point.
const DefaultSurroundingLimit = 8000

// Config holds the tunables that may change at runtime.
type Config struct {
	Invocation runner.Invocation
	Runner     runner.Options
	Policy     session.Policy
	// TitleLength is the title length requested from the model.
	TitleLength      int
	AutoTitle        bool
	AcceptKey        string
	SurroundingLimit int
}

// Deps are the collaborators the engine orchestrates.
type Deps struct {
	Registry  *textbuf.Registry
	Store     *session.Store
	Selection *projectctx.Selection
	Provider  projectctx.FileProvider
	Templates *prompt.Templates
	History   *history.History
	// Transcript may be nil.
	Transcript *session.Log
	// ContextFile persists the selection when non-empty.
	ContextFile string
}

// EventKind names engine events.
type EventKind string

const (
	EventProgress      EventKind = "progress"
	EventNotify        EventKind = "notify"
	EventSessionStatus EventKind = "session_status"
	EventTitle         EventKind = "title"
	EventOverlay       EventKind = "overlay"
	// EventOutput carries one chunk applied to a session's target.
	EventOutput EventKind = "output"
)

// Event is published for every observable side effect except buffer edits,
// which flow through the registry's change bus.
type Event struct {
	Kind     EventKind
	Session  int
	Buffer   string
	Message  string
	Status   types.Status
	Mode     types.Mode
	Detail   string
	Title    string
	Renamed  string
	Elapsed  float64
	Overlays []textbuf.Span
}

// Engine runs the chat, transform, completion, and title flows.
type Engine struct {
	deps     Deps
	resolver *projectctx.Resolver
	events   *eventbus.Bus[Event]

	cfgMu sync.RWMutex
	cfg   Config

	mu     sync.Mutex
	active map[string][]*Run
	gates  map[string]*gate.Gate

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsubs []func()
}

// New builds an engine. Processes it starts live until they exit or Close.
func New(d Deps, cfg Config) *Engine {
	if d.Registry == nil {
		d.Registry = textbuf.NewRegistry()
	}
	if d.Store == nil {
		d.Store = session.NewStore(0)
	}
	if d.Selection == nil {
		d.Selection = projectctx.NewSelection()
	}
	if d.Templates == nil {
		d.Templates = prompt.DefaultTemplates()
	}
	if d.History == nil {
		d.History = history.New("", 0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		deps:   d,
		events: eventbus.New[Event](),
		cfg:    normalizeConfig(cfg),
		active: make(map[string][]*Run),
		gates:  make(map[string]*gate.Gate),
		ctx:    ctx,
		cancel: cancel,
	}
	e.resolver = projectctx.NewResolver(d.Provider, d.Templates, e.Notify)

	e.unsubs = append(e.unsubs,
		d.Store.OnChange(func(s session.Session) {
			e.events.Publish(Event{Kind: EventSessionStatus, Session: s.ID, Buffer: s.Target, Status: s.Status, Mode: s.Mode, Detail: s.Detail, Title: s.Title})
		}),
		d.Registry.OnKill(e.bufferKilled),
		d.Registry.OnRename(e.bufferRenamed),
	)
	return e
}

func normalizeConfig(cfg Config) Config {
	if cfg.Policy == "" {
		cfg.Policy = session.PolicyNamed
	}
	if cfg.TitleLength <= 0 {
		cfg.TitleLength = prompt.DefaultTitleLength
	}
	if cfg.AcceptKey == "" {
		cfg.AcceptKey = gate.DefaultAcceptKey
	}
	if cfg.SurroundingLimit <= 0 {
		cfg.SurroundingLimit = DefaultSurroundingLimit
	}
	return cfg
}

// Config returns the current configuration.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// SetConfig replaces the configuration for flows started afterwards.
func (e *Engine) SetConfig(cfg Config) {
	e.cfgMu.Lock()
	e.cfg = normalizeConfig(cfg)
	e.cfgMu.Unlock()
}

// SetTemplates swaps the prompt templates.
func (e *Engine) SetTemplates(t *prompt.Templates) {
	if t == nil {
		return
	}
	e.mu.Lock()
	e.deps.Templates = t
	e.resolver = projectctx.NewResolver(e.deps.Provider, t, e.Notify)
	e.mu.Unlock()
}

func (e *Engine) templates() (*prompt.Templates, *projectctx.Resolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deps.Templates, e.resolver
}

// Registry returns the buffer registry.
func (e *Engine) Registry() *textbuf.Registry { return e.deps.Registry }

// Store returns the session store.
func (e *Engine) Store() *session.Store { return e.deps.Store }

// Selection returns the context selection.
func (e *Engine) Selection() *projectctx.Selection { return e.deps.Selection }

// History returns the instruction history.
func (e *Engine) History() *history.History { return e.deps.History }

// OnEvent subscribes to engine events.
func (e *Engine) OnEvent(h eventbus.Handler[Event]) func() {
	return e.events.Subscribe(h)
}

// Notify publishes a fire-and-forget user notification.
func (e *Engine) Notify(msg string) {
	e.events.Publish(Event{Kind: EventNotify, Message: msg})
}

func (e *Engine) notifySession(id int, buffer, msg string) {
	e.events.Publish(Event{Kind: EventNotify, Session: id, Buffer: buffer, Message: msg})
}

// Close kills running back ends, waits for bookkeeping, and detaches listeners.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	for _, u := range e.unsubs {
		u()
	}
	return nil
}

// Wait blocks until every started flow has finished its bookkeeping or ctx ends.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status summarises engine state.
type Status struct {
	Sessions     int      `json:"sessions"`
	Counter      int      `json:"counter"`
	Running      []int    `json:"running"`
	PendingGates []string `json:"pending_gates"`
	Context      []string `json:"context"`
	Model        string   `json:"model"`
	Provider     string   `json:"provider"`
	Policy       string   `json:"buffer_policy"`
}

// Status returns a snapshot of sessions, gates, and configuration.
func (e *Engine) Status() Status {
	cfg := e.Config()
	st := Status{
		Sessions: e.deps.Store.Len(),
		Counter:  e.deps.Store.Counter(),
		Context:  e.deps.Selection.Paths(),
		Model:    cfg.Invocation.Model,
		Provider: cfg.Invocation.Provider,
		Policy:   string(cfg.Policy),
		Running:  []int{},
	}
	e.mu.Lock()
	for _, runs := range e.active {
		for _, r := range runs {
			st.Running = append(st.Running, r.ID)
		}
	}
	st.PendingGates = make([]string, 0, len(e.gates))
	for name := range e.gates {
		st.PendingGates = append(st.PendingGates, name)
	}
	e.mu.Unlock()
	return st
}

func (e *Engine) buffer(name string) (*textbuf.Buffer, error) {
	b, ok := e.deps.Registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("buffer %q: %w", name, ErrNoBuffer)
	}
	return b, nil
}

// checkGate rejects flows targeting a buffer with a pending completion.
func (e *Engine) checkGate(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.gates[name]; ok && g.Pending() {
		return fmt.Errorf("buffer %q: %w", name, ErrGatePending)
	}
	return nil
}

func (e *Engine) bufferKilled(name string) {
	e.mu.Lock()
	runs := e.active[name]
	delete(e.active, name)
	g := e.gates[name]
	delete(e.gates, name)
	e.mu.Unlock()

	for _, r := range runs {
		r.sink.Stop()
	}
	if g != nil {
		g.Resolve(gate.Reject)
	}
	if n := e.deps.Store.Forget(name); n > 0 {
		log.Debug("engine: forgot %d sessions of killed buffer %s", n, name)
	}
}

func (e *Engine) bufferRenamed(rn textbuf.Rename) {
	e.mu.Lock()
	if runs, ok := e.active[rn.From]; ok {
		delete(e.active, rn.From)
		e.active[rn.To] = runs
	}
	if g, ok := e.gates[rn.From]; ok {
		delete(e.gates, rn.From)
		e.gates[rn.To] = g
	}
	e.mu.Unlock()
	e.deps.Store.Retarget(rn.From, rn.To)
}

func elapsedSeconds(d time.Duration) float64 {
	return d.Round(time.Millisecond).Seconds()
}
