// ABOUTME: Region transformation and point completion flows streaming at live markers
// ABOUTME: Failed transforms restore the original region; completions wait on a gate

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mauromedda/gpt-go/internal/deliver"
	"github.com/mauromedda/gpt-go/internal/gate"
	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/prompt"
	"github.com/mauromedda/gpt-go/internal/runner"
	"github.com/mauromedda/gpt-go/internal/textbuf"
	"github.com/mauromedda/gpt-go/internal/types"
)

// TransformRequest rewrites [Start, End) of Buffer.
type TransformRequest struct {
	Buffer      string
	Start, End  int
	Instruction string
	Context     ContextMode
}

// TransformRegion replaces a region with the model's rewrite, streamed in
// place. If the back end fails the original region is put back.
func (e *Engine) TransformRegion(ctx context.Context, req TransformRequest) (*Run, error) {
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return nil, ErrEmptyInstruction
	}
	buf, err := e.buffer(req.Buffer)
	if err != nil {
		return nil, err
	}
	if err := e.checkGate(req.Buffer); err != nil {
		return nil, err
	}
	region, err := buf.ReadRange(req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	e.remember(instruction)

	cfg := e.Config()
	tpl, _ := e.templates()
	before, after := surrounding(buf, req.Start, req.End, cfg.SurroundingLimit)
	text := prompt.Build(types.ModeRegionTransform, prompt.Input{
		Instruction: instruction,
		Context:     e.contextBlock(ctx, req.Context),
		Region:      region,
		Before:      before,
		After:       after,
	}, tpl)

	if err := buf.Delete(req.Start, req.End); err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	sink, err := deliver.NewMarkerSink(buf, req.Start)
	if err != nil {
		_ = buf.Insert(req.Start, region)
		return nil, fmt.Errorf("region: %w", err)
	}

	sess := e.deps.Store.Create(types.ModeRegionTransform, req.Buffer, instruction)
	run := newRun(sess, sink, false)
	run.finish = func(res runner.Result) {
		defer sink.Release()
		if res.Success() {
			return
		}
		if err := sink.Rollback(); err != nil {
			log.Warn("engine: rollback %s: %v", buf.Name(), err)
			return
		}
		if err := buf.InsertAt(sink.Start(), region); err != nil {
			log.Warn("engine: restore region %s: %v", buf.Name(), err)
		}
	}
	if err := e.launch(run, text, true); err != nil {
		return run, err
	}
	return run, nil
}

// CompleteRequest continues the text at Pos of Buffer.
type CompleteRequest struct {
	Buffer string
	Pos    int
	// Instruction is optional guidance for the continuation.
	Instruction string
	Context     ContextMode
}

// CompletePoint streams a continuation at a point and opens a gate over
// it. The caller resolves the gate with ResolveGate or Run.Gate.Await.
func (e *Engine) CompletePoint(ctx context.Context, req CompleteRequest) (*Run, error) {
	buf, err := e.buffer(req.Buffer)
	if err != nil {
		return nil, err
	}
	if req.Pos < 0 || req.Pos > buf.Len() {
		return nil, fmt.Errorf("point %d: %w", req.Pos, textbuf.ErrOutOfRange)
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction != "" {
		e.remember(instruction)
	}

	cfg := e.Config()
	tpl, _ := e.templates()
	before, after := surrounding(buf, req.Pos, req.Pos, cfg.SurroundingLimit)
	text := prompt.Build(types.ModePointCompletion, prompt.Input{
		Instruction: instruction,
		Context:     e.contextBlock(ctx, req.Context),
		Before:      before,
		After:       after,
	}, tpl)

	sink, err := deliver.NewMarkerSink(buf, req.Pos)
	if err != nil {
		return nil, fmt.Errorf("point: %w", err)
	}

	// Reserve the buffer's gate slot before anything can stream into it.
	e.mu.Lock()
	if g, ok := e.gates[req.Buffer]; ok && g.Pending() {
		e.mu.Unlock()
		sink.Release()
		return nil, fmt.Errorf("buffer %q: %w", req.Buffer, ErrGatePending)
	}
	title := instruction
	if title == "" {
		title = "complete at point"
	}
	sess := e.deps.Store.Create(types.ModePointCompletion, req.Buffer, title)
	run := newRun(sess, sink, true)
	g := gate.New(buf, sink, gate.Options{
		AcceptKey: cfg.AcceptKey,
		Notify:    func(msg string) { e.notifySession(run.ID, e.targetOf(run), "gpt: "+msg) },
		OnResolve: func(d gate.Decision) {
			e.mu.Lock()
			for name, other := range e.gates {
				if other == run.Gate {
					delete(e.gates, name)
				}
			}
			e.mu.Unlock()
			e.publishOverlays(buf)
			e.decide(run, d)
		},
	})
	run.Gate = g
	e.gates[req.Buffer] = g
	e.mu.Unlock()
	e.publishOverlays(buf)

	if err := e.launch(run, text, true); err != nil {
		g.Resolve(gate.Reject)
		return run, err
	}
	return run, nil
}

// ResolveGate applies key to the pending completion of buffer: the accept
// key keeps the text, any other key rolls it back.
func (e *Engine) ResolveGate(buffer, key string) (gate.Decision, error) {
	e.mu.Lock()
	g, ok := e.gates[buffer]
	e.mu.Unlock()
	if !ok || !g.Pending() {
		return 0, fmt.Errorf("buffer %q: %w", buffer, ErrNoGate)
	}
	g.Resolve(g.DecisionFor(key))
	return g.Decision(), nil
}

// PendingGate returns the undecided gate of buffer, if any.
func (e *Engine) PendingGate(buffer string) (*gate.Gate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.gates[buffer]
	if !ok || !g.Pending() {
		return nil, false
	}
	return g, true
}

func (e *Engine) publishOverlays(buf *textbuf.Buffer) {
	e.events.Publish(Event{Kind: EventOverlay, Buffer: buf.Name(), Overlays: buf.Overlays()})
}

// surrounding returns up to limit runes before start and after end.
func surrounding(buf *textbuf.Buffer, start, end, limit int) (string, string) {
	from := max(0, start-limit)
	to := min(buf.Len(), end+limit)
	before, err := buf.ReadRange(from, start)
	if err != nil {
		before = ""
	}
	after, err := buf.ReadRange(end, to)
	if err != nil {
		after = ""
	}
	return before, after
}
