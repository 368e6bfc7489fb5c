// ABOUTME: Handler implementations for buffer, flow, context, and session RPC methods
// ABOUTME: Dispatches requests to the engine with input validation

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mauromedda/gpt-go/internal/engine"
	"github.com/mauromedda/gpt-go/internal/markdown"
	"github.com/mauromedda/gpt-go/internal/session"
	"github.com/mauromedda/gpt-go/internal/textbuf"
)

// HandlerFunc processes an RPC request's params and returns a Response.
type HandlerFunc func(ctx context.Context, params json.RawMessage) Response

// Router dispatches RPC requests to registered handlers by method name.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter creates a Router with an empty handler registry.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Register associates a method name with a handler function.
func (r *Router) Register(method string, handler HandlerFunc) {
	r.handlers[method] = handler
}

// Handle dispatches a request to the registered handler, or returns
// a method-not-found error if no handler is registered.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	h, ok := r.handlers[req.Method]
	if !ok {
		return Response{
			ID:    req.ID,
			Error: NewMethodNotFoundError(req.Method),
		}
	}
	resp := h(ctx, req.Params)
	resp.ID = req.ID
	return resp
}

// Deps holds what handlers call into.
type Deps struct {
	Engine *engine.Engine
	// Reload re-reads settings and templates (may be nil).
	Reload func() error
}

// BlockingMethods wait for a back end to finish and must not stall the reader.
var BlockingMethods = []string{MethodGenerateTitle, MethodListProjectFiles}

// RegisterHandlers wires all method handlers into the given router.
func RegisterHandlers(r *Router, d *Deps) {
	e := d.Engine
	r.Register(MethodOpenBuffer, handle(func(_ context.Context, p OpenBufferParams) (any, error) {
		buf := e.Registry().Open(p.Name, p.Text)
		if p.Visible != nil {
			buf.SetVisible(*p.Visible)
		}
		return bufferInfo(buf, false), nil
	}))
	r.Register(MethodEditBuffer, handle(func(_ context.Context, p EditBufferParams) (any, error) {
		buf, ok := e.Registry().Get(p.Name)
		if !ok {
			return nil, fmt.Errorf("buffer %q: %w", p.Name, engine.ErrNoBuffer)
		}
		if err := buf.Replace(p.Start, p.End, p.Text); err != nil {
			return nil, err
		}
		if p.Visible != nil {
			buf.SetVisible(*p.Visible)
		}
		return bufferInfo(buf, false), nil
	}))
	r.Register(MethodGetBuffer, handle(func(_ context.Context, p BufferParams) (any, error) {
		buf, ok := e.Registry().Get(p.Name)
		if !ok {
			return nil, fmt.Errorf("buffer %q: %w", p.Name, engine.ErrNoBuffer)
		}
		return bufferInfo(buf, true), nil
	}))
	r.Register(MethodKillBuffer, handle(func(_ context.Context, p BufferParams) (any, error) {
		return KillResult{Killed: e.Registry().Kill(p.Name)}, nil
	}))

	r.Register(MethodChat, handle(func(ctx context.Context, p ChatParams) (any, error) {
		source, err := engine.ParseInputSource(p.Source)
		if err != nil {
			return nil, invalidParams(err)
		}
		run, err := e.Chat(ctx, engine.ChatRequest{
			Instruction: p.Instruction,
			Source:      source,
			Buffer:      p.Buffer,
			Start:       p.Start,
			End:         p.End,
			Lang:        p.Lang,
			Context:     p.contextMode(),
		})
		return runResult(run), err
	}))
	r.Register(MethodFollowUp, handle(func(ctx context.Context, p FollowUpParams) (any, error) {
		run, err := e.FollowUp(ctx, p.Buffer, p.Instruction)
		return runResult(run), err
	}))
	r.Register(MethodTransformRegion, handle(func(ctx context.Context, p TransformParams) (any, error) {
		run, err := e.TransformRegion(ctx, engine.TransformRequest{
			Buffer:      p.Buffer,
			Start:       p.Start,
			End:         p.End,
			Instruction: p.Instruction,
			Context:     p.contextMode(),
		})
		return runResult(run), err
	}))
	r.Register(MethodCompletePoint, handle(func(ctx context.Context, p CompleteParams) (any, error) {
		run, err := e.CompletePoint(ctx, engine.CompleteRequest{
			Buffer:      p.Buffer,
			Pos:         p.Pos,
			Instruction: p.Instruction,
			Context:     p.contextMode(),
		})
		res := runResult(run)
		if res != nil {
			res.AcceptKey = e.Config().AcceptKey
		}
		return res, err
	}))
	r.Register(MethodGateKey, handle(func(_ context.Context, p GateKeyParams) (any, error) {
		d, err := e.ResolveGate(p.Buffer, p.Key)
		if err != nil {
			return nil, err
		}
		return GateKeyResult{Decision: d.String()}, nil
	}))
	r.Register(MethodGenerateTitle, handle(func(ctx context.Context, p BufferParams) (any, error) {
		return e.GenerateTitle(ctx, p.Name)
	}))

	r.Register(MethodSetContext, handle(func(_ context.Context, p SetContextParams) (any, error) {
		return ContextResult{Files: e.SetContext(p.Files)}, nil
	}))
	r.Register(MethodClearContext, handle(func(_ context.Context, _ struct{}) (any, error) {
		e.ClearContext()
		return ContextResult{Files: []string{}}, nil
	}))
	r.Register(MethodGetContext, handle(func(ctx context.Context, p GetContextParams) (any, error) {
		files, resolved := e.GetContext(ctx, p.Resolve)
		return ContextResult{Files: nonNil(files), Text: resolved.Text, Skipped: resolved.Skipped}, nil
	}))
	r.Register(MethodListProjectFiles, handle(func(ctx context.Context, _ struct{}) (any, error) {
		files, err := e.ListProjectFiles(ctx)
		if err != nil {
			return nil, err
		}
		return ContextResult{Files: nonNil(files)}, nil
	}))

	r.Register(MethodListSessions, handle(func(_ context.Context, p ListSessionsParams) (any, error) {
		var sessions []session.Session
		if p.Buffer != "" {
			sessions = e.Store().ForTarget(p.Buffer)
		} else {
			sessions = e.Store().List()
		}
		if sessions == nil {
			sessions = []session.Session{}
		}
		return SessionListResult{Sessions: sessions, Counter: e.Store().Counter()}, nil
	}))
	r.Register(MethodGetSession, handle(func(_ context.Context, p GetSessionParams) (any, error) {
		sess, ok := e.Store().Get(p.ID)
		if !ok {
			return nil, fmt.Errorf("session %d: %w", p.ID, session.ErrNotFound)
		}
		return sess, nil
	}))
	r.Register(MethodCodeBlocks, handle(func(_ context.Context, p BufferParams) (any, error) {
		blocks, err := e.CodeBlocks(p.Name)
		if err != nil {
			return nil, err
		}
		if blocks == nil {
			blocks = []markdown.CodeBlock{}
		}
		return CodeBlocksResult{Blocks: blocks}, nil
	}))
	r.Register(MethodHistory, handle(func(_ context.Context, p HistoryParams) (any, error) {
		h := e.History()
		if p.Query != "" {
			return HistoryResult{Entries: nonNil(h.Suggest(p.Query, p.Limit))}, nil
		}
		entries := h.Candidates()
		if p.Limit > 0 && len(entries) > p.Limit {
			entries = entries[:p.Limit]
		}
		return HistoryResult{Entries: nonNil(entries)}, nil
	}))
	r.Register(MethodGetStatus, handle(func(_ context.Context, _ struct{}) (any, error) {
		return e.Status(), nil
	}))
	r.Register(MethodReloadConfig, handle(func(_ context.Context, _ struct{}) (any, error) {
		if d.Reload == nil {
			return OKResult{OK: false}, nil
		}
		if err := d.Reload(); err != nil {
			return nil, err
		}
		return OKResult{OK: true}, nil
	}))
}

// handle decodes params into P and maps errors onto RPC errors.
func handle[P any](fn func(context.Context, P) (any, error)) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) Response {
		var p P
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &p); err != nil {
				return Response{Error: NewInvalidParamsError(err.Error())}
			}
		}
		result, err := fn(ctx, p)
		if err != nil {
			var pe *paramError
			if errors.As(err, &pe) {
				return Response{Error: NewInvalidParamsError(pe.Error())}
			}
			return Response{Error: errorFor(err)}
		}
		return Response{Result: result}
	}
}

type paramError struct{ err error }

func (e *paramError) Error() string { return e.err.Error() }

func invalidParams(err error) error { return &paramError{err: err} }

func bufferInfo(buf *textbuf.Buffer, withText bool) BufferResult {
	res := BufferResult{
		Name:     buf.Name(),
		Length:   buf.Len(),
		Visible:  buf.Visible(),
		Overlays: buf.Overlays(),
	}
	if withText {
		res.Text = buf.Text()
	}
	return res
}

func runResult(run *engine.Run) *RunResult {
	if run == nil {
		return nil
	}
	return &RunResult{Session: run.ID, Buffer: run.Buffer}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
