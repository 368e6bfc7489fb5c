// ABOUTME: Chat and follow-up flows streaming replies into session output buffers
// ABOUTME: Output buffers hold the full conversation so follow-ups reuse the buffer text

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/mauromedda/gpt-go/internal/deliver"
	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/prompt"
	"github.com/mauromedda/gpt-go/internal/runner"
	"github.com/mauromedda/gpt-go/internal/session"
	"github.com/mauromedda/gpt-go/internal/textbuf"
	"github.com/mauromedda/gpt-go/internal/types"
)

// InputSource selects the text attached to a chat as its input block.
type InputSource string

const (
	InputNone    InputSource = "none"
	InputRegion  InputSource = "region"
	InputBuffer  InputSource = "buffer"
	InputVisible InputSource = "visible"
)

// ParseInputSource validates a source name; empty means InputNone.
func ParseInputSource(s string) (InputSource, error) {
	switch InputSource(s) {
	case "", InputNone:
		return InputNone, nil
	case InputRegion, InputBuffer, InputVisible:
		return InputSource(s), nil
	}
	return "", fmt.Errorf("unknown input source %q", s)
}

// ContextMode selects which project files are attached.
type ContextMode struct {
	// Files overrides the persistent selection when non-nil.
	Files []string `json:"files,omitempty"`
	// Disabled attaches no project context.
	Disabled bool `json:"disabled,omitempty"`
}

// ChatRequest starts a new chat session.
type ChatRequest struct {
	Instruction string
	Source      InputSource
	// Buffer is the input buffer for InputRegion and InputBuffer.
	Buffer string
	// Start and End delimit the region for InputRegion.
	Start, End int
	// Lang labels the fenced input block.
	Lang    string
	Context ContextMode
}

// Chat starts a chat session and returns once the back end is running.
// The reply streams into a new output buffer named after the session.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (*Run, error) {
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return nil, ErrEmptyInstruction
	}
	input, err := e.chatInput(req)
	if err != nil {
		return nil, err
	}
	e.remember(instruction)

	cfg := e.Config()
	tpl, _ := e.templates()
	text := prompt.Build(types.ModeChat, prompt.Input{
		Instruction: instruction,
		Context:     e.contextBlock(ctx, req.Context),
		Input:       input,
		InputLang:   req.Lang,
	}, tpl)

	sess := e.deps.Store.Create(types.ModeChat, "", instruction)
	buf := e.outputBuffer(cfg.Policy, sess)
	if _, err := e.deps.Store.SetTarget(sess.ID, buf.Name()); err != nil {
		return nil, err
	}
	sess.Target = buf.Name()
	buf.Append(text)

	run := newRun(sess, deliver.NewAppendSink(buf), false)
	if cfg.AutoTitle && cfg.Policy == session.PolicyNamed {
		run.finish = func(res runner.Result) {
			if res.Success() {
				e.autoTitle(run)
			}
		}
	}
	if err := e.launch(run, text, true); err != nil {
		return run, err
	}
	return run, nil
}

// FollowUp continues the conversation held in an output buffer.
func (e *Engine) FollowUp(ctx context.Context, buffer, instruction string) (*Run, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, ErrEmptyInstruction
	}
	buf, err := e.buffer(buffer)
	if err != nil {
		return nil, err
	}
	if err := e.checkGate(buffer); err != nil {
		return nil, err
	}
	if e.streaming(buffer) {
		return nil, fmt.Errorf("buffer %q: %w", buffer, ErrBusy)
	}
	e.remember(instruction)

	tpl, _ := e.templates()
	transcript := buf.Text()
	text := prompt.Build(types.ModeFollowUp, prompt.Input{
		Instruction: instruction,
		Transcript:  transcript,
	}, tpl)

	sess := e.deps.Store.Create(types.ModeFollowUp, buffer, instruction)
	if strings.TrimSpace(transcript) == "" {
		buf.Append(text)
	} else {
		buf.Append("\n\n" + prompt.Turn(instruction))
	}

	run := newRun(sess, deliver.NewAppendSink(buf), false)
	if err := e.launch(run, text, true); err != nil {
		return run, err
	}
	return run, nil
}

// outputBuffer allocates the chat output buffer for sess under policy.
func (e *Engine) outputBuffer(policy session.Policy, sess session.Session) *textbuf.Buffer {
	reg := e.deps.Registry
	if policy == session.PolicyEphemeral {
		e.mu.Lock()
		runs := e.active[session.EphemeralBuffer]
		delete(e.active, session.EphemeralBuffer)
		e.mu.Unlock()
		for _, r := range runs {
			r.sink.Stop()
		}
		buf := reg.Open(session.EphemeralBuffer, "")
		buf.SetVisible(true)
		return buf
	}
	name := reg.Unique(session.BufferName(policy, sess.ID, sess.Title))
	buf := reg.Open(name, "")
	buf.SetVisible(true)
	return buf
}

func (e *Engine) chatInput(req ChatRequest) (string, error) {
	switch req.Source {
	case "", InputNone:
		return "", nil
	case InputRegion:
		buf, err := e.buffer(req.Buffer)
		if err != nil {
			return "", err
		}
		return buf.ReadRange(req.Start, req.End)
	case InputBuffer:
		buf, err := e.buffer(req.Buffer)
		if err != nil {
			return "", err
		}
		return buf.Text(), nil
	case InputVisible:
		var parts []string
		for _, b := range e.deps.Registry.Visible() {
			if strings.HasPrefix(b.Name(), "*gpt") {
				continue
			}
			parts = append(parts, fmt.Sprintf("Buffer: %s\n%s", b.Name(), b.Text()))
		}
		return strings.Join(parts, "\n\n"), nil
	}
	return "", fmt.Errorf("unknown input source %q", req.Source)
}

// contextBlock resolves project context. An unresolvable project degrades
// to no context with a notification.
func (e *Engine) contextBlock(ctx context.Context, mode ContextMode) string {
	if mode.Disabled {
		return ""
	}
	paths := mode.Files
	if paths == nil {
		paths = e.deps.Selection.Paths()
	}
	if len(paths) == 0 {
		return ""
	}
	if e.deps.Provider == nil {
		e.Notify("gpt: " + ErrContextUnavailable.Error())
		return ""
	}
	_, resolver := e.templates()
	return resolver.ResolveSelectedFiles(ctx, paths)
}

func (e *Engine) remember(instruction string) {
	if err := e.deps.History.Add(instruction); err != nil {
		log.Warn("engine: history: %v", err)
	}
}
