// ABOUTME: Request/response schema types for the RPC methods
// ABOUTME: JSON-serializable params and results for buffers, flows, context, and sessions

package rpc

import (
	"github.com/mauromedda/gpt-go/internal/engine"
	"github.com/mauromedda/gpt-go/internal/markdown"
	"github.com/mauromedda/gpt-go/internal/projectctx"
	"github.com/mauromedda/gpt-go/internal/session"
	"github.com/mauromedda/gpt-go/internal/textbuf"
)

// BufferParams names a buffer.
type BufferParams struct {
	Name string `json:"name"`
}

// OpenBufferParams creates or resets a buffer.
type OpenBufferParams struct {
	Name    string `json:"name"`
	Text    string `json:"text"`
	Visible *bool  `json:"visible,omitempty"`
}

// EditBufferParams replaces [Start, End) with Text. Positions are rune offsets.
type EditBufferParams struct {
	Name    string `json:"name"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"text"`
	Visible *bool  `json:"visible,omitempty"`
}

// BufferResult describes a buffer.
type BufferResult struct {
	Name     string         `json:"name"`
	Length   int            `json:"length"`
	Visible  bool           `json:"visible"`
	Text     string         `json:"text,omitempty"`
	Overlays []textbuf.Span `json:"overlays"`
}

// KillResult is the response payload for kill_buffer.
type KillResult struct {
	Killed bool `json:"killed"`
}

// contextParams selects project context for a flow.
type contextParams struct {
	Files     []string `json:"files,omitempty"`
	NoContext bool     `json:"no_context,omitempty"`
}

func (c contextParams) contextMode() engine.ContextMode {
	return engine.ContextMode{Files: c.Files, Disabled: c.NoContext}
}

// ChatParams starts a chat.
type ChatParams struct {
	contextParams
	Instruction string `json:"instruction"`
	Source      string `json:"source,omitempty"`
	Buffer      string `json:"buffer,omitempty"`
	Start       int    `json:"start,omitempty"`
	End         int    `json:"end,omitempty"`
	Lang        string `json:"lang,omitempty"`
}

// FollowUpParams continues a conversation buffer.
type FollowUpParams struct {
	Buffer      string `json:"buffer"`
	Instruction string `json:"instruction"`
}

// TransformParams rewrites a region.
type TransformParams struct {
	contextParams
	Buffer      string `json:"buffer"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Instruction string `json:"instruction"`
}

// CompleteParams continues text at a point.
type CompleteParams struct {
	contextParams
	Buffer      string `json:"buffer"`
	Pos         int    `json:"pos"`
	Instruction string `json:"instruction,omitempty"`
}

// RunResult identifies a started session.
type RunResult struct {
	Session   int    `json:"session"`
	Buffer    string `json:"buffer"`
	AcceptKey string `json:"accept_key,omitempty"`
}

// GateKeyParams delivers the key that decides a pending completion.
type GateKeyParams struct {
	Buffer string `json:"buffer"`
	Key    string `json:"key"`
}

// GateKeyResult reports the decision.
type GateKeyResult struct {
	Decision string `json:"decision"`
}

// SetContextParams replaces the context selection.
type SetContextParams struct {
	Files []string `json:"files"`
}

// GetContextParams optionally resolves the context block.
type GetContextParams struct {
	Resolve bool `json:"resolve,omitempty"`
}

// ContextResult is the response payload of the context methods.
type ContextResult struct {
	Files   []string             `json:"files"`
	Text    string               `json:"text,omitempty"`
	Skipped []projectctx.Skipped `json:"skipped,omitempty"`
}

// ListSessionsParams optionally filters by buffer.
type ListSessionsParams struct {
	Buffer string `json:"buffer,omitempty"`
}

// SessionListResult is the response payload for the list_sessions method.
type SessionListResult struct {
	Sessions []session.Session `json:"sessions"`
	Counter  int               `json:"counter"`
}

// GetSessionParams names a session.
type GetSessionParams struct {
	ID int `json:"id"`
}

// CodeBlocksResult is the response payload for code_blocks.
type CodeBlocksResult struct {
	Blocks []markdown.CodeBlock `json:"blocks"`
}

// HistoryParams filters history candidates.
type HistoryParams struct {
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// HistoryResult lists history candidates, best first.
type HistoryResult struct {
	Entries []string `json:"entries"`
}

// OKResult acknowledges a request.
type OKResult struct {
	OK bool `json:"ok"`
}

// ChangeEvent is the payload of insert and delete events.
type ChangeEvent struct {
	Buffer string `json:"buffer"`
	Pos    int    `json:"pos"`
	Text   string `json:"text"`
}

// OverlayEvent lists the overlays of a buffer.
type OverlayEvent struct {
	Buffer   string         `json:"buffer"`
	Overlays []textbuf.Span `json:"overlays"`
}

// ProgressEvent is a liveness tick of a running session.
type ProgressEvent struct {
	Session int     `json:"session"`
	Buffer  string  `json:"buffer"`
	Message string  `json:"message"`
	Elapsed float64 `json:"elapsed"`
}

// NotifyEvent is a user notification.
type NotifyEvent struct {
	Session int    `json:"session,omitempty"`
	Buffer  string `json:"buffer,omitempty"`
	Message string `json:"message"`
}

// TitleEvent reports a generated title and the buffer's new name.
type TitleEvent struct {
	Session int    `json:"session"`
	Title   string `json:"title"`
	Buffer  string `json:"buffer"`
	Renamed string `json:"renamed,omitempty"`
}
