// ABOUTME: Standard JSON-RPC error codes and custom application errors
// ABOUTME: Maps engine sentinel errors onto stable codes for editor clients

package rpc

import (
	"errors"

	"github.com/mauromedda/gpt-go/internal/engine"
	"github.com/mauromedda/gpt-go/internal/runner"
	"github.com/mauromedda/gpt-go/internal/session"
	"github.com/mauromedda/gpt-go/internal/textbuf"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidReq     = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// Custom application error codes.
const (
	ErrCodeBusy               = -32001
	ErrCodeNoSession          = -32002
	ErrCodeContextUnavailable = -32003
	ErrCodeGatePending        = -32004
	ErrCodeNoBuffer           = -32005
	ErrCodeNoGate             = -32006
	ErrCodeBackendFailed      = -32007
)

// NewParseError returns an Error for malformed JSON input.
func NewParseError(msg string) *Error {
	return &Error{Code: ErrCodeParse, Message: msg}
}

// NewInvalidRequestError returns an Error for a request without a method.
func NewInvalidRequestError(msg string) *Error {
	return &Error{Code: ErrCodeInvalidReq, Message: msg}
}

// NewMethodNotFoundError returns an Error for an unknown RPC method.
func NewMethodNotFoundError(method string) *Error {
	return &Error{Code: ErrCodeMethodNotFound, Message: "method not found: " + method}
}

// NewInvalidParamsError returns an Error for invalid method parameters.
func NewInvalidParamsError(msg string) *Error {
	return &Error{Code: ErrCodeInvalidParams, Message: msg}
}

// NewInternalError returns an Error for unexpected server-side failures.
func NewInternalError(msg string) *Error {
	return &Error{Code: ErrCodeInternal, Message: msg}
}

// BackendFailure is the data attached to ErrCodeBackendFailed.
type BackendFailure struct {
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	Stderr     string `json:"stderr,omitempty"`
	PromptFile string `json:"prompt_file,omitempty"`
}

// errorFor maps an engine error to its RPC error.
func errorFor(err error) *Error {
	var exitErr *runner.ExitError
	switch {
	case errors.As(err, &exitErr):
		return &Error{Code: ErrCodeBackendFailed, Message: err.Error(), Data: BackendFailure{
			Status:     exitErr.Status,
			ExitCode:   exitErr.Code,
			Stderr:     exitErr.Stderr,
			PromptFile: exitErr.PromptFile,
		}}
	case errors.Is(err, engine.ErrEmptyInstruction), errors.Is(err, textbuf.ErrOutOfRange):
		return NewInvalidParamsError(err.Error())
	case errors.Is(err, engine.ErrBusy):
		return &Error{Code: ErrCodeBusy, Message: err.Error()}
	case errors.Is(err, engine.ErrGatePending):
		return &Error{Code: ErrCodeGatePending, Message: err.Error()}
	case errors.Is(err, engine.ErrNoGate):
		return &Error{Code: ErrCodeNoGate, Message: err.Error()}
	case errors.Is(err, engine.ErrNoBuffer), errors.Is(err, textbuf.ErrBufferExists):
		return &Error{Code: ErrCodeNoBuffer, Message: err.Error()}
	case errors.Is(err, engine.ErrContextUnavailable):
		return &Error{Code: ErrCodeContextUnavailable, Message: err.Error()}
	case errors.Is(err, session.ErrNotFound), errors.Is(err, engine.ErrNoConversation):
		return &Error{Code: ErrCodeNoSession, Message: err.Error()}
	}
	return NewInternalError(err.Error())
}
