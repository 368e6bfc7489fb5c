// ABOUTME: RPC request/response types for editor integrations
// ABOUTME: JSON-serializable envelopes for requests, responses, and server events

package rpc

import "encoding/json"

// Request represents an RPC request from an external client.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response represents an RPC response to an external client.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error represents an RPC error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Notification is an unsolicited server event.
type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Methods
const (
	MethodOpenBuffer       = "open_buffer"
	MethodEditBuffer       = "edit_buffer"
	MethodGetBuffer        = "get_buffer"
	MethodKillBuffer       = "kill_buffer"
	MethodChat             = "chat"
	MethodFollowUp         = "follow_up"
	MethodTransformRegion  = "transform_region"
	MethodCompletePoint    = "complete_point"
	MethodGateKey          = "gate_key"
	MethodGenerateTitle    = "generate_title"
	MethodSetContext       = "set_context"
	MethodClearContext     = "clear_context"
	MethodGetContext       = "get_context"
	MethodListProjectFiles = "list_project_files"
	MethodListSessions     = "list_sessions"
	MethodGetSession       = "get_session"
	MethodCodeBlocks       = "code_blocks"
	MethodHistory          = "history"
	MethodGetStatus        = "get_status"
	MethodReloadConfig     = "reload_config"
)

// Events
const (
	EventInsert        = "insert"
	EventDelete        = "delete"
	EventOverlay       = "overlay"
	EventProgress      = "progress"
	EventNotify        = "notify"
	EventSessionStatus = "session_status"
	EventTitle         = "title"
	EventConfig        = "config_reloaded"
)
