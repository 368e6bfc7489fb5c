// ABOUTME: Shared session enums decoupled from the engine package
// ABOUTME: Mode and Status are used by prompt, session, engine, and rpc without import cycles

package types

import (
	"encoding/json"
	"fmt"
)

// Mode identifies which flow a session was started by.
type Mode int

const (
	ModeChat Mode = iota
	ModeFollowUp
	ModeRegionTransform
	ModePointCompletion
	ModeTitleGeneration
)

var modeNames = [...]string{
	ModeChat:            "chat",
	ModeFollowUp:        "follow-up",
	ModeRegionTransform: "region-transform",
	ModePointCompletion: "point-completion",
	ModeTitleGeneration: "title-generation",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode maps a mode name back to its value.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// MarshalJSON encodes the mode by name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// Status is the lifecycle state of a session.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCanceled
)

var statusNames = [...]string{
	StatusPending:   "pending",
	StatusRunning:   "running",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
	StatusCanceled:  "canceled",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}
