// ABOUTME: Forwards buffer edits and engine events to the RPC client as server events
// ABOUTME: Session snapshots, progress ticks, notices, overlays, and titles become JSONL events

package rpc

import (
	"github.com/mauromedda/gpt-go/internal/engine"
	"github.com/mauromedda/gpt-go/internal/textbuf"
)

// Forward subscribes s to e's buffer and engine events. The returned
// function detaches the subscriptions.
func Forward(s *Server, e *engine.Engine) func() {
	unsubChanges := e.Registry().OnChange(func(c textbuf.Change) {
		event := EventInsert
		if c.Kind == textbuf.ChangeDelete {
			event = EventDelete
		}
		s.Notify(event, ChangeEvent{Buffer: c.Buffer, Pos: c.Pos, Text: c.Text})
	})
	unsubEvents := e.OnEvent(func(ev engine.Event) {
		switch ev.Kind {
		case engine.EventProgress:
			s.Notify(EventProgress, ProgressEvent{Session: ev.Session, Buffer: ev.Buffer, Message: ev.Message, Elapsed: ev.Elapsed})
		case engine.EventNotify:
			s.Notify(EventNotify, NotifyEvent{Session: ev.Session, Buffer: ev.Buffer, Message: ev.Message})
		case engine.EventSessionStatus:
			if sess, ok := e.Store().Get(ev.Session); ok {
				s.Notify(EventSessionStatus, sess)
			}
		case engine.EventOverlay:
			s.Notify(EventOverlay, OverlayEvent{Buffer: ev.Buffer, Overlays: ev.Overlays})
		case engine.EventTitle:
			s.Notify(EventTitle, TitleEvent{Session: ev.Session, Title: ev.Title, Buffer: ev.Buffer, Renamed: ev.Renamed})
		}
	})
	return func() {
		unsubChanges()
		unsubEvents()
	}
}
