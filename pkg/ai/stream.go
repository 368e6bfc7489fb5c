// ABOUTME: Channel-based event stream carrying text deltas from a provider goroutine
// ABOUTME: Send never races Finish: only the done channel is ever closed by producers

package ai

import (
	"strings"
	"sync"
	"sync/atomic"
)

// EventType identifies the kind of stream event.
type EventType int

const (
	EventDelta EventType = iota
	EventDone
	EventError
)

// Event is one item of a stream.
type Event struct {
	Type  EventType
	Text  string
	Error error
}

// EventStream delivers events to a single consumer. Producers call Send and
// then Finish or Fail; the consumer ranges over Events and then reads Result
// and Err.
type EventStream struct {
	events chan Event
	out    chan Event
	done   chan struct{}
	once   sync.Once

	result atomic.Pointer[Result]
	err    atomic.Pointer[error]
	text   strings.Builder
	textMu sync.Mutex
}

// NewEventStream creates a stream with the given buffer size.
func NewEventStream(size int) *EventStream {
	s := &EventStream{
		events: make(chan Event, size),
		out:    make(chan Event, size),
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// drain forwards events to the consumer and closes out once done fires and
// the buffer is empty.
func (s *EventStream) drain() {
	defer close(s.out)
	for {
		select {
		case ev := <-s.events:
			s.out <- ev
		case <-s.done:
			for {
				select {
				case ev := <-s.events:
					s.out <- ev
				default:
					return
				}
			}
		}
	}
}

// Events returns the consumer channel; it closes when the stream ends.
func (s *EventStream) Events() <-chan Event {
	return s.out
}

// Send queues an event. It returns false once the stream is finished.
func (s *EventStream) Send(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Delta sends a text delta and records it for the final Result.
func (s *EventStream) Delta(text string) bool {
	if text == "" {
		return true
	}
	s.textMu.Lock()
	s.text.WriteString(text)
	s.textMu.Unlock()
	return s.Send(Event{Type: EventDelta, Text: text})
}

// Finish ends the stream successfully. Text is filled from the deltas
// sent so far when res.Text is empty.
func (s *EventStream) Finish(res Result) {
	s.once.Do(func() {
		if res.Text == "" {
			s.textMu.Lock()
			res.Text = s.text.String()
			s.textMu.Unlock()
		}
		s.Send(Event{Type: EventDone})
		s.result.Store(&res)
		close(s.done)
	})
}

// Fail ends the stream with an error.
func (s *EventStream) Fail(err error) {
	s.once.Do(func() {
		s.Send(Event{Type: EventError, Error: err})
		s.err.Store(&err)
		close(s.done)
	})
}

// Done is closed when the stream ends.
func (s *EventStream) Done() <-chan struct{} {
	return s.done
}

// Result blocks until the stream ends. It is nil when the stream failed.
func (s *EventStream) Result() *Result {
	<-s.done
	return s.result.Load()
}

// Err blocks until the stream ends and returns its failure, if any.
func (s *EventStream) Err() error {
	<-s.done
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}
