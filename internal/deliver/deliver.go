// ABOUTME: Delivery sinks applying streamed chunks to text targets in arrival order
// ABOUTME: AppendSink writes at buffer end; MarkerSink writes at a live, advancing marker

package deliver

import (
	"strings"
	"sync"

	"github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/internal/textbuf"
)

// Sink applies output chunks to a target until stopped.
type Sink interface {
	Deliver(chunk string)
	// Stop ends delivery; later chunks are dropped. It reports whether
	// this call was the one that stopped the sink.
	Stop() bool
	Stopped() bool
	// Delivered returns everything applied so far.
	Delivered() string
}

// gate is the shared stop/record bookkeeping of both sinks.
type gate struct {
	mu        sync.Mutex
	stopped   bool
	delivered strings.Builder
}

func (g *gate) Stop() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return false
	}
	g.stopped = true
	return true
}

func (g *gate) Stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

func (g *gate) Delivered() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.delivered.String()
}

// AppendSink appends chunks to the end of a surface.
type AppendSink struct {
	gate
	target textbuf.Surface
}

// NewAppendSink returns a sink appending to target.
func NewAppendSink(target textbuf.Surface) *AppendSink {
	return &AppendSink{target: target}
}

// Deliver appends chunk unless the sink is stopped.
func (s *AppendSink) Deliver(chunk string) {
	if chunk == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.target.Append(chunk)
	s.delivered.WriteString(chunk)
}

// MarkerSink inserts chunks at a live cursor marker. A second, fixed marker
// remembers where delivery started so the span can be rolled back.
type MarkerSink struct {
	gate
	target textbuf.Surface
	start  *textbuf.Marker
	cursor *textbuf.Marker
}

// NewMarkerSink creates a sink inserting at pos in target.
func NewMarkerSink(target textbuf.Surface, pos int) (*MarkerSink, error) {
	start, err := target.CreateMarker(pos, false)
	if err != nil {
		return nil, err
	}
	cursor, err := target.CreateMarker(pos, true)
	if err != nil {
		start.Detach()
		return nil, err
	}
	return &MarkerSink{target: target, start: start, cursor: cursor}, nil
}

// Deliver inserts chunk at the cursor, which then sits after it. A failed
// insertion (killed buffer) stops the sink.
func (s *MarkerSink) Deliver(chunk string) {
	if chunk == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if err := s.target.InsertAt(s.cursor, chunk); err != nil {
		log.Warn("deliver: %s: %v", s.target.Name(), err)
		s.stopped = true
		return
	}
	s.delivered.WriteString(chunk)
}

// Start returns the marker fixed at the delivery origin.
func (s *MarkerSink) Start() *textbuf.Marker { return s.start }

// Cursor returns the advancing insertion marker.
func (s *MarkerSink) Cursor() *textbuf.Marker { return s.cursor }

// Span returns the current [start, end) of delivered text.
func (s *MarkerSink) Span() (int, int) {
	return s.start.Pos(), s.cursor.Pos()
}

// Rollback stops the sink and deletes everything between the markers.
func (s *MarkerSink) Rollback() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	start, end := s.start.Pos(), s.cursor.Pos()
	if end <= start {
		return nil
	}
	return s.target.Delete(start, end)
}

// Release stops the sink and detaches both markers.
func (s *MarkerSink) Release() {
	s.Stop()
	s.start.Detach()
	s.cursor.Detach()
}
