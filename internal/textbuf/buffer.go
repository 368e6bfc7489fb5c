// ABOUTME: In-memory text surface with live markers that follow concurrent edits
// ABOUTME: Rune-addressed buffer publishing insert/delete changes through the event bus

package textbuf

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mauromedda/gpt-go/internal/eventbus"
)

var (
	// ErrOutOfRange is returned for positions outside [0, Len].
	ErrOutOfRange = errors.New("position out of range")
	// ErrForeignMarker is returned when a marker is used with a buffer that did not create it.
	ErrForeignMarker = errors.New("marker belongs to another buffer")
	// ErrDetached is returned when a detached marker is used for insertion.
	ErrDetached = errors.New("marker is detached")
)

// Surface is the set of text operations the orchestration core needs.
// Positions are 0-based rune offsets.
type Surface interface {
	Name() string
	Append(text string)
	InsertAt(m *Marker, text string) error
	ReadRange(start, end int) (string, error)
	CreateMarker(pos int, advance bool) (*Marker, error)
	Delete(start, end int) error
}

// ChangeKind distinguishes insertions from deletions.
type ChangeKind int

const (
	ChangeInsert ChangeKind = iota
	ChangeDelete
)

func (k ChangeKind) String() string {
	if k == ChangeDelete {
		return "delete"
	}
	return "insert"
}

// Change describes one edit. For deletions Text holds the removed text.
type Change struct {
	Buffer string
	Kind   ChangeKind
	Pos    int
	Text   string
}

// End returns the position just past the affected range.
func (c Change) End() int {
	return c.Pos + len([]rune(c.Text))
}

// Buffer is a named, concurrency-safe text container.
type Buffer struct {
	mu       sync.Mutex
	pubMu    sync.Mutex // serialises mutate+publish so listeners see edits in order
	name     string
	text     []rune
	markers  []*Marker
	overlays []*Overlay
	visible  bool
	changes  *eventbus.Bus[Change]
}

var _ Surface = (*Buffer)(nil)

// New creates a standalone buffer with its own change bus.
func New(name, text string) *Buffer {
	return newBuffer(name, text, eventbus.New[Change]())
}

func newBuffer(name, text string, bus *eventbus.Bus[Change]) *Buffer {
	return &Buffer{name: name, text: []rune(text), changes: bus}
}

// Name returns the buffer name.
func (b *Buffer) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

func (b *Buffer) rename(name string) {
	b.pubMu.Lock()
	b.mu.Lock()
	b.name = name
	b.mu.Unlock()
	b.pubMu.Unlock()
}

// Text returns the full buffer content.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

// Len returns the buffer length in runes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.text)
}

// Visible reports whether the editor shows this buffer in a window.
func (b *Buffer) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible
}

// SetVisible records the buffer's window visibility.
func (b *Buffer) SetVisible(v bool) {
	b.mu.Lock()
	b.visible = v
	b.mu.Unlock()
}

// Subscribe registers a change listener. Listeners must not edit the buffer.
func (b *Buffer) Subscribe(h eventbus.Handler[Change]) func() {
	return b.changes.Subscribe(func(c Change) {
		if c.Buffer == b.Name() {
			h(c)
		}
	})
}

// Append inserts text at the end of the buffer.
func (b *Buffer) Append(text string) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	pos := len(b.text)
	b.insertLocked(pos, []rune(text))
	b.mu.Unlock()

	b.publish(Change{Kind: ChangeInsert, Pos: pos, Text: text})
}

// Insert inserts text at pos.
func (b *Buffer) Insert(pos int, text string) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if pos < 0 || pos > len(b.text) {
		b.mu.Unlock()
		return fmt.Errorf("insert at %d in %s (len %d): %w", pos, b.name, len(b.text), ErrOutOfRange)
	}
	b.insertLocked(pos, []rune(text))
	b.mu.Unlock()

	b.publish(Change{Kind: ChangeInsert, Pos: pos, Text: text})
	return nil
}

// InsertAt inserts text at the marker's current position.
func (b *Buffer) InsertAt(m *Marker, text string) error {
	if m.buf != b {
		return ErrForeignMarker
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if m.detached {
		b.mu.Unlock()
		return ErrDetached
	}
	pos := m.pos
	b.insertLocked(pos, []rune(text))
	b.mu.Unlock()

	b.publish(Change{Kind: ChangeInsert, Pos: pos, Text: text})
	return nil
}

// Delete removes the runes in [start, end).
func (b *Buffer) Delete(start, end int) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if err := b.checkRangeLocked(start, end); err != nil {
		b.mu.Unlock()
		return err
	}
	removed := b.deleteLocked(start, end)
	b.mu.Unlock()

	if removed != "" {
		b.publish(Change{Kind: ChangeDelete, Pos: start, Text: removed})
	}
	return nil
}

// Replace substitutes [start, end) with text. Used for edits reported by the editor.
func (b *Buffer) Replace(start, end int, text string) error {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if err := b.checkRangeLocked(start, end); err != nil {
		b.mu.Unlock()
		return err
	}
	removed := b.deleteLocked(start, end)
	b.insertLocked(start, []rune(text))
	b.mu.Unlock()

	if removed != "" {
		b.publish(Change{Kind: ChangeDelete, Pos: start, Text: removed})
	}
	if text != "" {
		b.publish(Change{Kind: ChangeInsert, Pos: start, Text: text})
	}
	return nil
}

// SetText replaces the whole content, collapsing all markers to 0.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	end := len(b.text)
	b.mu.Unlock()
	_ = b.Replace(0, end, text)
}

// ReadRange returns the text in [start, end).
func (b *Buffer) ReadRange(start, end int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkRangeLocked(start, end); err != nil {
		return "", err
	}
	return string(b.text[start:end]), nil
}

// CreateMarker returns a live position at pos. An advancing marker moves
// past text inserted exactly at its position; a non-advancing one stays before it.
func (b *Buffer) CreateMarker(pos int, advance bool) (*Marker, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos < 0 || pos > len(b.text) {
		return nil, fmt.Errorf("marker at %d in %s (len %d): %w", pos, b.name, len(b.text), ErrOutOfRange)
	}
	m := &Marker{buf: b, pos: pos, advance: advance}
	b.markers = append(b.markers, m)
	return m, nil
}

func (b *Buffer) checkRangeLocked(start, end int) error {
	if start < 0 || end > len(b.text) || start > end {
		return fmt.Errorf("range [%d,%d) in %s (len %d): %w", start, end, b.name, len(b.text), ErrOutOfRange)
	}
	return nil
}

func (b *Buffer) insertLocked(pos int, rs []rune) {
	if len(rs) == 0 {
		return
	}
	b.text = append(b.text[:pos], append(rs, b.text[pos:]...)...)
	n := len(rs)
	for _, m := range b.markers {
		if m.pos > pos || (m.pos == pos && m.advance) {
			m.pos += n
		}
	}
}

func (b *Buffer) deleteLocked(start, end int) string {
	if start == end {
		return ""
	}
	removed := string(b.text[start:end])
	b.text = append(b.text[:start], b.text[end:]...)
	n := end - start
	for _, m := range b.markers {
		switch {
		case m.pos >= end:
			m.pos -= n
		case m.pos > start:
			m.pos = start
		}
	}
	return removed
}

func (b *Buffer) publish(c Change) {
	c.Buffer = b.Name()
	b.changes.Publish(c)
}

// Marker is a position that follows edits made before it.
type Marker struct {
	buf      *Buffer
	pos      int
	advance  bool
	detached bool
}

// Pos returns the marker's current position.
func (m *Marker) Pos() int {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()
	return m.pos
}

// Buffer returns the buffer the marker lives in.
func (m *Marker) Buffer() *Buffer {
	return m.buf
}

// Detach stops the marker from tracking edits.
func (m *Marker) Detach() {
	b := m.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if m.detached {
		return
	}
	m.detached = true
	for i, other := range b.markers {
		if other == m {
			b.markers = append(b.markers[:i], b.markers[i+1:]...)
			break
		}
	}
}
