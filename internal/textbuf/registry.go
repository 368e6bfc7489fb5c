// ABOUTME: Registry of named buffers shared by the engine and the RPC adapter
// ABOUTME: Generates unique names, tracks visibility, and announces killed buffers

package textbuf

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mauromedda/gpt-go/internal/eventbus"
)

// Registry owns every buffer known to the process.
type Registry struct {
	mu      sync.Mutex
	buffers map[string]*Buffer
	changes *eventbus.Bus[Change]
	killed  *eventbus.Bus[string]
	renamed *eventbus.Bus[Rename]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		buffers: make(map[string]*Buffer),
		changes: eventbus.New[Change](),
		killed:  eventbus.New[string](),
		renamed: eventbus.New[Rename](),
	}
}

// Get returns the buffer named name.
func (r *Registry) Get(name string) (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buffers[name]
	return b, ok
}

// GetOrCreate returns the existing buffer or creates an empty one.
func (r *Registry) GetOrCreate(name string) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buffers[name]; ok {
		return b
	}
	b := newBuffer(name, "", r.changes)
	r.buffers[name] = b
	return b
}

// Open creates the buffer or resets the content of an existing one.
func (r *Registry) Open(name, text string) *Buffer {
	r.mu.Lock()
	b, ok := r.buffers[name]
	if !ok {
		b = newBuffer(name, text, r.changes)
		r.buffers[name] = b
		r.mu.Unlock()
		return b
	}
	r.mu.Unlock()
	b.SetText(text)
	return b
}

// Unique returns base, or base<N> for the smallest N ≥ 2 not in use.
func (r *Registry) Unique(base string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.buffers[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s<%d>", base, n)
		if _, taken := r.buffers[name]; !taken {
			return name
		}
	}
}

// ErrBufferExists is returned when renaming onto a taken name.
var ErrBufferExists = errors.New("buffer already exists")

// ErrNoBuffer is returned for unknown buffer names.
var ErrNoBuffer = errors.New("no such buffer")

// Rename moves a buffer to a new name. Markers and overlays are kept.
func (r *Registry) Rename(from, to string) error {
	if from == to {
		return nil
	}
	r.mu.Lock()
	b, ok := r.buffers[from]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("rename %s: %w", from, ErrNoBuffer)
	}
	if _, taken := r.buffers[to]; taken {
		r.mu.Unlock()
		return fmt.Errorf("rename %s to %s: %w", from, to, ErrBufferExists)
	}
	delete(r.buffers, from)
	r.buffers[to] = b
	r.mu.Unlock()

	b.rename(to)
	r.renamed.Publish(Rename{From: from, To: to})
	return nil
}

// Rename describes a buffer name change.
type Rename struct {
	From string
	To   string
}

// OnRename subscribes to buffer renames.
func (r *Registry) OnRename(h eventbus.Handler[Rename]) func() {
	return r.renamed.Subscribe(h)
}

// Kill removes a buffer and notifies kill listeners.
func (r *Registry) Kill(name string) bool {
	r.mu.Lock()
	_, ok := r.buffers[name]
	delete(r.buffers, name)
	r.mu.Unlock()
	if ok {
		r.killed.Publish(name)
	}
	return ok
}

// Names returns all buffer names sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.buffers))
	for n := range r.buffers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Visible returns the buffers currently shown by the editor, sorted by name.
func (r *Registry) Visible() []*Buffer {
	var out []*Buffer
	for _, n := range r.Names() {
		if b, ok := r.Get(n); ok && b.Visible() {
			out = append(out, b)
		}
	}
	return out
}

// OnChange subscribes to edits in every buffer of the registry.
func (r *Registry) OnChange(h eventbus.Handler[Change]) func() {
	return r.changes.Subscribe(h)
}

// OnKill subscribes to buffer removal.
func (r *Registry) OnKill(h eventbus.Handler[string]) func() {
	return r.killed.Subscribe(h)
}
