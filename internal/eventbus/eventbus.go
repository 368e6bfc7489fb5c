// ABOUTME: Typed event bus used for buffer changes and engine notifications
// ABOUTME: Delivers synchronously in subscription order so listeners observe edits in sequence

package eventbus

import (
	"slices"
	"sync"
)

// Handler is a callback function for events.
type Handler[T any] func(T)

type entry[T any] struct {
	id int
	h  Handler[T]
}

// Bus is a typed event bus that delivers events to registered handlers.
type Bus[T any] struct {
	mu       sync.RWMutex
	handlers []entry[T]
	nextID   int
}

// New creates a new event bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers a handler and returns an unsubscribe function.
// The returned function is safe to call more than once.
func (b *Bus[T]) Subscribe(handler Handler[T]) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, entry[T]{id: id, h: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.handlers = slices.DeleteFunc(b.handlers, func(e entry[T]) bool { return e.id == id })
		b.mu.Unlock()
	}
}

// Publish sends an event to all registered handlers in subscription order.
// Handlers run on the caller's goroutine; the lock is not held during callbacks.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	snapshot := make([]Handler[T], len(b.handlers))
	for i, e := range b.handlers {
		snapshot[i] = e.h
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		h(event)
	}
}

// Count returns the number of registered handlers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
