// Package emitter provides the change-notification primitive used by the
// secret store adapters and the core services: a subscriber registry that
// multicasts a value to every registered callback.
package emitter

import (
	"sync"

	"github.com/google/uuid"
)

// Emitter multicasts values of type T to subscribed callbacks. The zero value
// is not usable; create one with New.
type Emitter[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]func(T)
	closed      bool
}

// New creates an empty emitter.
func New[T any]() *Emitter[T] {
	return &Emitter[T]{
		subscribers: make(map[string]func(T)),
	}
}

// Subscribe registers fn and returns a cancel function that removes the
// subscription. Cancel is idempotent. A nil fn yields a no-op subscription.
func (e *Emitter[T]) Subscribe(fn func(T)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return func() {}
	}

	id := uuid.NewString()
	e.subscribers[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subscribers, id)
	}
}

// Emit delivers value to every current subscriber. Callbacks run on the
// caller's goroutine, in unspecified order.
func (e *Emitter[T]) Emit(value T) {
	e.mu.RLock()
	callbacks := make([]func(T), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		callbacks = append(callbacks, fn)
	}
	e.mu.RUnlock()

	for _, fn := range callbacks {
		fn(value)
	}
}

// Close drops all subscribers and rejects new ones. Safe to call more than
// once.
func (e *Emitter[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.subscribers = make(map[string]func(T))
}
