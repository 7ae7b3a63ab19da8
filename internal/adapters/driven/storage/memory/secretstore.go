// Package memory provides an in-memory implementation of the secret store
// port, used in tests and as the reference backend semantics.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/accesskeeper/internal/core/ports/driven"
	"github.com/custodia-labs/accesskeeper/internal/emitter"
)

// Ensure SecretStore implements the interface.
var _ driven.SecretStore = (*SecretStore)(nil)

// SecretStore is an in-memory implementation of driven.SecretStore.
// Every successful Store emits a change event for its key, including
// byte-identical rewrites; real backends may echo such writes too, and
// suppressing the resulting no-op notifications is the registry's job, not
// the store's. Deletes emit only when the key existed.
//
// Change events are dispatched asynchronously, matching real secret backends:
// subscribers never run inside the mutating call.
type SecretStore struct {
	mu      sync.RWMutex
	values  map[string]string
	changes *emitter.Emitter[driven.ChangeEvent]
}

// NewSecretStore creates an empty in-memory secret store.
func NewSecretStore() *SecretStore {
	return &SecretStore{
		values:  make(map[string]string),
		changes: emitter.New[driven.ChangeEvent](),
	}
}

// Get reads the value under key.
func (s *SecretStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

// Store writes value under key and emits a change event.
func (s *SecretStore) Store(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()

	go s.changes.Emit(driven.ChangeEvent{Key: key})
	return nil
}

// Delete removes key, emitting a change event if it existed.
func (s *SecretStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	_, existed := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	if existed {
		go s.changes.Emit(driven.ChangeEvent{Key: key})
	}
	return nil
}

// Subscribe registers a callback for change events.
func (s *SecretStore) Subscribe(fn func(driven.ChangeEvent)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

// Close releases the store's emitter. Idempotent.
func (s *SecretStore) Close() {
	s.changes.Close()
}
