package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/accesskeeper/internal/core/domain"
	"github.com/custodia-labs/accesskeeper/internal/core/ports/driven"
	"github.com/custodia-labs/accesskeeper/internal/emitter"
	"github.com/custodia-labs/accesskeeper/internal/logger"
)

// Ensure AccessLedger implements the registry's ledger dependency.
var _ AllowListLedger = (*AccessLedger)(nil)

// AccessLedger translates allow-list reads and writes into secret store
// operations over an ordered list of storage keys: the current key first,
// the legacy key as fallback. Reads prefer the current key and migrate a
// value found under a fallback forward; mutations write every key so the
// stored values stay byte-identical during the migration window.
//
// The migration path is retired by shrinking the scope's key list to one.
type AccessLedger struct {
	store driven.SecretStore
	keys  []string

	// opMu serializes Get, Store, and Delete. Without it, a Get triggered by
	// a change event could observe a dual delete halfway through and
	// "migrate" the not-yet-deleted legacy value back into the current key.
	opMu sync.Mutex

	changes     *emitter.Emitter[struct{}]
	unsubscribe func()
	closeOnce   sync.Once
}

// NewAccessLedger creates a ledger for one identity scope and subscribes to
// the store's change stream. Callers must Close the ledger to release the
// subscription.
func NewAccessLedger(scope domain.IdentityScope, store driven.SecretStore) *AccessLedger {
	l := &AccessLedger{
		store:   store,
		keys:    scope.StorageKeys(),
		changes: emitter.New[struct{}](),
	}
	l.unsubscribe = store.Subscribe(l.onStoreChange)
	return l
}

// Get reads the allow-list. Keys are tried in order; the first present value
// wins. A value found under a fallback key is written forward to the current
// key (same raw bytes) on a best-effort basis: a failed forward write is
// logged and the read still succeeds, and the migration retries naturally on
// the next Get that finds the current key absent.
//
// ok is false when no key holds a value. A value that does not deserialize
// as an array of identifiers fails the read with domain.ErrCorruptedStorage;
// it is never reported as absent.
func (l *AccessLedger) Get(ctx context.Context) (domain.AllowList, bool, error) {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	for i, key := range l.keys {
		raw, ok, err := l.store.Get(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("reading allow-list key %q: %w", key, err)
		}
		if !ok {
			continue
		}

		var list domain.AllowList
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, false, fmt.Errorf("%w: key %q: %v", domain.ErrCorruptedStorage, key, err)
		}

		if i > 0 {
			if err := l.store.Store(ctx, l.keys[0], raw); err != nil {
				logger.Warn("forward migration to %q failed: %v", l.keys[0], err)
			} else {
				logger.Info("migrated allow-list from %q to %q", key, l.keys[0])
			}
		}
		return list, true, nil
	}
	return nil, false, nil
}

// Store serializes the list once and writes the identical value to every key
// concurrently. All writes must succeed; on partial failure the keys may be
// left inconsistent with each other, self-healing on the next successful
// Store or on the next Get that triggers forward migration.
func (l *AccessLedger) Store(ctx context.Context, list domain.AllowList) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encoding allow-list: %w", err)
	}

	l.opMu.Lock()
	defer l.opMu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, key := range l.keys {
		g.Go(func() error {
			if err := l.store.Store(ctx, key, string(raw)); err != nil {
				return fmt.Errorf("writing allow-list key %q: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Delete removes every key concurrently. Absence of the current key is the
// terminal state for "no accounts"; an empty list is never stored.
func (l *AccessLedger) Delete(ctx context.Context) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, key := range l.keys {
		g.Go(func() error {
			if err := l.store.Delete(ctx, key); err != nil {
				return fmt.Errorf("deleting allow-list key %q: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Subscribe registers a callback fired whenever the store reports a change on
// any of the ledger's keys. Events carry no payload; call Get for the value.
func (l *AccessLedger) Subscribe(fn func()) (cancel func()) {
	return l.changes.Subscribe(func(struct{}) { fn() })
}

// Close unsubscribes from the store's change stream and releases the
// ledger's own emitter. Idempotent.
func (l *AccessLedger) Close() {
	l.closeOnce.Do(func() {
		l.unsubscribe()
		l.changes.Close()
	})
}

// onStoreChange re-emits a single scope-level event for a change on any of
// the ledger's keys. Changes to unrelated keys are ignored.
func (l *AccessLedger) onStoreChange(event driven.ChangeEvent) {
	for _, key := range l.keys {
		if event.Key == key {
			l.changes.Emit(struct{}{})
			return
		}
	}
}
