package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/accesskeeper/internal/core/domain"
	"github.com/custodia-labs/accesskeeper/internal/core/ports/driving"
	"github.com/custodia-labs/accesskeeper/internal/emitter"
	"github.com/custodia-labs/accesskeeper/internal/logger"
)

// Ensure AccessRegistry implements the interface.
var _ driving.AccessRegistry = (*AccessRegistry)(nil)

// AllowListLedger is the slice of the ledger the registry depends on.
type AllowListLedger interface {
	Get(ctx context.Context) (domain.AllowList, bool, error)
	Store(ctx context.Context, list domain.AllowList) error
	Delete(ctx context.Context) error
	Subscribe(fn func()) (cancel func())
}

// AccessRegistry presents synchronous membership queries over a cached
// allow-list. The cache has a single writer: every refresh is serialized, and
// mutations refresh the cache inline before returning, so a successful
// SetAllowedAccess is immediately visible to IsAllowedAccess.
//
// A registry-level change event fires only when the effective identifier set
// actually differs from the previous cache. Ledger events that re-read to an
// equal set (forward-migration writes, the dual write echoing on both keys)
// are suppressed.
type AccessRegistry struct {
	ledger AllowListLedger

	mu       sync.RWMutex
	accounts domain.AllowList

	// refreshMu serializes read-compare-swap cycles against the ledger.
	refreshMu sync.Mutex
	// setMu serializes mutations so back-to-back SetAllowedAccess calls
	// compose instead of overwriting each other's snapshot.
	setMu sync.Mutex

	changes     *emitter.Emitter[struct{}]
	unsubscribe func()
	closeOnce   sync.Once
}

// NewAccessRegistry creates a registry over the ledger and subscribes to its
// change events. The registry answers from an empty cache until Initialize
// completes. Callers must Close the registry to release the subscription.
func NewAccessRegistry(ledger AllowListLedger) *AccessRegistry {
	r := &AccessRegistry{
		ledger:      ledger,
		changes:     emitter.New[struct{}](),
		unsubscribe: func() {},
	}
	if ledger != nil {
		r.unsubscribe = ledger.Subscribe(r.onLedgerChange)
	}
	return r
}

// Initialize performs the first cache refresh. Queries before it completes
// treat the allow-list as empty rather than erroring.
func (r *AccessRegistry) Initialize(ctx context.Context) error {
	if r.ledger == nil {
		return domain.ErrNotImplemented
	}
	return r.refresh(ctx)
}

// IsAllowedAccess reports whether the account is in the cached allow-list.
func (r *AccessRegistry) IsAllowedAccess(account string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts.Contains(account)
}

// Accounts returns a snapshot of the cached allow-list.
func (r *AccessRegistry) Accounts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts.Clone()
}

// SetAllowedAccess adds or removes the account. Allowing a present account or
// denying an absent one touches no storage. Denying the last account deletes
// the stored value; an empty list is never written. On return the cache
// reflects the mutation, and at most one change event has fired for it.
func (r *AccessRegistry) SetAllowedAccess(ctx context.Context, account string, allowed bool) error {
	if r.ledger == nil {
		return domain.ErrNotImplemented
	}
	if account == "" {
		return domain.ErrInvalidInput
	}

	r.setMu.Lock()
	defer r.setMu.Unlock()

	r.mu.RLock()
	current := r.accounts.Clone()
	r.mu.RUnlock()

	if current.Contains(account) == allowed {
		return nil
	}

	var err error
	if allowed {
		err = r.ledger.Store(ctx, current.WithAccount(account))
	} else if updated := current.WithoutAccount(account); len(updated) == 0 {
		err = r.ledger.Delete(ctx)
	} else {
		err = r.ledger.Store(ctx, updated)
	}
	if err != nil {
		return fmt.Errorf("persisting allow-list: %w", err)
	}

	return r.refresh(ctx)
}

// Subscribe registers a callback fired when the effective allow-list set
// changes. The cancel function removes the subscription.
func (r *AccessRegistry) Subscribe(fn func()) (cancel func()) {
	return r.changes.Subscribe(func(struct{}) { fn() })
}

// Close unsubscribes from the ledger and releases the registry's emitter.
// Idempotent.
func (r *AccessRegistry) Close() {
	r.closeOnce.Do(func() {
		r.unsubscribe()
		r.changes.Close()
	})
}

// refresh re-reads the allow-list, swaps the cache, and notifies subscribers
// when the identifier set differs from the previous cache. The whole
// read-compare-swap-notify cycle runs under refreshMu, so each set transition
// is observed and announced exactly once, and a mutation's event has been
// delivered by the time its inline refresh returns. Change callbacks
// therefore run with the refresh lock held and must not call Initialize or
// SetAllowedAccess synchronously.
func (r *AccessRegistry) refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	list, ok, err := r.ledger.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		list = nil
	}

	r.mu.Lock()
	changed := !r.accounts.EqualSet(list)
	r.accounts = list.Clone()
	r.mu.Unlock()

	if changed {
		r.changes.Emit(struct{}{})
	}
	return nil
}

// onLedgerChange reacts to a ledger event. A failed re-read keeps the last
// good cache; an allow-list read failure must never degrade into "account
// not allowed".
func (r *AccessRegistry) onLedgerChange() {
	if err := r.refresh(context.Background()); err != nil {
		logger.Warn("allow-list refresh after storage change failed: %v", err)
	}
}
