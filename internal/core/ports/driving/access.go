package driving

import "context"

// AccessRegistry exposes cached, synchronous membership queries over the
// allow-list of one identity scope, plus allow/deny mutation.
//
// Before Initialize completes, queries answer from an empty cache: every
// account reads as not allowed, never as an error.
type AccessRegistry interface {
	// Initialize performs the first cache refresh from storage. It must be
	// called once before query results are meaningful.
	Initialize(ctx context.Context) error

	// IsAllowedAccess reports whether the account identifier is currently in
	// the cached allow-list.
	IsAllowedAccess(account string) bool

	// SetAllowedAccess adds or removes the account. Allowing a present
	// account or denying an absent one is a no-op that touches no storage.
	// Denying the last account deletes the stored value entirely. On return
	// the cache already reflects the mutation.
	SetAllowedAccess(ctx context.Context, account string, allowed bool) error

	// Accounts returns a snapshot of the cached allow-list.
	Accounts() []string

	// Subscribe registers a callback fired when the effective allow-list set
	// changes. No-op changes never fire. The cancel function removes the
	// subscription.
	Subscribe(fn func()) (cancel func())

	// Close releases the registry's storage subscription. Idempotent.
	Close()
}
