package driven

import "context"

// ChangeEvent reports that the stored value under Key changed. Events carry
// no payload; consumers re-read the key to learn the new value. Stores emit
// for changes made through them and, where the backend allows it, for
// out-of-band changes made by other processes.
type ChangeEvent struct {
	Key string
}

// SecretStore is the encrypted key/value backend the allow-list is persisted
// in. Encryption at rest is the store's concern; callers treat values as
// opaque strings. Calls may block for backend-defined latency; no timeout or
// retry is imposed here.
type SecretStore interface {
	// Get reads the value under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Store writes value under key, creating or replacing it.
	Store(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Subscribe registers a callback for change events. The returned cancel
	// function removes the subscription and is idempotent.
	Subscribe(fn func(ChangeEvent)) (cancel func())
}
