package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrCorruptedStorage indicates a stored allow-list exists but does not
	// deserialize as an array of account identifiers. A read that hits this
	// must surface it to the caller; it is never folded into "absent".
	ErrCorruptedStorage = errors.New("corrupted allow-list storage")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")
)
