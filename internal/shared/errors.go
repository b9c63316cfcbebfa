package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor lacks a capability or a warehouse grant.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState indicates a lifecycle transition that is not allowed.
	ErrInvalidState = errors.New("invalid state")
	// ErrTxConflict indicates a serialization failure. The transaction rolled
	// back cleanly and the operation is safe to retry.
	ErrTxConflict = errors.New("transaction conflict, retry")
)
