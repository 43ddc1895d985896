package suppliers

import "errors"

var (
	// ErrInvalidInput reports missing or malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable reports that no backing store is configured.
	ErrStoreUnavailable = errors.New("supplier store unavailable")
	// ErrSearchFailed reports a store read failure while resolving.
	ErrSearchFailed = errors.New("supplier search failed")
	// ErrCreateFailed reports a store write failure while resolving.
	ErrCreateFailed = errors.New("supplier create failed")
	// ErrUpdateFailed reports a store write failure while updating.
	ErrUpdateFailed = errors.New("supplier update failed")
	// ErrNotFound reports that no supplier matched the account and id.
	ErrNotFound = errors.New("supplier not found")
	// ErrConflict reports a rename onto a name already held by another supplier.
	ErrConflict = errors.New("supplier name already in use")
)
