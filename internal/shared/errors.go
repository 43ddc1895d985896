package shared

import "errors"

var (
	// ErrAccountMismatch indicates a request addressed an account other than the authenticated one.
	ErrAccountMismatch = errors.New("account does not match authenticated subject")
	// ErrAlreadyClaimed indicates an idempotency key was processed before.
	ErrAlreadyClaimed = errors.New("idempotent request already processed")
)
