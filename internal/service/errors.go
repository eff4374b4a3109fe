package service

import "errors"

// Operation errors, wrapped with context via fmt.Errorf("%w: ...") so handlers
// can map them to HTTP statuses with errors.Is. Every failure aborts the whole
// operation; nothing is committed on any of these.
var (
	// ErrUnauthorized: caller unverified or holding the wrong role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict: caller verified and correctly roled but not the specific
	// entity entitled to act (wrong initiator, wrong sender/receiver/provider).
	ErrConflict = errors.New("conflict")
	// ErrInvalidState: the record's current status forbids the operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidReference: a referenced identifier resolves to no record.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrValidation: a submitted value fails a domain rule.
	ErrValidation = errors.New("validation failed")
)
