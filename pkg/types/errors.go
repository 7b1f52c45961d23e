package types

import "errors"

// Standard errors returned by pledgewatch packages.
var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrNotFound       = errors.New("entity not found")
	ErrInvalidID      = errors.New("invalid entity ID")
	ErrInvalidKind    = errors.New("invalid entity kind")
	ErrInvalidStatus  = errors.New("invalid donation status")
	ErrInvalidState   = errors.New("invalid pledge state")
	ErrStoreClosed    = errors.New("store is closed")
)
