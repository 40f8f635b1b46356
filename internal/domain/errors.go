package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidAmount        = errors.New("amount must be greater than zero with at most two decimal places")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrIdempotencyConflict  = errors.New("idempotency key already used with a different request")
	ErrIdentityUnresolvable = errors.New("identity could not be resolved")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("caller is blacklisted")
	ErrVersionConflict      = errors.New("optimistic lock conflict")
)
