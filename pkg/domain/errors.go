package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized is returned when credentials do not match
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a user is not allowed to perform an action
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyExists is returned when a stored record collides with an existing one
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrDuplicateUser is returned when registering a username that is taken
	ErrDuplicateUser = errors.New("user already exists")
	// ErrUnknownOperation is returned for a request operation with no handler
	ErrUnknownOperation = errors.New("unknown operation")
)

// Balance and state errors
var (
	// ErrAccountFrozen is returned when debiting a frozen account
	ErrAccountFrozen = errors.New("account is frozen")
	// ErrInsufficientFundsAndOverdraftDenied is returned when a debit exceeds
	// the balance and the shortfall can not be covered by an automatic loan
	ErrInsufficientFundsAndOverdraftDenied = errors.New("insufficient funds and overdraft denied")
	// ErrInvalidTransition is returned when a state change is not permitted
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrNotPubliclyTraded is returned when issuing a share for a private account
	ErrNotPubliclyTraded = errors.New("account is not publicly traded")
)
