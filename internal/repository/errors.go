package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConsumed indicates a single-use record was already consumed.
	ErrConsumed = errors.New("repository: already consumed")
	// ErrExpired indicates the record exists but its validity window has passed.
	ErrExpired = errors.New("repository: expired")
	// ErrDuplicateEmail indicates an account with the same email already exists.
	ErrDuplicateEmail = errors.New("repository: duplicate email")
	// ErrDuplicateCompanyNumber indicates an account with the same company number already exists.
	ErrDuplicateCompanyNumber = errors.New("repository: duplicate company number")
	// ErrStatusConflict indicates a guarded status transition found the row in a different state.
	ErrStatusConflict = errors.New("repository: status conflict")
)
