package errors

import "errors"

// Common application-level errors shared across services and repositories.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned for authentication failures (bad token, bad credentials).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks permission for an action.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for invalid input data.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken is returned when a token (e.g. refresh) has expired.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict is returned for state conflicts (e.g. duplicate email or display name).
	ErrConflict = errors.New("resource state conflict")

	// ErrTooManyRequests is returned when a rate limit has been hit.
	ErrTooManyRequests = errors.New("too many requests")
)
