package models

import "errors"

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("trade not found")
	ErrVenueUnavailable = errors.New("venue unavailable")
	ErrExecutionFailure = errors.New("execution failure")
)
