package apperrors

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")

	// ErrInsufficientData is a terminal "nothing to show yet" state, not a failure.
	ErrInsufficientData     = errors.New("insufficient data")
	ErrNoUsageData          = errors.New("no usage data")
	ErrUnresolvableConsumer = errors.New("unresolvable consumer")
	ErrMalformedSnapshot    = errors.New("malformed snapshot")
	ErrClockSkew            = errors.New("clock skew")
)
