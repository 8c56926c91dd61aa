package edgeshelf

import "errors"

var (
	// ErrNotFound is returned when an object does not exist in the store
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrOriginFault is returned when the object store fails while serving a fetch
	ErrOriginFault = errors.New("origin fault")
	// ErrCacheFault is returned when the edge cache cannot be read or written
	ErrCacheFault = errors.New("cache fault")
)
