package sentinel

import "errors"

// Sentinel errors for the dependency boundary. Stores and other dependencies
// return these (usually wrapped) and the service layer maps them to domain
// errors in one place.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
