package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized = errors.New("browser session is not initialized")
	ErrNotFound       = errors.New("handle not found")
	ErrStaleHandle    = errors.New("handle is stale")
	ErrBudgetExceeded = errors.New("call budget exhausted")
)

// ParseError is returned when a raw function call cannot be turned into a ParsedCall.
type ParseError struct {
	Call string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q: %v", e.Call, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
