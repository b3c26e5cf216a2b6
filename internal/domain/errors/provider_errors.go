package errors

import "fmt"

// ProviderUnavailableError wraps a billing provider failure. It propagates
// to the caller unmodified; checkout and portal calls are user-interactive,
// so retries belong to the user, not the engine.
type ProviderUnavailableError struct {
	Op  string
	Err error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("billing provider unavailable during %s: %v", e.Op, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// NewProviderUnavailableError creates a new ProviderUnavailableError
func NewProviderUnavailableError(op string, err error) *ProviderUnavailableError {
	return &ProviderUnavailableError{Op: op, Err: err}
}
