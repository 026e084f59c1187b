package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrSourceUnavailable indicates a configured source could not be opened or read.
// It is fatal at startup.
type ErrSourceUnavailable struct {
	Source string
	Path   string
	Err    error
}

func (e *ErrSourceUnavailable) Error() string {
	return fmt.Sprintf("source %q unavailable (%s): %v", e.Source, e.Path, e.Err)
}

func (e *ErrSourceUnavailable) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in a remote source fetch.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNoData indicates no snapshot is available to serve.
type ErrNoData struct{}

func (e *ErrNoData) Error() string {
	return "no data loaded"
}
