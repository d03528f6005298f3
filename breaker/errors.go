package breaker

import "errors"

// Sentinel errors for breaker operations.
var (
	// ErrCircuitOpen is returned when the circuit refuses a call.
	ErrCircuitOpen = errors.New("breaker: circuit is open")

	// ErrAlreadyConfigured is returned when a registry name is reused.
	ErrAlreadyConfigured = errors.New("breaker: breaker is already configured")

	// ErrNotConfigured is returned when a registry name is unknown.
	ErrNotConfigured = errors.New("breaker: breaker is not configured")

	// ErrUnknownState is returned when parsing an invalid state string.
	ErrUnknownState = errors.New("breaker: unknown state")
)
