// Package errors defines the error taxonomy used across tokenbroker.
package errors

import (
	"fmt"
)

// Error types
const (
	// ErrInvalidConfig is returned when required configuration is missing or malformed
	ErrInvalidConfig = "invalid_config"

	// ErrNotFound is returned when no token record exists for a user
	ErrNotFound = "not_found"

	// ErrProviderExchange is returned when the identity provider rejects a code exchange or refresh
	ErrProviderExchange = "provider_exchange"

	// ErrStoreRead is returned when the storage backend fails a read operation
	ErrStoreRead = "store_read"

	// ErrStoreWrite is returned when the storage backend fails a write operation
	ErrStoreWrite = "store_write"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidConfigError creates a new invalid configuration error
func NewInvalidConfigError(message string, cause error) *Error {
	return NewError(ErrInvalidConfig, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewProviderExchangeError creates a new provider exchange error
func NewProviderExchangeError(message string, cause error) *Error {
	return NewError(ErrProviderExchange, message, cause)
}

// NewStoreReadError creates a new store read error
func NewStoreReadError(message string, cause error) *Error {
	return NewError(ErrStoreRead, message, cause)
}

// NewStoreWriteError creates a new store write error
func NewStoreWriteError(message string, cause error) *Error {
	return NewError(ErrStoreWrite, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInvalidConfig
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrNotFound
}

// IsProviderExchange checks if the error is a provider exchange error
func IsProviderExchange(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrProviderExchange
}

// IsStoreRead checks if the error is a store read error
func IsStoreRead(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrStoreRead
}

// IsStoreWrite checks if the error is a store write error
func IsStoreWrite(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrStoreWrite
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInternal
}
