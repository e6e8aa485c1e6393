package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeGraph represents Neo4j backend errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeStorage represents file storage errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeDomain represents caller-visible domain errors
	ErrorTypeDomain ErrorType = "domain"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Domain Errors

// ErrEntityNotFound is returned when an operation names an entity that
// does not exist. It signals caller misuse and is always surfaced, never
// swallowed by backend fallback.
type ErrEntityNotFound struct {
	*BaseError
	EntityName string
}

func NewEntityNotFound(entityName string) *ErrEntityNotFound {
	return &ErrEntityNotFound{
		BaseError:  NewBaseError(ErrorTypeDomain, fmt.Sprintf("entity not found: %s", entityName), nil),
		EntityName: entityName,
	}
}

// IsEntityNotFound checks whether err is an ErrEntityNotFound, unwrapping
// as needed.
func IsEntityNotFound(err error) bool {
	for err != nil {
		if _, ok := err.(*ErrEntityNotFound); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Graph Errors

// ErrGraphConnectionFailed is returned when the Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Operation string
}

func NewGraphQueryFailed(operation string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", operation), err),
		Operation: operation,
	}
}

// Storage Errors

// ErrStorageRead is returned when the fallback file cannot be read
type ErrStorageRead struct {
	*BaseError
	Path string
}

func NewStorageRead(path string, err error) *ErrStorageRead {
	return &ErrStorageRead{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("failed to read memory file: %s", path), err),
		Path:      path,
	}
}

// ErrStorageWrite is returned when the fallback file cannot be written
type ErrStorageWrite struct {
	*BaseError
	Path string
}

func NewStorageWrite(path string, err error) *ErrStorageWrite {
	return &ErrStorageWrite{
		BaseError: NewBaseError(ErrorTypeStorage, fmt.Sprintf("failed to write memory file: %s", path), err),
		Path:      path,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if baseErr, ok := err.(*BaseError); ok {
		return baseErr.Type == errType
	}
	if wrapped, ok := err.(interface{ Unwrap() error }); ok {
		return IsErrorType(wrapped.Unwrap(), errType)
	}
	return false
}
