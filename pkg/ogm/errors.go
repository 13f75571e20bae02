package ogm

import (
	"errors"
	"fmt"
)

// Common mapper errors.
var (
	// ErrNotRegistered indicates a class name with no registered type.
	ErrNotRegistered = errors.New("entity not registered")

	// ErrUnsupported indicates a shape the mapper cannot handle.
	ErrUnsupported = errors.New("not supported")

	// ErrConflictingRoles indicates a field with incompatible markers.
	ErrConflictingRoles = errors.New("conflicting field roles")

	// ErrAccess indicates a reflective read or write failed.
	ErrAccess = errors.New("field access failed")

	// ErrInvalidObject indicates a value that is not a mappable struct.
	ErrInvalidObject = errors.New("invalid object")
)

// NotRegisteredError names the class that has no registered type.
type NotRegisteredError struct {
	Entity string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("No registered class found for entity %s, please use RegisterEntityClass() to register them first.", e.Entity)
}

func (e *NotRegisteredError) Unwrap() error {
	return ErrNotRegistered
}

// UnsupportedError describes an unsupported document kind or entity shape.
type UnsupportedError struct {
	What    string
	Subject string
}

func (e *UnsupportedError) Error() string {
	if e.Subject == "" {
		return e.What + " not supported"
	}
	return fmt.Sprintf("%s not supported: %s", e.What, e.Subject)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// MappingError rejects a field declaration at registration.
type MappingError struct {
	Entity string
	Field  string
	Reason string
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

func (e *MappingError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidObject
}

// AccessError wraps a failed reflective field access.
type AccessError struct {
	Entity string
	Field  string
	Err    error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access %s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *AccessError) Unwrap() []error {
	return []error{ErrAccess, e.Err}
}

// IsNotRegistered checks if an error is an unregistered entity error.
func IsNotRegistered(err error) bool {
	return errors.Is(err, ErrNotRegistered)
}
