package graph

import (
	"errors"
	"fmt"
)

// Common engine errors.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNoTransaction indicates Commit or Rollback without Begin.
	ErrNoTransaction = errors.New("no active transaction")

	// ErrTxActive indicates Begin while a transaction is already open.
	ErrTxActive = errors.New("transaction already active")

	// ErrClassExists indicates CreateClass for a defined class.
	ErrClassExists = errors.New("class already exists")

	// ErrClassNotFound indicates a reference to an undefined class.
	ErrClassNotFound = errors.New("class not found")

	// ErrUnsupportedQuery indicates a statement the engine cannot run.
	ErrUnsupportedQuery = errors.New("unsupported query")

	// ErrDuplicateKey indicates a unique index violation.
	ErrDuplicateKey = errors.New("duplicate key")
)

// NotFoundError wraps ErrNotFound with the record identity.
type NotFoundError struct {
	RID RID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s", e.RID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a typed not found error.
func NewNotFoundError(rid RID) error {
	return &NotFoundError{RID: rid}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
