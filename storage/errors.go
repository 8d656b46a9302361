package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced article(s) do not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique value is already taken.
	ErrConflict = errors.New("already exists")
)

// DatabaseError wraps a failed statement with the operation that issued it.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func dbError(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}
