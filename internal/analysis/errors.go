package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown analysis ids.
	ErrNotFound = errors.New("analysis not found")
	// ErrStaleWrite means the record no longer carries the status the caller
	// expected; another writer got there first.
	ErrStaleWrite = errors.New("stale write")
	// ErrInvalidTransition means the mutation breaks the status graph or the
	// result invariants.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrSchemaMismatch indicates the database schema version differs from the
	// version this build expects.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

// TransitionError describes a rejected mutation. It matches ErrInvalidTransition.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// StorageError wraps a persistence fault from the database driver.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("analysis store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
