package queue

import (
	"errors"
	"fmt"

	"wpqueue/internal/services"
)

// ErrNotFound is returned when an entry id is not in the store.
var ErrNotFound = errors.New("queue entry not found")

// StorageError reports a failed persistent store operation.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("queue store %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("queue store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is lets callers match the services storage marker.
func (e *StorageError) Is(target error) bool {
	return target == services.ErrStorage
}

func storageErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, ID: id, Err: err}
}
