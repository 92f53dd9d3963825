// Package apperr provides structured error types for the game builder.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a missing version, project, or snapshot. Restore
// and revert report it as a boolean failure rather than propagating.
var ErrNotFound = errors.New("not found")

// ServiceError is a transport-level failure of an external call (LLM
// or compiler process). The generation loop recovers from it by
// consuming a retry-budget slot.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func NewServiceError(service string, err error) *ServiceError {
	return &ServiceError{Service: service, Err: err}
}

// ValidationError means generated data failed structural validation.
// Its message is folded into the next retry's input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StorageError is a filesystem failure. It is never retried by the
// generation loop and fails the whole request.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op, path string, err error) *StorageError {
	return &StorageError{Op: op, Path: path, Err: err}
}

// IsService reports whether err is a ServiceError anywhere in its chain.
func IsService(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// IsStorage reports whether err is a StorageError anywhere in its chain.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
