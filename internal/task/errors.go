package task

import (
	"errors"
	"fmt"
)

// Common errors returned by the task package
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrQueueClosed       = errors.New("job queue is closed")
	ErrPoolClosed        = errors.New("worker pool is closed")
	ErrPoolFull          = errors.New("worker pool backlog is full")
	ErrNilWorkItem       = errors.New("work item must not be nil")
	ErrResultUnavailable = errors.New("task result unavailable")
)

// PanicError is recorded as a task's error when its work item panics.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("work item panicked: %v", e.Value)
}

// Unwrap returns the panic value if it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
