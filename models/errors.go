package models

import (
	"errors"
	"fmt"
)

// Error taxonomy for the task core. Handlers map these onto HTTP statuses and
// the UI uses the split to decide whether "try again" makes sense, so
// services must never collapse one kind into another.

// ValidationError is bad caller input. Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NotFoundError is a missing task or event.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// PermissionError is an actor lacking the required role or relationship.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Reason
}

// ConflictError is a mutation that contradicts current task state, e.g.
// completing a task twice or starting one that is not pending.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

// ErrAlreadyCompleted is the conflict raised when an assignee completes a
// shared task a second time.
var ErrAlreadyCompleted = &ConflictError{Reason: "actor already completed this task"}

// TransientStoreError wraps a store hiccup that is worth one retry.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// IsTransient reports whether err (anywhere in its chain) is a store hiccup.
func IsTransient(err error) bool {
	var te *TransientStoreError
	return errors.As(err, &te)
}
