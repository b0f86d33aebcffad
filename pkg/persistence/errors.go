// Package persistence provides standardized error types for record store
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations return.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrApprovalNotFound indicates an approval request was not found.
	ErrApprovalNotFound = errors.New("approval request not found")

	// ErrBreakpointNotFound indicates a breakpoint was not found.
	ErrBreakpointNotFound = errors.New("breakpoint not found")

	// ErrApprovalResolved indicates an approval request already left the
	// pending state and accepts no further writes.
	ErrApprovalResolved = errors.New("approval request already resolved")
)

// StoreError wraps record store errors with operation context.
type StoreError struct {
	Op         string // Operation being performed (e.g. "GetByID", "Save")
	Collection string // Collection being operated on
	ID         string // Record ID if applicable
	Err        error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a store error with context.
func NewStoreError(op, collection, id string, err error) *StoreError {
	return &StoreError{Op: op, Collection: collection, ID: id, Err: err}
}

// IsNotFound checks whether an error indicates any record-not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrApprovalNotFound) ||
		errors.Is(err, ErrBreakpointNotFound)
}

// IsApprovalResolved checks whether an error indicates a terminal approval.
func IsApprovalResolved(err error) bool {
	return errors.Is(err, ErrApprovalResolved)
}
