package utils

import "fmt"

// ValidationError marks a malformed sequence or step definition. Fatal to the
// attempt; the caller should fix the data, not retry.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// DuplicateExecutionError is returned when a non-terminal execution already
// owns the (sequence, invoice) pair. Callers must not retry blindly.
type DuplicateExecutionError struct {
	SequenceID uint
	InvoiceID  uint
}

func (e *DuplicateExecutionError) Error() string {
	return fmt.Sprintf("an open execution already exists for sequence %d and invoice %d", e.SequenceID, e.InvoiceID)
}

// DispatchError wraps a transport failure. The execution remains resumable;
// the caller may retry ContinueSequenceExecution.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return "dispatch failed: " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
