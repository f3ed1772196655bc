package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while running a topology.
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Node identifies the node that failed, if any.
	Node string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeRowBudgetExceeded indicates the run produced more rows than allowed.
	ErrCodeRowBudgetExceeded RuntimeErrorCode = "ROW_BUDGET_EXCEEDED"

	// ErrCodeMissingReferenceData indicates a static filter ran without a
	// reference data provider.
	ErrCodeMissingReferenceData RuntimeErrorCode = "MISSING_REFERENCE_DATA"

	// ErrCodeInvalidTopology indicates the descriptor cannot be executed.
	ErrCodeInvalidTopology RuntimeErrorCode = "INVALID_TOPOLOGY"

	// ErrCodeBadExpression indicates a predicate expression does not parse.
	ErrCodeBadExpression RuntimeErrorCode = "BAD_EXPRESSION"

	// ErrCodeReferenceLookup indicates the reference data provider failed.
	ErrCodeReferenceLookup RuntimeErrorCode = "REFERENCE_LOOKUP_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRowBudgetError returns true if the error is a row budget error.
// Uses errors.As to handle wrapped errors.
func IsRowBudgetError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRowBudgetExceeded
	}
	return false
}

// ErrorCode returns the code of the *RuntimeError wrapped by err, or "".
func ErrorCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// NewRowBudgetError creates a RuntimeError for an exhausted row budget.
func NewRowBudgetError(node string, rows, maxRows int64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRowBudgetExceeded,
		Message: fmt.Sprintf("run exceeded max rows (%d > %d)", rows, maxRows),
		Node:    node,
		Details: map[string]string{
			"rows":     fmt.Sprintf("%d", rows),
			"max_rows": fmt.Sprintf("%d", maxRows),
		},
	}
}
