package network

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput matches every InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError reports a node id that is absent from the network.
type NotFoundError struct {
	ID       NodeID
	Referrer string // record that referenced ID, if any
}

func (e *NotFoundError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("%s references unknown node %q", e.Referrer, e.ID)
	}
	return fmt.Sprintf("node %q not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidInputError reports a malformed record.
type InvalidInputError struct {
	Record string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Record == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Record, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(record, format string, args ...any) error {
	return &InvalidInputError{Record: record, Reason: fmt.Sprintf(format, args...)}
}
