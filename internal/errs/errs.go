// Package errs defines the error kinds shared by every storage component.
//
// Components wrap one of the sentinels with fmt.Errorf("...: %w", ...) so
// callers can test the kind with errors.Is while keeping the message.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrCycleDetected   = errors.New("cycle detected")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDependency marks blob store and notification failures.
	ErrDependency = errors.New("dependency error")
)

// ErrDependency comes first: Dependency keeps the collaborator's error in
// the chain, and that error may itself carry a domain kind.
var kinds = []struct {
	err  error
	name string
}{
	{ErrDependency, "DependencyError"},
	{ErrNotFound, "NotFound"},
	{ErrConflict, "Conflict"},
	{ErrCycleDetected, "CycleDetected"},
	{ErrQuotaExceeded, "QuotaExceeded"},
	{ErrForbidden, "Forbidden"},
	{ErrInvalidArgument, "InvalidArgument"},
}

// Kind returns the name of the error kind carried by err, or "Internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// Dependency wraps an I/O failure of an external collaborator.
func Dependency(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrDependency, err)
}
