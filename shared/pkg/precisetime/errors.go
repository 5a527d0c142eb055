package precisetime

import (
	"errors"
	"fmt"
)

var (
	// ErrClockUnavailable means no usable time source or resolution query
	// exists on this host. It is not worth retrying within the same process.
	ErrClockUnavailable = errors.New("no usable clock source")

	// ErrClockReadFailed means the selected clock could not be read.
	ErrClockReadFailed = errors.New("clock read failed")

	// ErrNotElapsed is returned by ElapsedSince and Diff when no positive time
	// has passed. Spin loops treat it as "keep waiting".
	ErrNotElapsed = errors.New("no time elapsed")
)

// ClockError wraps a clock failure with the operation and source involved
type ClockError struct {
	Op     string // "detect", "now", "resolution"
	Source string
	Err    error
}

// Error implements error interface
func (e *ClockError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("clock %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("clock %s (%s): %v", e.Op, e.Source, e.Err)
}

// Unwrap implements error unwrapping
func (e *ClockError) Unwrap() error {
	return e.Err
}
