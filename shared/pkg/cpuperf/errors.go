package cpuperf

import (
	"errors"
	"fmt"

	"github.com/psantana5/kdfcal/pkg/precisetime"
)

var (
	// ErrClockUnavailable means the clock resolution could not be determined.
	ErrClockUnavailable = precisetime.ErrClockUnavailable

	// ErrClockReadFailed means a clock read failed mid-measurement.
	ErrClockReadFailed = precisetime.ErrClockReadFailed

	// ErrWorkFailed means the workload returned an error. Workloads are
	// deterministic, so this points at the environment, not at noise.
	ErrWorkFailed = errors.New("work unit failed")

	// ErrDegenerateMeasurement means the measurement window was zero, so no
	// finite throughput can be computed.
	ErrDegenerateMeasurement = errors.New("degenerate measurement")
)

// Phase names the step of an estimation
type Phase string

const (
	PhaseResolution Phase = "resolution"
	PhaseTick       Phase = "tick"
	PhaseMeasure    Phase = "measure"
)

// EstimateError wraps a failed estimation with where it stopped
type EstimateError struct {
	Phase Phase
	Calls int // work calls completed in Phase before the failure
	Err   error
}

// Error implements error interface
func (e *EstimateError) Error() string {
	return fmt.Sprintf("%s phase failed after %d calls: %v", e.Phase, e.Calls, e.Err)
}

// Unwrap implements error unwrapping
func (e *EstimateError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether repeating the whole estimation might succeed.
// Only clock read failures qualify.
func IsTransient(err error) bool {
	return errors.Is(err, ErrClockReadFailed)
}

// Reason maps an estimation error onto a short label for metrics and logs
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrWorkFailed):
		return "work_failed"
	case errors.Is(err, ErrDegenerateMeasurement):
		return "degenerate_measurement"
	case errors.Is(err, ErrClockUnavailable):
		return "clock_unavailable"
	case errors.Is(err, ErrClockReadFailed):
		return "clock_read_failed"
	default:
		return "error"
	}
}
