// Package cpuperf measures how many operations per second a fixed-cost
// workload achieves on this machine, using nothing but a precise clock.
//
// The measurement spins in two phases. It first runs the cheap calibration
// unit until the clock visibly ticks, so the window starts on a tick
// boundary. It then runs the measured unit until more than Precision clock
// resolutions have elapsed, which bounds the relative timing error to about
// 1/Precision. Both loops busy-wait on purpose: sleeping would give up the
// sub-tick alignment the result depends on.
package cpuperf

import (
	"errors"
	"fmt"
	"time"

	"github.com/psantana5/kdfcal/pkg/logging"
	"github.com/psantana5/kdfcal/pkg/precisetime"
)

const (
	// DefaultPrecision is the number of clock resolutions the measurement
	// window must exceed.
	DefaultPrecision = 1000

	// DefaultMaxStalledCalls is how many consecutive work calls must pass
	// without the clock moving before the stall timeout is even consulted.
	DefaultMaxStalledCalls = 1 << 20

	// MinStallTimeout is the shortest derived stall timeout.
	MinStallTimeout = time.Second
)

// Clock is what the estimator needs from a time source.
// *precisetime.Clock satisfies it.
type Clock interface {
	Now() (precisetime.Timestamp, error)
	Resolution() (precisetime.Duration, error)
	ElapsedSince(prev precisetime.Timestamp) (precisetime.Duration, error)
}

// Config holds estimator configuration
//
// The clock counts as frozen once it has not moved for MaxStalledCalls work
// calls and for StallTimeout of runtime monotonic time. A zero StallTimeout
// is derived from the clock: Precision resolutions, at least MinStallTimeout.
type Config struct {
	Precision       int             // K: window must exceed K clock resolutions
	MaxStalledCalls int             // consecutive calls without clock progress
	StallTimeout    time.Duration   // time without clock progress
	Logger          *logging.Logger // optional, phase boundaries only
}

func (c Config) stallTimeout(res precisetime.Duration) time.Duration {
	if c.StallTimeout > 0 {
		return c.StallTimeout
	}
	window := precisetime.Duration(float64(c.Precision)) * res
	return max(window.Std(), MinStallTimeout)
}

// DefaultConfig returns the reference configuration
func DefaultConfig() Config {
	return Config{
		Precision:       DefaultPrecision,
		MaxStalledCalls: DefaultMaxStalledCalls,
	}
}

// Measurement is the outcome of one estimation
type Measurement struct {
	OpsPerSecond float64              `json:"ops_per_second" yaml:"ops_per_second"`
	Operations   uint64               `json:"operations" yaml:"operations"`
	Elapsed      precisetime.Duration `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Resolution   precisetime.Duration `json:"resolution_seconds" yaml:"resolution_seconds"`
	Precision    int                  `json:"precision" yaml:"precision"`
	TickCalls    int                  `json:"tick_calls" yaml:"tick_calls"`
	MeasureCalls int                  `json:"measure_calls" yaml:"measure_calls"`
}

// Estimator runs throughput estimations against a clock. It keeps no state
// between calls; concurrent use is safe but the spin loops will compete for
// CPU and skew each other.
type Estimator struct {
	clock  Clock
	config Config
	since  func() time.Duration // reference time for the stall guard
}

// NewEstimator creates an estimator. Zero config fields take their defaults.
func NewEstimator(clock Clock, config Config) *Estimator {
	if config.Precision <= 0 {
		config.Precision = DefaultPrecision
	}
	if config.MaxStalledCalls <= 0 {
		config.MaxStalledCalls = DefaultMaxStalledCalls
	}
	start := time.Now()
	return &Estimator{
		clock:  clock,
		config: config,
		since:  func() time.Duration { return time.Since(start) },
	}
}

// stallGuard watches for a clock that stopped moving. It only reads the
// reference time while the clock is stalled.
type stallGuard struct {
	minCalls int
	timeout  time.Duration
	since    func() time.Duration

	calls int
	start time.Duration
}

func (e *Estimator) newStallGuard(res precisetime.Duration) *stallGuard {
	return &stallGuard{
		minCalls: e.config.MaxStalledCalls,
		timeout:  e.config.stallTimeout(res),
		since:    e.since,
	}
}

func (g *stallGuard) progress() {
	g.calls = 0
}

// stalled records one call without progress and reports whether the clock
// is now considered frozen.
func (g *stallGuard) stalled() bool {
	g.calls++
	if g.calls == 1 {
		g.start = g.since()
	}
	return g.calls >= g.minCalls && g.since()-g.start >= g.timeout
}

// Estimate measures w on the process clock with the default configuration.
func Estimate(w Workload) (float64, error) {
	clock, err := precisetime.Default()
	if err != nil {
		return 0, &EstimateError{Phase: PhaseResolution, Err: err}
	}
	return NewEstimator(clock, DefaultConfig()).Estimate(w)
}

// Estimate returns the operations per second w achieves
func (e *Estimator) Estimate(w Workload) (float64, error) {
	m, err := e.Measure(w)
	if err != nil {
		return 0, err
	}
	return m.OpsPerSecond, nil
}

// Measure runs a full estimation and returns the raw figures behind it.
// Any clock or work failure ends the call; nothing is retried.
func (e *Estimator) Measure(w Workload) (*Measurement, error) {
	log := e.config.Logger

	res, err := e.clock.Resolution()
	if err != nil {
		if !errors.Is(err, ErrClockUnavailable) {
			err = fmt.Errorf("%w: %w", ErrClockUnavailable, err)
		}
		return nil, &EstimateError{Phase: PhaseResolution, Err: err}
	}
	log.Debug("clock resolution probed", logging.Fields{"resolution": res.String()})

	tickCalls, err := e.waitForTick(w, e.newStallGuard(res))
	if err != nil {
		return nil, err
	}
	log.Debug("clock tick observed", logging.Fields{"calls": tickCalls})

	m, err := e.measure(w, res, e.newStallGuard(res))
	if err != nil {
		return nil, err
	}
	m.TickCalls = tickCalls

	log.Debug("measurement complete", logging.Fields{
		"calls":          m.MeasureCalls,
		"operations":     m.Operations,
		"elapsed":        m.Elapsed.String(),
		"ops_per_second": m.OpsPerSecond,
	})
	return m, nil
}

// waitForTick spins on the calibration unit until the clock moves past t0.
func (e *Estimator) waitForTick(w Workload, guard *stallGuard) (int, error) {
	t0, err := e.now(PhaseTick, 0)
	if err != nil {
		return 0, err
	}

	for calls := 1; ; calls++ {
		if err := w.Calibrate(); err != nil {
			return calls - 1, &EstimateError{Phase: PhaseTick, Calls: calls - 1, Err: fmt.Errorf("%w: %w", ErrWorkFailed, err)}
		}

		_, err := e.clock.ElapsedSince(t0)
		switch {
		case err == nil:
			return calls, nil
		case !errors.Is(err, precisetime.ErrNotElapsed):
			return calls, e.readError(PhaseTick, calls, err)
		case guard.stalled():
			return calls, &EstimateError{
				Phase: PhaseTick,
				Calls: calls,
				Err:   fmt.Errorf("%w: clock did not advance in %d calls", ErrDegenerateMeasurement, calls),
			}
		}
	}
}

// measure runs w until the window exceeds Precision resolutions. The clock
// must keep moving; a window that stops growing is a frozen clock.
func (e *Estimator) measure(w Workload, res precisetime.Duration, guard *stallGuard) (*Measurement, error) {
	t1, err := e.now(PhaseMeasure, 0)
	if err != nil {
		return nil, err
	}

	threshold := precisetime.Duration(float64(e.config.Precision)) * res
	opsPerRun := w.OpsPerRun()

	var (
		ops     uint64
		elapsed precisetime.Duration
		calls   int
	)
	for {
		if err := w.Run(); err != nil {
			return nil, &EstimateError{Phase: PhaseMeasure, Calls: calls, Err: fmt.Errorf("%w: %w", ErrWorkFailed, err)}
		}
		calls++
		ops += opsPerRun

		d, err := e.clock.ElapsedSince(t1)
		if err != nil && !errors.Is(err, precisetime.ErrNotElapsed) {
			return nil, e.readError(PhaseMeasure, calls, err)
		}
		if err == nil && d > elapsed {
			elapsed = d
			guard.progress()
			if elapsed > threshold {
				break
			}
			continue
		}
		if guard.stalled() {
			return nil, &EstimateError{
				Phase: PhaseMeasure,
				Calls: calls,
				Err:   fmt.Errorf("%w: clock stopped at %s after %d calls", ErrDegenerateMeasurement, elapsed, calls),
			}
		}
	}

	return &Measurement{
		OpsPerSecond: float64(ops) / elapsed.Seconds(),
		Operations:   ops,
		Elapsed:      elapsed,
		Resolution:   res,
		Precision:    e.config.Precision,
		MeasureCalls: calls,
	}, nil
}

func (e *Estimator) now(phase Phase, calls int) (precisetime.Timestamp, error) {
	t, err := e.clock.Now()
	if err != nil {
		return 0, e.readError(phase, calls, err)
	}
	return t, nil
}

func (e *Estimator) readError(phase Phase, calls int, err error) error {
	if !errors.Is(err, ErrClockReadFailed) {
		err = fmt.Errorf("%w: %w", ErrClockReadFailed, err)
	}
	return &EstimateError{Phase: phase, Calls: calls, Err: err}
}
