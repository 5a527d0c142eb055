// Package precisetime reads the most precise monotonic clock the host offers
// and reports its resolution. Values are seconds since an arbitrary epoch and
// only mean something as the difference of two reads in the same process.
package precisetime

import (
	"fmt"
	"sync"
	"time"
)

const nsPerSec = 1e9

// Timestamp is seconds since an arbitrary, per-source epoch.
type Timestamp float64

// Sub returns t - prev
func (t Timestamp) Sub(prev Timestamp) Duration {
	return Duration(t - prev)
}

// Duration is a span of time in seconds.
type Duration float64

// Seconds returns d as a float64 number of seconds
func (d Duration) Seconds() float64 {
	return float64(d)
}

// Std converts d to a time.Duration, rounding to the nearest nanosecond
func (d Duration) Std() time.Duration {
	return time.Duration(float64(d)*nsPerSec + 0.5)
}

func (d Duration) String() string {
	if d > 0 && d < 1e-9 {
		return fmt.Sprintf("%.3gns", float64(d)*nsPerSec)
	}
	return d.Std().String()
}

// resolutionFunc returns the host clock resolution and whether the value is a
// best-effort estimate rather than a queried one.
type resolutionFunc func() (Duration, bool, error)

// Clock reads from the source chosen at construction. A Clock never changes
// after it is built and is safe for concurrent use.
type Clock struct {
	primary      Source // nil when only the coarse source works
	primaryEpoch int64
	coarse       Source
	coarseEpoch  int64
	coarseOK     bool // coarse read at detection, so coarseEpoch is valid
	resolution   resolutionFunc
}

// Info describes the clock chosen for this process
type Info struct {
	Source              string  `json:"source" yaml:"source"`
	Kind                string  `json:"kind" yaml:"kind"`
	Monotonic           bool    `json:"monotonic" yaml:"monotonic"`
	ResolutionSeconds   float64 `json:"resolution_seconds" yaml:"resolution_seconds"`
	ResolutionEstimated bool    `json:"resolution_estimated" yaml:"resolution_estimated"`
}

var (
	defaultOnce  sync.Once
	defaultClock *Clock
	defaultErr   error
)

// Default returns the process wide clock. Capability detection runs once;
// the result is read-only afterwards.
func Default() (*Clock, error) {
	defaultOnce.Do(func() {
		candidates, coarse := platformSources()
		defaultClock, defaultErr = newClock(candidates, coarse, platformResolution)
	})
	return defaultClock, defaultErr
}

// newClock picks the first candidate that reads successfully. Each source is
// rebased on its first read so timestamps stay small and keep their precision.
// A coarse source that fails here is never used as a fallback, since it has
// no epoch to rebase on.
func newClock(candidates []Source, coarse Source, res resolutionFunc) (*Clock, error) {
	c := &Clock{coarse: coarse, resolution: res}

	for _, s := range candidates {
		ns, err := s.ReadNanos()
		if err != nil {
			continue
		}
		c.primary, c.primaryEpoch = s, ns
		break
	}

	ns, err := coarse.ReadNanos()
	if err != nil {
		if c.primary == nil {
			return nil, &ClockError{
				Op:     "detect",
				Source: coarse.Name(),
				Err:    fmt.Errorf("%w: %w", ErrClockUnavailable, err),
			}
		}
	} else {
		c.coarseEpoch, c.coarseOK = ns, true
	}

	return c, nil
}

// Source returns the source Now reads from when nothing fails
func (c *Clock) Source() Source {
	if c.primary != nil {
		return c.primary
	}
	return c.coarse
}

// Now returns the current time. A failed read of the selected source falls
// through to the coarse wall clock; only when that fails too is an error
// returned. Results are monotonic only if Source().Monotonic() is true.
func (c *Clock) Now() (Timestamp, error) {
	if c.primary != nil {
		ns, err := c.primary.ReadNanos()
		if err == nil {
			return nanosToStamp(ns - c.primaryEpoch), nil
		}
		if !c.coarseOK {
			return 0, &ClockError{
				Op:     "now",
				Source: c.primary.Name(),
				Err:    fmt.Errorf("%w: %w", ErrClockReadFailed, err),
			}
		}
	}

	ns, err := c.coarse.ReadNanos()
	if err != nil {
		return 0, &ClockError{
			Op:     "now",
			Source: c.coarse.Name(),
			Err:    fmt.Errorf("%w: %w", ErrClockReadFailed, err),
		}
	}
	return nanosToStamp(ns - c.coarseEpoch), nil
}

// Resolution returns the granularity of the host clock. The value is always
// strictly positive when err is nil.
func (c *Clock) Resolution() (Duration, error) {
	res, _, err := c.resolve()
	return res, err
}

func (c *Clock) resolve() (Duration, bool, error) {
	res, estimated, err := c.resolution()
	if err != nil {
		return 0, false, &ClockError{
			Op:     "resolution",
			Source: c.Source().Name(),
			Err:    fmt.Errorf("%w: %w", ErrClockUnavailable, err),
		}
	}
	if res <= 0 {
		return 0, false, &ClockError{
			Op:     "resolution",
			Source: c.Source().Name(),
			Err:    fmt.Errorf("%w: non-positive resolution %g", ErrClockUnavailable, float64(res)),
		}
	}
	return res, estimated, nil
}

// ElapsedSince returns the time passed since prev. It returns ErrNotElapsed
// when the clock has not moved forward.
func (c *Clock) ElapsedSince(prev Timestamp) (Duration, error) {
	now, err := c.Now()
	if err != nil {
		return 0, err
	}
	return Diff(prev, now)
}

// Describe reports the selected source and its resolution
func (c *Clock) Describe() (Info, error) {
	res, estimated, err := c.resolve()
	if err != nil {
		return Info{}, err
	}
	src := c.Source()
	return Info{
		Source:              src.Name(),
		Kind:                src.Kind().String(),
		Monotonic:           src.Monotonic(),
		ResolutionSeconds:   res.Seconds(),
		ResolutionEstimated: estimated,
	}, nil
}

// Diff returns now - prev, or ErrNotElapsed if that is not positive.
func Diff(prev, now Timestamp) (Duration, error) {
	d := now.Sub(prev)
	if d <= 0 {
		return 0, ErrNotElapsed
	}
	return d, nil
}

// Now reads the default clock.
func Now() (Timestamp, error) {
	c, err := Default()
	if err != nil {
		return 0, err
	}
	return c.Now()
}

// Resolution returns the resolution of the default clock.
func Resolution() (Duration, error) {
	c, err := Default()
	if err != nil {
		return 0, err
	}
	return c.Resolution()
}

// ElapsedSince measures against the default clock.
func ElapsedSince(prev Timestamp) (Duration, error) {
	c, err := Default()
	if err != nil {
		return 0, err
	}
	return c.ElapsedSince(prev)
}

func nanosToStamp(ns int64) Timestamp {
	return Timestamp(float64(ns) / nsPerSec)
}

// ticksToNanos converts a counter running at freq Hz to nanoseconds without
// overflowing for counters of any realistic uptime.
func ticksToNanos(ticks, freq int64) int64 {
	return ticks/freq*nsPerSec + ticks%freq*nsPerSec/freq
}
