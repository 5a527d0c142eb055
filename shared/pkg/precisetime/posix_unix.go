//go:build linux || freebsd

package precisetime

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// posixClock is one clock id read through clock_gettime(2).
type posixClock struct {
	id        int32
	name      string
	monotonic bool
}

func (c posixClock) Name() string    { return c.name }
func (c posixClock) Kind() Kind      { return KindPOSIX }
func (c posixClock) Monotonic() bool { return c.monotonic }

func (c posixClock) ReadNanos() (int64, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(c.id, &ts); err != nil {
		return 0, fmt.Errorf("clock_gettime(%s): %w", c.name, err)
	}
	return ts.Nano(), nil
}

func platformSources() ([]Source, Source) {
	sources := make([]Source, 0, len(posixClocks))
	for _, c := range posixClocks {
		sources = append(sources, c)
	}
	return sources, gettimeofday{}
}

// platformResolution asks clock_getres(2) for each id in resolutionClocks and
// returns the first positive answer.
func platformResolution() (Duration, bool, error) {
	var errs []error
	for _, c := range resolutionClocks {
		var ts unix.Timespec
		if err := clockGetres(c.id, &ts); err != nil {
			errs = append(errs, fmt.Errorf("clock_getres(%s): %w", c.name, err))
			continue
		}
		if ns := ts.Nano(); ns > 0 {
			return Duration(float64(ns) / nsPerSec), false, nil
		}
		errs = append(errs, fmt.Errorf("clock_getres(%s): zero resolution", c.name))
	}
	return 0, false, errors.Join(errs...)
}
