//go:build !linux && !freebsd && !darwin && !windows

package precisetime

// clocksPerSec is the XSI value of CLOCKS_PER_SEC.
const clocksPerSec = 1000000

func platformSources() ([]Source, Source) {
	return []Source{runtimeMonotonic{name: "runtime monotonic"}}, wallMicros{}
}

// Best-effort: derived from CLOCKS_PER_SEC, not queried.
func platformResolution() (Duration, bool, error) {
	return Duration(1.0 / clocksPerSec), true, nil
}
