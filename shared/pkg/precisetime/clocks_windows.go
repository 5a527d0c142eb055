package precisetime

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

// clocksPerSec is CLOCKS_PER_SEC from the MSVC runtime.
const clocksPerSec = 1000

// qpcFrequency is fixed at boot, so it is read once.
var qpcFrequency = sync.OnceValues(func() (int64, error) {
	var freq int64
	if err := windows.QueryPerformanceFrequency(&freq); err != nil {
		return 0, fmt.Errorf("QueryPerformanceFrequency: %w", err)
	}
	if freq <= 0 {
		return 0, fmt.Errorf("QueryPerformanceFrequency: non-positive frequency %d", freq)
	}
	return freq, nil
})

// performanceCounter is the invariant TSC-backed counter. It does not follow
// wall clock adjustments.
type performanceCounter struct{}

func (performanceCounter) Name() string    { return "QueryPerformanceCounter" }
func (performanceCounter) Kind() Kind      { return KindNative }
func (performanceCounter) Monotonic() bool { return true }

func (performanceCounter) ReadNanos() (int64, error) {
	freq, err := qpcFrequency()
	if err != nil {
		return 0, err
	}
	var ticks int64
	if err := windows.QueryPerformanceCounter(&ticks); err != nil {
		return 0, fmt.Errorf("QueryPerformanceCounter: %w", err)
	}
	return ticksToNanos(ticks, freq), nil
}

// GetSystemTimePreciseAsFileTime only exists on Windows 8 / Server 2012 and
// later, so its presence is probed before the first call.
var procPreciseFileTime = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetSystemTimePreciseAsFileTime")

type preciseFileTime struct{}

func (preciseFileTime) Name() string    { return "GetSystemTimePreciseAsFileTime" }
func (preciseFileTime) Kind() Kind      { return KindNative }
func (preciseFileTime) Monotonic() bool { return false }

func (preciseFileTime) ReadNanos() (int64, error) {
	if err := procPreciseFileTime.Find(); err != nil {
		return 0, err
	}
	var ft windows.Filetime
	windows.GetSystemTimePreciseAsFileTime(&ft)
	return ft.Nanoseconds(), nil
}

type systemFileTime struct{}

func (systemFileTime) Name() string    { return "GetSystemTimeAsFileTime" }
func (systemFileTime) Kind() Kind      { return KindCoarse }
func (systemFileTime) Monotonic() bool { return false }

func (systemFileTime) ReadNanos() (int64, error) {
	var ft windows.Filetime
	windows.GetSystemTimeAsFileTime(&ft)
	return ft.Nanoseconds(), nil
}

func platformSources() ([]Source, Source) {
	return []Source{performanceCounter{}, preciseFileTime{}}, systemFileTime{}
}

// The counter period is the resolution. Without a counter the value is
// derived from CLOCKS_PER_SEC and flagged as an estimate.
func platformResolution() (Duration, bool, error) {
	freq, err := qpcFrequency()
	if err != nil {
		return Duration(1.0 / clocksPerSec), true, nil
	}
	return Duration(1.0 / float64(freq)), false, nil
}
