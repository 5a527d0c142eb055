package precisetime

// The runtime scales mach_absolute_time by mach_timebase_info into
// nanoseconds. The timebase is not reachable without cgo, so the resolution
// is the known tick of the architecture and flagged as estimated.

func platformSources() ([]Source, Source) {
	return []Source{runtimeMonotonic{name: "mach_absolute_time"}}, gettimeofday{}
}

func platformResolution() (Duration, bool, error) {
	return Duration(machTickNanos / nsPerSec), true, nil
}
