package precisetime

import "golang.org/x/sys/unix"

var posixClocks = []posixClock{
	{id: unix.CLOCK_MONOTONIC_RAW, name: "CLOCK_MONOTONIC_RAW", monotonic: true},
	{id: unix.CLOCK_MONOTONIC, name: "CLOCK_MONOTONIC", monotonic: true},
	{id: unix.CLOCK_REALTIME, name: "CLOCK_REALTIME"},
}

// Linux has no CLOCK_VIRTUAL.
var resolutionClocks = []posixClock{
	{id: unix.CLOCK_MONOTONIC, name: "CLOCK_MONOTONIC"},
	{id: unix.CLOCK_REALTIME, name: "CLOCK_REALTIME"},
}

func clockGetres(id int32, ts *unix.Timespec) error {
	return unix.ClockGetres(id, ts)
}
