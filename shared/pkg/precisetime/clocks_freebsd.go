package precisetime

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

var posixClocks = []posixClock{
	{id: unix.CLOCK_MONOTONIC_PRECISE, name: "CLOCK_MONOTONIC_PRECISE", monotonic: true},
	{id: unix.CLOCK_MONOTONIC, name: "CLOCK_MONOTONIC", monotonic: true},
	{id: unix.CLOCK_REALTIME, name: "CLOCK_REALTIME"},
}

var resolutionClocks = []posixClock{
	{id: unix.CLOCK_VIRTUAL, name: "CLOCK_VIRTUAL"},
	{id: unix.CLOCK_MONOTONIC, name: "CLOCK_MONOTONIC"},
	{id: unix.CLOCK_REALTIME, name: "CLOCK_REALTIME"},
}

// x/sys/unix only wraps clock_getres(2) on linux.
func clockGetres(id int32, ts *unix.Timespec) error {
	_, _, errno := unix.Syscall(unix.SYS_CLOCK_GETRES, uintptr(id), uintptr(unsafe.Pointer(ts)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
