//go:build linux || freebsd || darwin

package precisetime

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// gettimeofday is the coarse wall clock fallback on unix hosts.
type gettimeofday struct{}

func (gettimeofday) Name() string    { return "gettimeofday" }
func (gettimeofday) Kind() Kind      { return KindCoarse }
func (gettimeofday) Monotonic() bool { return false }

func (gettimeofday) ReadNanos() (int64, error) {
	var tv unix.Timeval
	if err := unix.Gettimeofday(&tv); err != nil {
		return 0, fmt.Errorf("gettimeofday: %w", err)
	}
	return tv.Nano(), nil
}
