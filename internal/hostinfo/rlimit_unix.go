//go:build linux || darwin || freebsd

package hostinfo

import (
	"errors"

	"golang.org/x/sys/unix"
)

// RLIM_INFINITY differs between platforms; anything this large is unlimited
const unlimited = 1 << 62

// rlimit returns the tightest finite soft limit among RLIMIT_AS and
// RLIMIT_DATA, or 0 when both are unlimited
func rlimit() (uint64, error) {
	var (
		limit uint64
		errs  []error
	)
	for _, resource := range []int{unix.RLIMIT_AS, unix.RLIMIT_DATA} {
		var rl unix.Rlimit
		if err := unix.Getrlimit(resource, &rl); err != nil {
			errs = append(errs, err)
			continue
		}
		cur := uint64(rl.Cur)
		if cur >= unlimited {
			continue
		}
		if limit == 0 || cur < limit {
			limit = cur
		}
	}
	if len(errs) == 2 {
		return 0, errors.Join(errs...)
	}
	return limit, nil
}
