package precisetime

import "time"

// Kind tags the family a Source belongs to
type Kind int

const (
	KindCoarse Kind = iota // seconds+microseconds wall clock
	KindPOSIX              // clock_gettime with a specific clock id
	KindNative             // OS specific precise counter
)

func (k Kind) String() string {
	switch k {
	case KindCoarse:
		return "coarse"
	case KindPOSIX:
		return "posix"
	case KindNative:
		return "native"
	default:
		return "unknown"
	}
}

// Source is a single readable time source. ReadNanos returns nanoseconds
// since a source specific epoch.
type Source interface {
	Name() string
	Kind() Kind
	Monotonic() bool
	ReadNanos() (int64, error)
}

// processStart anchors the runtime monotonic source.
var processStart = time.Now()

// runtimeMonotonic reads the monotonic clock the Go runtime keeps alongside
// every time.Time. On darwin this is mach_absolute_time.
type runtimeMonotonic struct {
	name string
}

func (s runtimeMonotonic) Name() string    { return s.name }
func (s runtimeMonotonic) Kind() Kind      { return KindNative }
func (s runtimeMonotonic) Monotonic() bool { return true }

func (s runtimeMonotonic) ReadNanos() (int64, error) {
	return int64(time.Since(processStart)), nil
}

// wallMicros is the last resort: wall clock truncated to microseconds.
// It jumps with system clock adjustments.
type wallMicros struct{}

func (wallMicros) Name() string    { return "time.Now" }
func (wallMicros) Kind() Kind      { return KindCoarse }
func (wallMicros) Monotonic() bool { return false }

func (wallMicros) ReadNanos() (int64, error) {
	return time.Now().UnixMicro() * int64(time.Microsecond), nil
}
