package cpuperf

// Workload is an opaque, deterministic unit of CPU work with a fixed cost
// per call. The estimator never looks inside it.
type Workload interface {
	// Calibrate runs the cheapest invocation available. It is used to spin
	// while waiting for the clock to tick.
	Calibrate() error
	// Run runs one measured invocation.
	Run() error
	// OpsPerRun is the number of primitive operations one Run performs.
	OpsPerRun() uint64
}

// FuncWorkload adapts plain functions to Workload
type FuncWorkload struct {
	CalibrateFunc func() error
	RunFunc       func() error
	Ops           uint64
}

func (w FuncWorkload) Calibrate() error {
	if w.CalibrateFunc == nil {
		return w.RunFunc()
	}
	return w.CalibrateFunc()
}

func (w FuncWorkload) Run() error { return w.RunFunc() }

func (w FuncWorkload) OpsPerRun() uint64 {
	if w.Ops == 0 {
		return 1
	}
	return w.Ops
}

// WorkFunc uses fn for both phases and counts one operation per call.
func WorkFunc(fn func() error) Workload {
	return FuncWorkload{RunFunc: fn, Ops: 1}
}
