package calibrate

import (
	"errors"
	"fmt"
	"time"

	"github.com/psantana5/kdfcal/internal/hostinfo"
	"github.com/psantana5/kdfcal/internal/report"
	"github.com/psantana5/kdfcal/pkg/kdfparams"
)

var (
	// ErrNoMeasurement is returned when asked to recommend from a failed run
	ErrNoMeasurement = errors.New("result has no measurement")

	// ErrUnknownMemory is returned when the host memory size is not known
	ErrUnknownMemory = errors.New("host memory size unknown")
)

// Budget is what a caller is willing to spend on one derivation
type Budget struct {
	MaxTime    time.Duration
	MaxMem     uint64  // absolute cap in bytes, 0 for none
	MaxMemFrac float64 // fraction of host memory
}

const (
	DefaultMaxTime    = 80 * time.Millisecond
	DefaultMaxMem     = 4 << 20
	DefaultMaxMemFrac = 0.2
)

// DefaultBudget is sized for a derivation on a login or unlock path
func DefaultBudget() Budget {
	return Budget{
		MaxTime:    DefaultMaxTime,
		MaxMem:     DefaultMaxMem,
		MaxMemFrac: DefaultMaxMemFrac,
	}
}

// Recommend picks scrypt parameters for the host res was measured on and
// attaches them, along with host, to res
func Recommend(res *report.Result, host *hostinfo.Info, budget Budget) (kdfparams.Params, error) {
	if res == nil || !res.OK() {
		return kdfparams.Params{}, ErrNoMeasurement
	}
	if host == nil || host.MemoryBudget() == 0 {
		return kdfparams.Params{}, ErrUnknownMemory
	}
	opps := res.Measurement.OpsPerSecond

	limits := kdfparams.Limits{
		Memory:  kdfparams.MemoryLimit(host.MemoryBudget(), budget.MaxMem, budget.MaxMemFrac),
		MaxTime: budget.MaxTime,
	}

	params, err := kdfparams.Pick(opps, limits)
	if err != nil {
		return kdfparams.Params{}, fmt.Errorf("failed to pick parameters: %w", err)
	}
	if err := kdfparams.Check(params, opps, limits); err != nil {
		return kdfparams.Params{}, fmt.Errorf("picked parameters %s do not fit: %w", params, err)
	}

	res.SetHost(host)
	res.SetRecommendation(params, limits, budget.MaxMemFrac)
	return params, nil
}
