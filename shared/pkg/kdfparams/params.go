// Package kdfparams turns a salsa20/8 throughput estimate into scrypt cost
// parameters that fit a time and memory budget.
package kdfparams

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// MinMemory is the smallest memory budget ever handed to scrypt.
	MinMemory = 1 << 20

	// MinOps is the minimum number of salsa20/8 cores a derivation may use,
	// however fast or slow the machine.
	MinOps = 1 << 15

	// DefaultMaxMemFrac is the fraction of memory used when none is given.
	DefaultMaxMemFrac = 0.5

	// blockSize is the memory per unit of r·N in scrypt's V array.
	blockSize = 128

	maxRP = 0x3fffffff
)

var (
	ErrInvalidThroughput = errors.New("throughput must be positive and finite")
	ErrInvalidLimits     = errors.New("invalid limits")
	ErrInvalidParams     = errors.New("invalid scrypt parameters")
	ErrTooMuchMemory     = errors.New("parameters need more memory than allowed")
	ErrTooSlow           = errors.New("parameters need more time than allowed")
)

// Limits bounds a derivation
type Limits struct {
	Memory  uint64        // bytes scrypt may use, see MemoryLimit
	MaxTime time.Duration // CPU time one derivation may take
}

// Params are scrypt cost parameters
type Params struct {
	LogN uint8  `json:"log_n" yaml:"log_n"`
	R    uint32 `json:"r" yaml:"r"`
	P    uint32 `json:"p" yaml:"p"`
}

// N returns 2^LogN
func (p Params) N() uint64 {
	return uint64(1) << p.LogN
}

// Memory returns the bytes scrypt allocates for these parameters
func (p Params) Memory() uint64 {
	return blockSize * uint64(p.R) * p.N()
}

// Ops returns the salsa20/8 cores one derivation runs
func (p Params) Ops() float64 {
	return 4 * float64(p.N()) * float64(p.R) * float64(p.P)
}

// Time predicts how long one derivation takes at opsPerSecond
func (p Params) Time(opsPerSecond float64) time.Duration {
	if opsPerSecond <= 0 {
		return 0
	}
	return time.Duration(p.Ops() * float64(time.Second) / opsPerSecond)
}

// Validate checks the constraints golang.org/x/crypto/scrypt enforces
func (p Params) Validate() error {
	switch {
	case p.LogN < 1 || p.LogN > 62:
		return fmt.Errorf("%w: log N %d out of range", ErrInvalidParams, p.LogN)
	case p.R == 0 || p.P == 0:
		return fmt.Errorf("%w: r and p must be positive", ErrInvalidParams)
	case uint64(p.R)*uint64(p.P) >= 1<<30:
		return fmt.Errorf("%w: r·p must be below 2^30", ErrInvalidParams)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("N=%d r=%d p=%d", p.N(), p.R, p.P)
}

// MemoryLimit derives the memory budget from the host's usable memory. A
// fraction of 0 or above one half is treated as one half; maxMem caps the
// result when non-zero; the result is never below MinMemory.
func MemoryLimit(total, maxMem uint64, maxMemFrac float64) uint64 {
	if maxMemFrac <= 0 || maxMemFrac > DefaultMaxMemFrac {
		maxMemFrac = DefaultMaxMemFrac
	}
	avail := uint64(maxMemFrac * float64(total))
	if maxMem > 0 && avail > maxMem {
		avail = maxMem
	}
	if avail < MinMemory {
		avail = MinMemory
	}
	return avail
}

// Pick chooses parameters for a machine doing opsPerSecond salsa20/8 cores.
// r is fixed at 8. When the CPU budget is the tighter constraint, p is 1 and
// N is sized by time; otherwise N is sized by memory and p soaks up the
// remaining time.
func Pick(opsPerSecond float64, limits Limits) (Params, error) {
	opslimit, memlimit, err := budgets(opsPerSecond, limits)
	if err != nil {
		return Params{}, err
	}

	params := Params{R: 8}
	r := float64(params.R)

	if opslimit < memlimit/32 {
		params.P = 1
		params.LogN = fitLogN(opslimit / (r * 4))
		return params, nil
	}

	params.LogN = fitLogN(memlimit / (r * blockSize))
	maxrp := (opslimit / 4) / float64(params.N())
	if maxrp > maxRP {
		maxrp = maxRP
	}
	params.P = uint32(maxrp) / params.R
	if params.P == 0 {
		params.P = 1
	}
	return params, nil
}

// Check reports whether params fit the limits on a machine doing
// opsPerSecond salsa20/8 cores.
func Check(params Params, opsPerSecond float64, limits Limits) error {
	if err := params.Validate(); err != nil {
		return err
	}
	opslimit, memlimit, err := budgets(opsPerSecond, limits)
	if err != nil {
		return err
	}
	if float64(params.Memory()) > memlimit {
		return fmt.Errorf("%w: %d bytes needed, %d allowed", ErrTooMuchMemory, params.Memory(), uint64(memlimit))
	}
	if params.Ops() > opslimit {
		return fmt.Errorf("%w: %s needed, %s allowed", ErrTooSlow,
			params.Time(opsPerSecond), limits.MaxTime)
	}
	return nil
}

func budgets(opsPerSecond float64, limits Limits) (opslimit, memlimit float64, err error) {
	if !(opsPerSecond > 0) || math.IsInf(opsPerSecond, 0) {
		return 0, 0, fmt.Errorf("%w: %g", ErrInvalidThroughput, opsPerSecond)
	}
	if limits.MaxTime <= 0 {
		return 0, 0, fmt.Errorf("%w: max time must be positive", ErrInvalidLimits)
	}
	if limits.Memory < MinMemory {
		return 0, 0, fmt.Errorf("%w: memory %d below %d", ErrInvalidLimits, limits.Memory, MinMemory)
	}

	opslimit = opsPerSecond * limits.MaxTime.Seconds()
	if opslimit < MinOps {
		opslimit = MinOps
	}
	return opslimit, float64(limits.Memory), nil
}

// fitLogN returns the smallest log N in [1, 63) with 2^logN > maxN/2.
func fitLogN(maxN float64) uint8 {
	logN := uint8(1)
	for ; logN < 63; logN++ {
		if float64(uint64(1)<<logN) > maxN/2 {
			break
		}
	}
	return logN
}
