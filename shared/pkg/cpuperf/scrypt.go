package cpuperf

import (
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// ScryptWorkload drives scrypt with small, fixed parameters. The primitive
// being counted is the salsa20/8 core: one scrypt call runs 2·N BlockMix
// rounds of 2·r cores each, for every one of p lanes.
type ScryptWorkload struct {
	CalibrateN int
	N          int
	R          int
	P          int
}

// NewScryptWorkload returns the reference workload: N=16 while waiting for a
// tick, N=128 r=1 p=1 (512 salsa20/8 cores) per measured call.
func NewScryptWorkload() ScryptWorkload {
	return ScryptWorkload{CalibrateN: 16, N: 128, R: 1, P: 1}
}

func (w ScryptWorkload) Calibrate() error {
	return w.derive(w.CalibrateN)
}

func (w ScryptWorkload) Run() error {
	return w.derive(w.N)
}

// OpsPerRun returns 4·N·r·p, the salsa20/8 core count of one Run.
func (w ScryptWorkload) OpsPerRun() uint64 {
	return 4 * uint64(w.N) * uint64(w.R) * uint64(w.P)
}

func (w ScryptWorkload) String() string {
	return fmt.Sprintf("scrypt(N=%d,r=%d,p=%d)", w.N, w.R, w.P)
}

func (w ScryptWorkload) derive(n int) error {
	if _, err := scrypt.Key(nil, nil, n, w.R, w.P, 32); err != nil {
		return fmt.Errorf("scrypt N=%d r=%d p=%d: %w", n, w.R, w.P, err)
	}
	return nil
}
