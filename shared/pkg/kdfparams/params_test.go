package kdfparams

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mib = 1 << 20
	gib = 1 << 30
)

func TestMemoryLimit(t *testing.T) {
	tests := []struct {
		name   string
		total  uint64
		maxMem uint64
		frac   float64
		want   uint64
	}{
		{name: "eighth of 8GiB", total: 8 * gib, frac: 0.125, want: gib},
		{name: "zero fraction means half", total: 8 * gib, frac: 0, want: 4 * gib},
		{name: "fraction capped at half", total: 8 * gib, frac: 0.9, want: 4 * gib},
		{name: "max mem caps", total: 8 * gib, maxMem: 256 * mib, frac: 0.5, want: 256 * mib},
		{name: "floor at 1MiB", total: 1000, frac: 0.5, want: MinMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MemoryLimit(tt.total, tt.maxMem, tt.frac))
		})
	}
}

func TestPick(t *testing.T) {
	tests := []struct {
		name   string
		opps   float64
		limits Limits
		want   Params
	}{
		{
			name:   "cpu bound",
			opps:   1e6,
			limits: Limits{Memory: gib, MaxTime: time.Second},
			want:   Params{LogN: 14, R: 8, P: 1},
		},
		{
			name:   "memory bound",
			opps:   1e9,
			limits: Limits{Memory: 16 * mib, MaxTime: time.Second},
			want:   Params{LogN: 14, R: 8, P: 1907},
		},
		{
			name:   "slow machine gets the minimum work",
			opps:   1000,
			limits: Limits{Memory: gib, MaxTime: time.Second},
			want:   Params{LogN: 10, R: 8, P: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Pick(tt.opps, tt.limits)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickedParamsPassCheck(t *testing.T) {
	for _, opps := range []float64{5e4, 1e6, 8.3e6, 1e8, 3e9} {
		for _, mem := range []uint64{MinMemory, 64 * mib, 2 * gib} {
			for _, maxTime := range []time.Duration{100 * time.Millisecond, time.Second, 10 * time.Second} {
				limits := Limits{Memory: mem, MaxTime: maxTime}
				params, err := Pick(opps, limits)
				require.NoError(t, err)
				require.NoError(t, params.Validate())

				if opps*maxTime.Seconds() >= MinOps {
					assert.NoError(t, Check(params, opps, limits), "opps=%g mem=%d time=%s", opps, mem, maxTime)
				}
			}
		}
	}
}

func TestPickRejectsBadInput(t *testing.T) {
	limits := Limits{Memory: gib, MaxTime: time.Second}

	for _, opps := range []float64{0, -1, math.Inf(1), math.NaN()} {
		_, err := Pick(opps, limits)
		assert.ErrorIs(t, err, ErrInvalidThroughput, "opps=%g", opps)
	}

	_, err := Pick(1e6, Limits{Memory: gib})
	assert.ErrorIs(t, err, ErrInvalidLimits)

	_, err = Pick(1e6, Limits{Memory: 1024, MaxTime: time.Second})
	assert.ErrorIs(t, err, ErrInvalidLimits)
}

func TestCheck(t *testing.T) {
	limits := Limits{Memory: 64 * mib, MaxTime: time.Second}

	// 128·8·2^16 = 64MiB exactly
	assert.NoError(t, Check(Params{LogN: 16, R: 8, P: 1}, 1e7, limits))

	err := Check(Params{LogN: 17, R: 8, P: 1}, 1e9, limits)
	assert.ErrorIs(t, err, ErrTooMuchMemory)

	// 4·2^16·8·4 ≈ 8.4M cores at 1M/s is 8s
	err = Check(Params{LogN: 16, R: 8, P: 4}, 1e6, limits)
	assert.ErrorIs(t, err, ErrTooSlow)

	err = Check(Params{LogN: 0, R: 8, P: 1}, 1e6, limits)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestParamsCost(t *testing.T) {
	p := Params{LogN: 14, R: 8, P: 1}
	assert.Equal(t, uint64(16384), p.N())
	assert.Equal(t, uint64(16*mib), p.Memory())
	assert.Equal(t, 524288.0, p.Ops())
	assert.Equal(t, 524288*time.Microsecond, p.Time(1e6))
	assert.Equal(t, "N=16384 r=8 p=1", p.String())
}
