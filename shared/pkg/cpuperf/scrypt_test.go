package cpuperf

import (
	"testing"

	"github.com/psantana5/kdfcal/pkg/precisetime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScryptWorkloadCountsSalsaCores(t *testing.T) {
	w := NewScryptWorkload()
	assert.Equal(t, uint64(512), w.OpsPerRun())
	assert.Equal(t, "scrypt(N=128,r=1,p=1)", w.String())

	require.NoError(t, w.Calibrate())
	require.NoError(t, w.Run())
}

func TestScryptWorkloadRejectsBadParameters(t *testing.T) {
	w := ScryptWorkload{CalibrateN: 16, N: 100, R: 1, P: 1}
	require.NoError(t, w.Calibrate())
	assert.Error(t, w.Run())
}

func TestEstimateScryptOnHostClock(t *testing.T) {
	if testing.Short() {
		t.Skip("spins on the host CPU")
	}

	clock, err := precisetime.Default()
	require.NoError(t, err)

	m, err := NewEstimator(clock, Config{Precision: 100}).Measure(NewScryptWorkload())
	require.NoError(t, err)

	assert.Greater(t, m.OpsPerSecond, 0.0)
	assert.Greater(t, m.Elapsed.Seconds(), 100*m.Resolution.Seconds())
	assert.GreaterOrEqual(t, m.MeasureCalls, 1)
	assert.GreaterOrEqual(t, m.TickCalls, 1)
}

func TestEstimateWithWorkFailure(t *testing.T) {
	_, err := Estimate(ScryptWorkload{CalibrateN: 3, N: 128, R: 1, P: 1})
	assert.ErrorIs(t, err, ErrWorkFailed)
}
