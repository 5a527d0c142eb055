package calibrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/psantana5/kdfcal/internal/hostinfo"
	"github.com/psantana5/kdfcal/internal/report"
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"github.com/psantana5/kdfcal/pkg/kdfparams"
	"github.com/psantana5/kdfcal/pkg/metrics"
	"github.com/psantana5/kdfcal/pkg/precisetime"
	"github.com/psantana5/kdfcal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances one microsecond per read. The first failReads reads
// fail.
type stepClock struct {
	ns        int64
	failReads int
}

func (c *stepClock) Now() (precisetime.Timestamp, error) {
	if c.failReads > 0 {
		c.failReads--
		return 0, precisetime.ErrClockReadFailed
	}
	c.ns += 1000
	return precisetime.Timestamp(float64(c.ns) / 1e9), nil
}

func (c *stepClock) Resolution() (precisetime.Duration, error) {
	return 1e-6, nil
}

func (c *stepClock) ElapsedSince(prev precisetime.Timestamp) (precisetime.Duration, error) {
	now, err := c.Now()
	if err != nil {
		return 0, err
	}
	return precisetime.Diff(prev, now)
}

func testRunner(clock cpuperf.Clock, run func() error) *Runner {
	return &Runner{
		Clock:     clock,
		ClockInfo: precisetime.Info{Source: "step", Kind: "native", Monotonic: true, ResolutionSeconds: 1e-6},
		Workload: cpuperf.FuncWorkload{
			RunFunc: run,
			Ops:     512,
		},
		Name: "test",
		Config: Config{
			Precision: 10,
			Retry: retry.Config{
				MaxRetries:     2,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     time.Millisecond,
				Multiplier:     1,
			},
		},
	}
}

func TestRunSucceeds(t *testing.T) {
	r := testRunner(&stepClock{}, func() error { return nil })
	r.Metrics = metrics.NewCollector(r.Name)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	require.True(t, res.OK())
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "ok", res.Outcome)
	assert.Equal(t, "step", res.Clock.Source)
	assert.Positive(t, res.Measurement.OpsPerSecond)
	assert.Greater(t, res.Measurement.Elapsed.Seconds(), 10e-6)

	series, err := testutil.GatherAndCount(r.Metrics.Registry(), "kdfcal_estimations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestRunRetriesTransientClockFailures(t *testing.T) {
	r := testRunner(&stepClock{failReads: 1}, func() error { return nil })

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
}

func TestRunDoesNotRetryWorkFailures(t *testing.T) {
	boom := errors.New("boom")
	r := testRunner(&stepClock{}, func() error { return boom })

	res, err := r.Run(context.Background())
	assert.ErrorIs(t, err, cpuperf.ErrWorkFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "work_failed", res.Outcome)
	assert.False(t, res.OK())
}

func TestRunGivesUpOnPersistentClockFailure(t *testing.T) {
	r := testRunner(&stepClock{failReads: 1 << 30}, func() error { return nil })

	res, err := r.Run(context.Background())
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, cpuperf.ErrClockReadFailed)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "clock_read_failed", res.Outcome)
}

func TestRecommend(t *testing.T) {
	res := report.NewResult("test", time.Now(), time.Now(), 1,
		&cpuperf.Measurement{OpsPerSecond: 1e9}, nil)
	host := &hostinfo.Info{MemoryTotal: 128 << 20}

	params, err := Recommend(res, host, Budget{MaxTime: time.Second, MaxMemFrac: 0.125})
	require.NoError(t, err)

	// 16 MiB of memory forces the memory-bound branch
	assert.Equal(t, kdfparams.Params{LogN: 14, R: 8, P: 1907}, params)
	require.NotNil(t, res.Recommendation)
	assert.Equal(t, uint64(16<<20), res.Recommendation.MemoryLimit)
	assert.Same(t, host, res.Host)
}

func TestRecommendDefaultBudget(t *testing.T) {
	res := report.NewResult("test", time.Now(), time.Now(), 1,
		&cpuperf.Measurement{OpsPerSecond: 1e8}, nil)
	host := &hostinfo.Info{MemoryTotal: 16 << 30}

	params, err := Recommend(res, host, DefaultBudget())
	require.NoError(t, err)

	// 4 MiB caps N·r at 32768 and 80ms leaves room for p above 1
	assert.Equal(t, uint64(DefaultMaxMem), res.Recommendation.MemoryLimit)
	assert.LessOrEqual(t, params.Memory(), uint64(DefaultMaxMem))
	assert.LessOrEqual(t, params.Time(1e8), DefaultMaxTime)
	assert.NoError(t, kdfparams.Check(params, 1e8, kdfparams.Limits{Memory: DefaultMaxMem, MaxTime: DefaultMaxTime}))
}

func TestRecommendNeedsHostMemory(t *testing.T) {
	res := report.NewResult("test", time.Now(), time.Now(), 1,
		&cpuperf.Measurement{OpsPerSecond: 1e8}, nil)

	_, err := Recommend(res, &hostinfo.Info{CPUThreads: 8}, DefaultBudget())
	assert.ErrorIs(t, err, ErrUnknownMemory)

	_, err = Recommend(res, nil, DefaultBudget())
	assert.ErrorIs(t, err, ErrUnknownMemory)
	assert.Nil(t, res.Recommendation)
}

func TestRecommendNeedsMeasurement(t *testing.T) {
	res := report.NewResult("test", time.Now(), time.Now(), 1, nil, cpuperf.ErrWorkFailed)

	_, err := Recommend(res, &hostinfo.Info{}, DefaultBudget())
	assert.ErrorIs(t, err, ErrNoMeasurement)
}

func TestRecommendRejectsBadBudget(t *testing.T) {
	res := report.NewResult("test", time.Now(), time.Now(), 1,
		&cpuperf.Measurement{OpsPerSecond: 1e6}, nil)

	_, err := Recommend(res, &hostinfo.Info{MemoryTotal: 1 << 30}, Budget{})
	assert.ErrorIs(t, err, kdfparams.ErrInvalidLimits)
}
