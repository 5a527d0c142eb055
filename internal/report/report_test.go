package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"github.com/psantana5/kdfcal/pkg/kdfparams"
	"github.com/psantana5/kdfcal/pkg/logging"
	"github.com/psantana5/kdfcal/pkg/precisetime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func okResult() *Result {
	return NewResult("scrypt", start, start.Add(1500*time.Millisecond), 1,
		&cpuperf.Measurement{OpsPerSecond: 4e6, Elapsed: 1.0, Resolution: 1e-9}, nil)
}

func TestNewResultSuccess(t *testing.T) {
	r := okResult()

	assert.Len(t, r.ID, 36)
	assert.Equal(t, "ok", r.Outcome)
	assert.Equal(t, 1.5, r.TookSeconds)
	assert.True(t, r.OK())
	assert.Empty(t, r.Error)
}

func TestNewResultFailureDropsMeasurement(t *testing.T) {
	err := &cpuperf.EstimateError{Phase: cpuperf.PhaseMeasure, Err: cpuperf.ErrDegenerateMeasurement}
	r := NewResult("scrypt", start, start, 3, &cpuperf.Measurement{OpsPerSecond: 1}, err)

	assert.False(t, r.OK())
	assert.Nil(t, r.Measurement)
	assert.Equal(t, "degenerate_measurement", r.Outcome)
	assert.Equal(t, err.Error(), r.Error)

	r.SetRecommendation(kdfparams.Params{LogN: 14, R: 8, P: 1}, kdfparams.Limits{}, 0.5)
	assert.Nil(t, r.Recommendation)
}

func TestSetRecommendation(t *testing.T) {
	r := okResult()
	params := kdfparams.Params{LogN: 14, R: 8, P: 1}
	r.SetRecommendation(params, kdfparams.Limits{Memory: 1 << 30, MaxTime: 5 * time.Second}, 0.125)

	require.NotNil(t, r.Recommendation)
	assert.Equal(t, uint64(16384), r.Recommendation.N)
	assert.Equal(t, uint64(16<<20), r.Recommendation.MemoryBytes)
	assert.InDelta(t, 524288.0/4e6, r.Recommendation.PredictedTime, 1e-9)
	assert.Equal(t, 5.0, r.Recommendation.MaxTime)
}

func TestLogSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.INFO, false)

	r := okResult()
	r.SetClock(precisetime.Info{Source: "CLOCK_MONOTONIC_RAW"})
	r.LogSummary(logger)
	assert.Contains(t, buf.String(), "calibration complete")
	assert.Contains(t, buf.String(), "clock=CLOCK_MONOTONIC_RAW")

	buf.Reset()
	NewResult("scrypt", start, start, 1, nil, errors.New("boom")).LogSummary(logger)
	assert.Contains(t, buf.String(), "calibration failed")
	assert.Contains(t, buf.String(), "outcome=error")
}

func TestHistory(t *testing.T) {
	h := NewHistory(2)
	assert.Nil(t, h.Latest())

	first := okResult()
	second := okResult()
	failed := NewResult("scrypt", start, start, 1, nil, cpuperf.ErrWorkFailed)

	h.Record(first)
	h.Record(second)
	h.Record(failed)

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []*Result{failed, second}, h.Recent(0))
	assert.Equal(t, []*Result{failed}, h.Recent(1))
	assert.Same(t, second, h.Latest())
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "kdfcal_throughput_ops_per_second", Help: "test"})
	g.Set(1234)
	reg.MustRegister(g)

	path := filepath.Join(t.TempDir(), "kdfcal.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE kdfcal_throughput_ops_per_second gauge")
	assert.Contains(t, string(data), "kdfcal_throughput_ops_per_second 1234")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteTextfileMissingDir(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "kdfcal.prom"), prometheus.NewRegistry())
	assert.Error(t, err)
}
