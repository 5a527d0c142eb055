package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/psantana5/kdfcal/internal/hostinfo"
	"github.com/psantana5/kdfcal/internal/report"
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"github.com/psantana5/kdfcal/pkg/kdfparams"
	"github.com/psantana5/kdfcal/pkg/precisetime"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *report.Result {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := report.NewResult("scrypt(N=128,r=1,p=1)", start, start.Add(2*time.Second), 1,
		&cpuperf.Measurement{
			OpsPerSecond: 8e6,
			Operations:   8_000_512,
			Elapsed:      1.000064,
			Resolution:   1e-9,
			Precision:    1000,
			MeasureCalls: 15626,
		}, nil)
	res.SetClock(precisetime.Info{Source: "CLOCK_MONOTONIC_RAW", Kind: "posix", Monotonic: true, ResolutionSeconds: 1e-9})
	res.SetHost(&hostinfo.Info{OS: "linux", Arch: "amd64", CPUModel: "Test CPU", CPUThreads: 8, MemoryTotal: 16 << 30})
	res.SetRecommendation(kdfparams.Params{LogN: 20, R: 8, P: 1},
		kdfparams.Limits{Memory: 2 << 30, MaxTime: 5 * time.Second}, 0.125)
	return res
}

func TestEncodeFormats(t *testing.T) {
	info := precisetime.Info{Source: "CLOCK_MONOTONIC_RAW", Kind: "posix", Monotonic: true, ResolutionSeconds: 1e-9}

	var buf bytes.Buffer
	require.NoError(t, encode(&buf, "json", info))
	var fromJSON precisetime.Info
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, info, fromJSON)

	buf.Reset()
	require.NoError(t, encode(&buf, "yaml", info))
	assert.Contains(t, buf.String(), "source: CLOCK_MONOTONIC_RAW")

	assert.Error(t, encode(&buf, "xml", info))
}

func TestPrintClockTable(t *testing.T) {
	var buf bytes.Buffer
	err := printClock(&buf, precisetime.Info{
		Source:              "GetSystemTimeAsFileTime",
		Kind:                "coarse",
		ResolutionSeconds:   1e-3,
		ResolutionEstimated: true,
	}, "text")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "GetSystemTimeAsFileTime")
	assert.Contains(t, out, "(estimated)")
	assert.Contains(t, out, "false")
}

func TestPrintEstimate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printEstimate(&buf, sampleResult(), "table"))

	out := buf.String()
	assert.Contains(t, out, "8.000 M ops/s")
	assert.Contains(t, out, "CLOCK_MONOTONIC_RAW")
	assert.Contains(t, out, "15626 calls")
}

func TestPrintRecommendationBash(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecommendation(&buf, sampleResult(), "bash"))

	out := buf.String()
	assert.Contains(t, out, "export SCRYPT_LOGN=20\n")
	assert.Contains(t, out, "export SCRYPT_N=1048576\n")
	assert.Contains(t, out, "export SCRYPT_R=8\n")
	assert.Contains(t, out, "export SCRYPT_P=1\n")
	assert.Contains(t, out, "1.0 GiB per derivation")
}

func TestPrintRecommendationText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecommendation(&buf, sampleResult(), "text"))

	out := buf.String()
	assert.Contains(t, out, "CPU: Test CPU (8 threads)")
	assert.Contains(t, out, "Time: 5s")
	assert.Contains(t, out, "Memory: 2.0 GiB")
	assert.Contains(t, out, "N: 1048576 (log2 20)")
}

func TestPrintRecommendationYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecommendation(&buf, sampleResult(), "yaml"))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	rec, ok := decoded["recommendation"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1048576, rec["n"])
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "512.000 ops/s", formatRate(512))
	assert.Equal(t, "2.500 k ops/s", formatRate(2500))
	assert.Equal(t, "1.250 G ops/s", formatRate(1.25e9))
}

func TestOutputFormatValidation(t *testing.T) {
	t.Cleanup(func() { viper.Set("output", "text") })

	viper.Set("output", "JSON")
	format, err := outputFormat(tableFormats...)
	require.NoError(t, err)
	assert.Equal(t, "json", format)

	viper.Set("output", "bash")
	_, err = outputFormat(tableFormats...)
	assert.ErrorContains(t, err, `unsupported output format "bash"`)

	format, err = outputFormat(append(tableFormats, "bash")...)
	require.NoError(t, err)
	assert.Equal(t, "bash", format)

	viper.Set("output", "xml")
	_, err = outputFormat(append(tableFormats, "bash")...)
	assert.Error(t, err)
}
