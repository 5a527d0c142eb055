package hostinfo

import (
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubProbes(t *testing.T) {
	t.Helper()
	origInfo, origCounts, origMem, origLimit := cpuInfo, cpuCounts, virtualMem, processLimit
	t.Cleanup(func() {
		cpuInfo, cpuCounts, virtualMem, processLimit = origInfo, origCounts, origMem, origLimit
	})
}

func TestDetectOnHost(t *testing.T) {
	info, err := Detect()
	require.NoError(t, err)

	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
	assert.Positive(t, info.CPUThreads)
	assert.Positive(t, info.MemoryTotal)
}

func TestDetectWithStubs(t *testing.T) {
	stubProbes(t)
	cpuInfo = func() ([]cpu.InfoStat, error) {
		return []cpu.InfoStat{{ModelName: "  Test CPU @ 3.00GHz "}}, nil
	}
	cpuCounts = func(bool) (int, error) { return 12, nil }
	virtualMem = func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 16 << 30, Available: 8 << 30}, nil
	}
	processLimit = func() (uint64, error) { return 4 << 30, nil }

	info, err := Detect()
	require.NoError(t, err)
	assert.Equal(t, "Test CPU @ 3.00GHz", info.CPUModel)
	assert.Equal(t, 12, info.CPUThreads)
	assert.Equal(t, uint64(16<<30), info.MemoryTotal)
	assert.Equal(t, uint64(4<<30), info.MemoryBudget())
}

func TestDetectProbeFailures(t *testing.T) {
	stubProbes(t)
	cpuInfo = func() ([]cpu.InfoStat, error) { return nil, errors.New("no cpuinfo") }
	cpuCounts = func(bool) (int, error) { return 0, errors.New("no counts") }
	virtualMem = func() (*mem.VirtualMemoryStat, error) { return nil, errors.New("no meminfo") }

	info, err := Detect()
	assert.Error(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Unknown", info.CPUModel)
	assert.Positive(t, info.CPUThreads)
}

func TestMemoryBudget(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want uint64
	}{
		{"no limit", Info{MemoryTotal: 8 << 30}, 8 << 30},
		{"limit below total", Info{MemoryTotal: 8 << 30, MemoryLimit: 1 << 30}, 1 << 30},
		{"limit above total", Info{MemoryTotal: 8 << 30, MemoryLimit: 64 << 30}, 8 << 30},
		{"unknown total", Info{MemoryLimit: 2 << 30}, 2 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.MemoryBudget())
		})
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(3<<19))
	assert.Equal(t, "16.0 GiB", FormatBytes(16<<30))
}
