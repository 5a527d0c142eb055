// Package hostinfo collects the host facts a calibration report needs: CPU
// model, thread count, memory and the process address-space limit.
package hostinfo

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Info describes the host a calibration ran on
type Info struct {
	Hostname        string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	OS              string `json:"os" yaml:"os"`
	Arch            string `json:"arch" yaml:"arch"`
	CPUModel        string `json:"cpu_model" yaml:"cpu_model"`
	CPUThreads      int    `json:"cpu_threads" yaml:"cpu_threads"`
	MemoryTotal     uint64 `json:"memory_total_bytes" yaml:"memory_total_bytes"`
	MemoryAvailable uint64 `json:"memory_available_bytes" yaml:"memory_available_bytes"`
	// MemoryLimit is the smallest of the process address-space and data
	// limits; zero means unlimited or unknown.
	MemoryLimit uint64 `json:"memory_limit_bytes,omitempty" yaml:"memory_limit_bytes,omitempty"`
}

// probes are swapped out in tests
var (
	cpuInfo      = cpu.Info
	cpuCounts    = cpu.Counts
	virtualMem   = mem.VirtualMemory
	processLimit = rlimit
)

// Detect gathers host information. Probe failures leave the field at its
// zero value; an error is returned only when memory cannot be read at all,
// since parameter selection depends on it.
func Detect() (*Info, error) {
	info := &Info{
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CPUModel:   "Unknown",
		CPUThreads: runtime.NumCPU(),
	}
	if name, err := os.Hostname(); err == nil {
		info.Hostname = name
	}

	if cpus, err := cpuInfo(); err == nil && len(cpus) > 0 {
		if model := strings.TrimSpace(cpus[0].ModelName); model != "" {
			info.CPUModel = model
		}
	}
	if threads, err := cpuCounts(true); err == nil && threads > 0 {
		info.CPUThreads = threads
	}

	vm, err := virtualMem()
	if err != nil {
		return info, fmt.Errorf("failed to read memory info: %w", err)
	}
	info.MemoryTotal = vm.Total
	info.MemoryAvailable = vm.Available

	if limit, err := processLimit(); err == nil {
		info.MemoryLimit = limit
	}

	return info, nil
}

// MemoryBudget returns the memory usable by one derivation before any
// fraction is applied: total RAM, reduced to the process limit if lower
func (i *Info) MemoryBudget() uint64 {
	budget := i.MemoryTotal
	if i.MemoryLimit > 0 && (budget == 0 || i.MemoryLimit < budget) {
		budget = i.MemoryLimit
	}
	return budget
}

// FormatBytes renders a byte count with a binary unit
func FormatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit && exp < 5; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
