package procinfo

import (
	"fmt"

	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"

	"github.com/vmlab-project/vmlab/vm"
)

// A SystemMemoryInfo aggregates system-wide memory and swap figures.
type SystemMemoryInfo struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
	Cached      uint64  `json:"cached"`
	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
	SwapFree    uint64  `json:"swap_free"`
	PageSize    int     `json:"page_size"`
}

// SystemMemory reports system-wide memory and swap usage.
func SystemMemory() (SystemMemoryInfo, error) {
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return SystemMemoryInfo{}, fmt.Errorf("read system memory: %w", err)
	}

	info := SystemMemoryInfo{
		Total:       vmem.Total,
		Available:   vmem.Available,
		Used:        vmem.Used,
		Free:        vmem.Free,
		UsedPercent: vmem.UsedPercent,
		Cached:      vmem.Cached,
		PageSize:    vm.PageSize,
	}

	if swap, err := mem.SwapMemory(); err == nil && swap != nil {
		info.SwapTotal = swap.Total
		info.SwapUsed = swap.Used
		info.SwapFree = swap.Free
	}

	return info, nil
}

// A MemoryStats breaks down one process's memory use.
type MemoryStats struct {
	RSS         uint64 `json:"rss"`
	VMS         uint64 `json:"vms"`
	Data        uint64 `json:"data"`
	Stack       uint64 `json:"stack"`
	Locked      uint64 `json:"locked"`
	Swap        uint64 `json:"swap"`
	MinorFaults uint64 `json:"minor_faults"`
	MajorFaults uint64 `json:"major_faults"`
}

// ProcessMemoryStats reports the memory breakdown for one process.
func ProcessMemoryStats(pid int32) (MemoryStats, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return MemoryStats{}, fmt.Errorf("process %d: %w", pid, err)
	}

	m, err := p.MemoryInfo()
	if err != nil {
		return MemoryStats{}, fmt.Errorf("memory info for pid %d: %w", pid, err)
	}

	stats := MemoryStats{
		RSS:    m.RSS,
		VMS:    m.VMS,
		Data:   m.Data,
		Stack:  m.Stack,
		Locked: m.Locked,
		Swap:   m.Swap,
	}

	if faults, err := p.PageFaults(); err == nil && faults != nil {
		stats.MinorFaults = faults.MinorFaults
		stats.MajorFaults = faults.MajorFaults
	}

	return stats, nil
}
