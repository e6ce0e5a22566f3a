// Package procinfo inspects the memory state of real processes through
// /proc and gopsutil. It is a read-only collaborator: nothing here feeds
// back into the simulators.
package procinfo

import (
	"fmt"

	"github.com/shirou/gopsutil/process"
)

// A ProcessInfo summarizes one live process.
type ProcessInfo struct {
	PID   int32  `json:"pid"`
	Name  string `json:"name"`
	State string `json:"state"`
	User  string `json:"user"`
	RSS   uint64 `json:"rss"`
	VMS   uint64 `json:"vms"`
}

// A ProcessDetail adds scheduling and fault counters to a ProcessInfo.
type ProcessDetail struct {
	ProcessInfo
	Cmdline     string `json:"cmdline"`
	NumThreads  int32  `json:"num_threads"`
	MinorFaults uint64 `json:"minor_faults"`
	MajorFaults uint64 `json:"major_faults"`
}

// ListProcesses enumerates live processes. Processes that disappear during
// enumeration are skipped.
func ListProcesses() ([]ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}

		out = append(out, summarize(p, name))
	}

	return out, nil
}

// ProcessByPID describes one process.
func ProcessByPID(pid int32) (ProcessDetail, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return ProcessDetail{}, fmt.Errorf("process %d: %w", pid, err)
	}

	name, err := p.Name()
	if err != nil {
		return ProcessDetail{}, fmt.Errorf("process %d: %w", pid, err)
	}

	detail := ProcessDetail{ProcessInfo: summarize(p, name)}

	if cmdline, err := p.Cmdline(); err == nil {
		detail.Cmdline = cmdline
	}

	if threads, err := p.NumThreads(); err == nil {
		detail.NumThreads = threads
	}

	if faults, err := p.PageFaults(); err == nil && faults != nil {
		detail.MinorFaults = faults.MinorFaults
		detail.MajorFaults = faults.MajorFaults
	}

	return detail, nil
}

func summarize(p *process.Process, name string) ProcessInfo {
	info := ProcessInfo{PID: p.Pid, Name: name}

	if state, err := p.Status(); err == nil {
		info.State = state
	}

	if user, err := p.Username(); err == nil {
		info.User = user
	}

	if m, err := p.MemoryInfo(); err == nil && m != nil {
		info.RSS = m.RSS
		info.VMS = m.VMS
	}

	return info
}
