package pagingsim

import "github.com/vmlab-project/vmlab/vm"

// statusHistoryLimit truncates the rendered history; the ring itself keeps
// vm.HistoryLimit records.
const statusHistoryLimit = 20

// A FrameStatus describes one frame for display, vpn rendered as lowercase
// 0x-hex for occupied frames and empty otherwise.
type FrameStatus struct {
	Index          int    `json:"index"`
	VPN            string `json:"vpn,omitempty"`
	LoadedAtTick   uint64 `json:"loaded_at_tick"`
	LastAccessTick uint64 `json:"last_access_tick"`
	Occupied       bool   `json:"occupied"`
}

// A Status is a plain-data snapshot of the simulator.
type Status struct {
	Name       string             `json:"name"`
	NumFrames  int                `json:"num_frames"`
	Policy     string             `json:"policy"`
	Frames     []FrameStatus      `json:"frames"`
	PageFaults uint64             `json:"page_faults"`
	PageHits   uint64             `json:"page_hits"`
	HitRate    float64            `json:"hit_rate"`
	DiskReads  uint64             `json:"disk_reads"`
	History    []vm.DisplayRecord `json:"history"`
}

// Status snapshots the simulator. It mutates nothing; two consecutive calls
// with no intervening operation return identical snapshots.
func (s *Simulator) Status() Status {
	s.Lock()
	defer s.Unlock()

	st := Status{
		Name:       s.name,
		NumFrames:  s.numFrames,
		Policy:     s.policy.String(),
		Frames:     make([]FrameStatus, s.numFrames),
		PageFaults: s.pageFaults,
		PageHits:   s.pageHits,
		HitRate:    vm.HitRate(s.pageHits, s.pageFaults),
		DiskReads:  s.diskReads,
		History:    vm.Display(s.history.Last(statusHistoryLimit)),
	}

	for i, f := range s.frames {
		fs := FrameStatus{
			Index:          i,
			LoadedAtTick:   f.LoadedAtTick,
			LastAccessTick: f.LastAccessTick,
			Occupied:       f.Occupied,
		}
		if f.Occupied {
			fs.VPN = vm.FormatHex(f.VPN)
		}

		st.Frames[i] = fs
	}

	return st
}
