package tlbsim

import "github.com/vmlab-project/vmlab/vm"

// An EntryStatus describes one slot for display, vpn and pfn rendered as
// lowercase 0x-hex for valid slots and empty otherwise.
type EntryStatus struct {
	Index          int    `json:"index"`
	VPN            string `json:"vpn,omitempty"`
	PFN            string `json:"pfn,omitempty"`
	Valid          bool   `json:"valid"`
	LastAccessTick uint64 `json:"last_access_tick"`
}

// A Status is a plain-data snapshot of the simulator.
type Status struct {
	Name    string             `json:"name"`
	Size    int                `json:"size"`
	Policy  string             `json:"policy"`
	Hits    uint64             `json:"hits"`
	Misses  uint64             `json:"misses"`
	HitRate float64            `json:"hit_rate"`
	Entries []EntryStatus      `json:"entries"`
	History []vm.DisplayRecord `json:"history"`
}

// Status snapshots the simulator. It mutates nothing; two consecutive calls
// with no intervening operation return identical snapshots.
func (s *Simulator) Status() Status {
	s.Lock()
	defer s.Unlock()

	st := Status{
		Name:    s.name,
		Size:    s.size,
		Policy:  s.policy.String(),
		Hits:    s.hits,
		Misses:  s.misses,
		HitRate: vm.HitRate(s.hits, s.misses),
		Entries: make([]EntryStatus, s.size),
		History: vm.Display(s.history.Last(0)),
	}

	for i, e := range s.entries {
		es := EntryStatus{
			Index:          i,
			Valid:          e.Valid,
			LastAccessTick: e.LastAccessTick,
		}
		if e.Valid {
			es.VPN = vm.FormatHex(e.VPN)
			es.PFN = vm.FormatHex(e.PFN)
		}

		st.Entries[i] = es
	}

	return st
}
