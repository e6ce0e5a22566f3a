package pagingsim

import (
	"sync"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/vm"
)

// A Frame is one physical frame.
type Frame struct {
	VPN            uint64
	LoadedAtTick   uint64
	LastAccessTick uint64
	ReferenceBit   bool
	Occupied       bool
}

// A Simulator models demand paging over a fixed frame pool. The page table
// maps each resident VPN to its frame index and stays bijective with the
// occupied frames: a fault deletes the victim's VPN from the table before
// the new mapping is installed, so no stale alias is ever observable.
// Exported operations serialize on the embedded mutex.
type Simulator struct {
	sync.Mutex

	name      string
	numFrames int
	policy    eviction.Policy
	frames    []Frame
	pageTable map[uint64]int
	finder    eviction.VictimFinder

	pageFaults uint64
	pageHits   uint64
	diskReads  uint64
	tick       uint64

	history *vm.History
	sink    vm.TraceSink
}

// frameSlots adapts the frame array to the view the victim finders scan.
type frameSlots []Frame

func (f frameSlots) Len() int {
	return len(f)
}

func (f frameSlots) LastAccessTick(i int) uint64 {
	return f[i].LastAccessTick
}

func (f frameSlots) InsertTick(i int) uint64 {
	return f[i].LoadedAtTick
}

func (f frameSlots) ReferenceBit(i int) bool {
	return f[i].ReferenceBit
}

func (f frameSlots) ClearReferenceBit(i int) {
	f[i].ReferenceBit = false
}

// An AccessResult reports one page access.
type AccessResult struct {
	VPN        uint64  `json:"vpn"`
	Hit        bool    `json:"hit"`
	PageFault  bool    `json:"page_fault"`
	FrameIndex int     `json:"frame_index"`
	EvictedVPN *uint64 `json:"evicted_vpn"`
}

// Name returns the name given at build time.
func (s *Simulator) Name() string {
	return s.name
}

// NumFrames returns the fixed frame count.
func (s *Simulator) NumFrames() int {
	return s.numFrames
}

// Policy returns the configured eviction policy.
func (s *Simulator) Policy() eviction.Policy {
	return s.policy
}

// Access touches vpn, faulting it in when absent. A fault takes the first
// free frame by forward scan or, with no frame free, the victim the policy
// selects. The logical clock advances exactly once whether the access hits
// or faults.
func (s *Simulator) Access(vpn uint64) AccessResult {
	s.Lock()
	defer s.Unlock()

	return s.access(vpn)
}

// Sequence applies Access to each vpn in order and collects one result per
// element. Running a sequence is observably identical to issuing the same
// accesses one call at a time.
func (s *Simulator) Sequence(vpns []uint64) []AccessResult {
	s.Lock()
	defer s.Unlock()

	out := make([]AccessResult, len(vpns))
	for i, vpn := range vpns {
		out[i] = s.access(vpn)
	}

	return out
}

// ResetStats zeroes the fault, hit, and disk-read counters and drops the
// history. Frames and the page table keep their contents; full clearing
// means building a new instance.
func (s *Simulator) ResetStats() {
	s.Lock()
	defer s.Unlock()

	s.pageFaults = 0
	s.pageHits = 0
	s.diskReads = 0
	s.history.Reset()
}

// PageTable returns a copy of the VPN to frame-index map.
func (s *Simulator) PageTable() map[uint64]int {
	s.Lock()
	defer s.Unlock()

	out := make(map[uint64]int, len(s.pageTable))
	for k, v := range s.pageTable {
		out[k] = v
	}

	return out
}

// access runs one page access. Callers hold the lock.
func (s *Simulator) access(vpn uint64) AccessResult {
	res := AccessResult{VPN: vpn}

	if i, ok := s.pageTable[vpn]; ok {
		s.pageHits++
		s.frames[i].LastAccessTick = s.tick
		s.frames[i].ReferenceBit = true
		res.Hit = true
		res.FrameIndex = i
	} else {
		s.pageFaults++
		s.diskReads++

		frame := s.freeFrame()
		if frame < 0 {
			frame = s.finder.FindVictim(frameSlots(s.frames))
			victim := s.frames[frame].VPN
			delete(s.pageTable, victim)
			res.EvictedVPN = &victim
		}

		s.frames[frame] = Frame{
			VPN:            vpn,
			LoadedAtTick:   s.tick,
			LastAccessTick: s.tick,
			ReferenceBit:   true,
			Occupied:       true,
		}
		s.pageTable[vpn] = frame
		res.PageFault = true
		res.FrameIndex = frame
	}

	rec := vm.AccessRecord{
		VPN:        vpn,
		Hit:        res.Hit,
		Frame:      res.FrameIndex,
		EvictedVPN: res.EvictedVPN,
	}
	s.history.Push(rec)
	if s.sink != nil {
		s.sink.Record(rec)
	}

	s.tick++

	return res
}

// freeFrame returns the first unoccupied frame in index order, or -1.
func (s *Simulator) freeFrame() int {
	for i := range s.frames {
		if !s.frames[i].Occupied {
			return i
		}
	}

	return -1
}
