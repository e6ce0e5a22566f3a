package tlbsim

import (
	"sync"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/vm"
)

// An Entry is one translation slot.
type Entry struct {
	VPN            uint64
	PFN            uint64
	Valid          bool
	LastAccessTick uint64
	InsertTick     uint64
	ReferenceBit   bool
}

// A Simulator is a fixed-capacity VPN to PFN translation cache. Exported
// operations serialize on the embedded mutex, so at most one in-flight
// operation mutates the instance at a time. The logical clock advances
// exactly once per operation; Access counts as one operation even when it
// both looks up and installs.
type Simulator struct {
	sync.Mutex

	name    string
	size    int
	policy  eviction.Policy
	entries []Entry
	finder  eviction.VictimFinder

	hits   uint64
	misses uint64
	tick   uint64

	history *vm.History
	sink    vm.TraceSink
}

// entrySlots adapts the entry array to the view the victim finders scan.
type entrySlots []Entry

func (e entrySlots) Len() int {
	return len(e)
}

func (e entrySlots) LastAccessTick(i int) uint64 {
	return e[i].LastAccessTick
}

func (e entrySlots) InsertTick(i int) uint64 {
	return e[i].InsertTick
}

func (e entrySlots) ReferenceBit(i int) bool {
	return e[i].ReferenceBit
}

func (e entrySlots) ClearReferenceBit(i int) {
	e[i].ReferenceBit = false
}

// A LookupResult reports one translation attempt.
type LookupResult struct {
	Hit bool   `json:"hit"`
	VPN uint64 `json:"vpn"`
	PFN uint64 `json:"pfn"`
}

// An InsertResult reports where a mapping landed and what it displaced.
type InsertResult struct {
	Slot       int     `json:"slot"`
	EvictedVPN *uint64 `json:"evicted_vpn"`
}

// An AccessResult reports one composite lookup-then-fill operation.
type AccessResult struct {
	Hit        bool    `json:"hit"`
	VPN        uint64  `json:"vpn"`
	PFN        uint64  `json:"pfn"`
	Inserted   bool    `json:"inserted"`
	Slot       int     `json:"slot"`
	EvictedVPN *uint64 `json:"evicted_vpn"`
}

// Name returns the name given at build time.
func (s *Simulator) Name() string {
	return s.name
}

// Size returns the fixed slot count.
func (s *Simulator) Size() int {
	return s.size
}

// Policy returns the configured eviction policy.
func (s *Simulator) Policy() eviction.Policy {
	return s.policy
}

// Lookup translates vpn. A hit refreshes the slot's recency metadata; a miss
// changes nothing beyond the miss counter.
func (s *Simulator) Lookup(vpn uint64) LookupResult {
	s.Lock()
	defer s.Unlock()

	res, slot := s.translate(vpn)
	s.record(vm.AccessRecord{VPN: vpn, Hit: res.Hit, Frame: slot})
	s.tick++

	return res
}

// Insert unconditionally installs vpn -> pfn and returns where it landed.
func (s *Simulator) Insert(vpn, pfn uint64) InsertResult {
	s.Lock()
	defer s.Unlock()

	res := s.install(vpn, pfn)
	s.record(vm.AccessRecord{
		VPN:        vpn,
		Hit:        false,
		Frame:      res.Slot,
		EvictedVPN: res.EvictedVPN,
	})
	s.tick++

	return res
}

// Access performs a lookup and, on a miss with pfn supplied, installs the
// mapping. A miss without pfn mutates nothing beyond the miss counter.
func (s *Simulator) Access(vpn uint64, pfn *uint64) AccessResult {
	s.Lock()
	defer s.Unlock()

	res, slot := s.translate(vpn)
	out := AccessResult{
		Hit:  res.Hit,
		VPN:  vpn,
		PFN:  res.PFN,
		Slot: slot,
	}

	if !res.Hit && pfn != nil {
		ins := s.install(vpn, *pfn)
		out.Inserted = true
		out.Slot = ins.Slot
		out.PFN = *pfn
		out.EvictedVPN = ins.EvictedVPN
	}

	s.record(vm.AccessRecord{
		VPN:        vpn,
		Hit:        out.Hit,
		Frame:      out.Slot,
		EvictedVPN: out.EvictedVPN,
	})
	s.tick++

	return out
}

// Flush invalidates every slot. Hit and miss counters keep their values.
func (s *Simulator) Flush() {
	s.Lock()
	defer s.Unlock()

	for i := range s.entries {
		s.entries[i] = Entry{}
	}
}

// ResetStats zeroes the hit and miss counters and drops the history. Slot
// contents stay as they are.
func (s *Simulator) ResetStats() {
	s.Lock()
	defer s.Unlock()

	s.hits = 0
	s.misses = 0
	s.history.Reset()
}

// translate performs the hit and miss bookkeeping shared by Lookup and
// Access. It returns the result plus the slot touched, -1 on a miss.
func (s *Simulator) translate(vpn uint64) (LookupResult, int) {
	if i := s.find(vpn); i >= 0 {
		e := &s.entries[i]
		s.hits++
		e.LastAccessTick = s.tick
		e.ReferenceBit = true

		return LookupResult{Hit: true, VPN: vpn, PFN: e.PFN}, i
	}

	s.misses++

	return LookupResult{Hit: false, VPN: vpn}, -1
}

// install places vpn -> pfn without touching counters or the clock. A vpn
// already resident is updated in place so no two slots ever share a VPN.
func (s *Simulator) install(vpn, pfn uint64) InsertResult {
	slot := s.find(vpn)

	if slot < 0 {
		slot = s.freeSlot()
	}

	var evicted *uint64
	if slot < 0 {
		slot = s.finder.FindVictim(entrySlots(s.entries))
		v := s.entries[slot].VPN
		evicted = &v
	}

	s.entries[slot] = Entry{
		VPN:            vpn,
		PFN:            pfn,
		Valid:          true,
		LastAccessTick: s.tick,
		InsertTick:     s.tick,
		ReferenceBit:   true,
	}

	return InsertResult{Slot: slot, EvictedVPN: evicted}
}

// find returns the index of the valid entry holding vpn, or -1.
func (s *Simulator) find(vpn uint64) int {
	for i := range s.entries {
		if s.entries[i].Valid && s.entries[i].VPN == vpn {
			return i
		}
	}

	return -1
}

// freeSlot returns the first invalid slot in index order, or -1 when the
// cache is full.
func (s *Simulator) freeSlot() int {
	for i := range s.entries {
		if !s.entries[i].Valid {
			return i
		}
	}

	return -1
}

func (s *Simulator) record(rec vm.AccessRecord) {
	s.history.Push(rec)
	if s.sink != nil {
		s.sink.Record(rec)
	}
}
