package eviction

import (
	"fmt"
	"math/rand"
)

// A SlotView is the window a VictimFinder scans over. The owning simulator
// exposes whatever per-slot metadata it tracks. FindVictim runs only when no
// free slot remains, so a finder may assume every slot is occupied.
type SlotView interface {
	Len() int
	LastAccessTick(i int) uint64
	InsertTick(i int) uint64
	ReferenceBit(i int) bool
	ClearReferenceBit(i int)
}

// A VictimFinder selects the slot to evict.
type VictimFinder interface {
	FindVictim(view SlotView) int
}

// NewVictimFinder returns the finder implementing the policy. rng feeds the
// Random policy and may be nil for the others. Callers validate the policy
// with ParsePolicy or Valid first; an undefined tag panics here.
func NewVictimFinder(p Policy, rng *rand.Rand) VictimFinder {
	switch p {
	case LRU:
		return &lruVictimFinder{}
	case FIFO:
		return &fifoVictimFinder{}
	case Random:
		return &randomVictimFinder{rng: rng}
	case Clock:
		return &clockVictimFinder{}
	default:
		panic(fmt.Sprintf("no victim finder for %s", p))
	}
}

type lruVictimFinder struct{}

// FindVictim returns the first slot holding the smallest last-access tick.
func (f *lruVictimFinder) FindVictim(view SlotView) int {
	victim := 0
	for i := 1; i < view.Len(); i++ {
		if view.LastAccessTick(i) < view.LastAccessTick(victim) {
			victim = i
		}
	}

	return victim
}

type fifoVictimFinder struct{}

// FindVictim returns the first slot holding the smallest insertion tick.
func (f *fifoVictimFinder) FindVictim(view SlotView) int {
	victim := 0
	for i := 1; i < view.Len(); i++ {
		if view.InsertTick(i) < view.InsertTick(victim) {
			victim = i
		}
	}

	return victim
}

type randomVictimFinder struct {
	rng *rand.Rand
}

func (f *randomVictimFinder) FindVictim(view SlotView) int {
	return f.rng.Intn(view.Len())
}

// clockVictimFinder keeps its hand across calls, resuming each scan where
// the previous one stopped.
type clockVictimFinder struct {
	hand int
}

// FindVictim advances circularly from the hand. A slot with a clear
// reference bit is the victim and the hand moves past it; a set bit is
// cleared and the scan continues. Each pass clears the remaining set bits,
// so the scan finishes within two rounds.
func (f *clockVictimFinder) FindVictim(view SlotView) int {
	n := view.Len()
	for {
		i := f.hand
		f.hand = (f.hand + 1) % n

		if !view.ReferenceBit(i) {
			return i
		}

		view.ClearReferenceBit(i)
	}
}
