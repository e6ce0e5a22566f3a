package eviction

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeSlots struct {
	lastAccess []uint64
	insert     []uint64
	refBits    []bool
}

func (s *fakeSlots) Len() int {
	return len(s.lastAccess)
}

func (s *fakeSlots) LastAccessTick(i int) uint64 {
	return s.lastAccess[i]
}

func (s *fakeSlots) InsertTick(i int) uint64 {
	return s.insert[i]
}

func (s *fakeSlots) ReferenceBit(i int) bool {
	return s.refBits[i]
}

func (s *fakeSlots) ClearReferenceBit(i int) {
	s.refBits[i] = false
}

var _ = Describe("VictimFinder", func() {
	Context("LRU", func() {
		It("should pick the smallest last-access tick", func() {
			slots := &fakeSlots{lastAccess: []uint64{5, 2, 9, 7}}
			f := NewVictimFinder(LRU, nil)

			Expect(f.FindVictim(slots)).To(Equal(1))
		})

		It("should break ties by the first index", func() {
			slots := &fakeSlots{lastAccess: []uint64{3, 1, 1, 4}}
			f := NewVictimFinder(LRU, nil)

			Expect(f.FindVictim(slots)).To(Equal(1))
		})
	})

	Context("FIFO", func() {
		It("should pick the smallest insertion tick", func() {
			slots := &fakeSlots{insert: []uint64{4, 8, 2}, lastAccess: make([]uint64, 3)}
			f := NewVictimFinder(FIFO, nil)

			Expect(f.FindVictim(slots)).To(Equal(2))
		})

		It("should ignore recency entirely", func() {
			slots := &fakeSlots{
				insert:     []uint64{0, 1},
				lastAccess: []uint64{9, 1},
			}
			f := NewVictimFinder(FIFO, nil)

			Expect(f.FindVictim(slots)).To(Equal(0))
		})
	})

	Context("Random", func() {
		It("should stay within range", func() {
			slots := &fakeSlots{lastAccess: make([]uint64, 8)}
			f := NewVictimFinder(Random, rand.New(rand.NewSource(99)))

			for i := 0; i < 100; i++ {
				v := f.FindVictim(slots)
				Expect(v).To(BeNumerically(">=", 0))
				Expect(v).To(BeNumerically("<", 8))
			}
		})

		It("should repeat the same draws for the same seed", func() {
			slots := &fakeSlots{lastAccess: make([]uint64, 8)}
			f1 := NewVictimFinder(Random, rand.New(rand.NewSource(7)))
			f2 := NewVictimFinder(Random, rand.New(rand.NewSource(7)))

			for i := 0; i < 20; i++ {
				Expect(f1.FindVictim(slots)).To(Equal(f2.FindVictim(slots)))
			}
		})
	})

	Context("Clock", func() {
		It("should give a second chance to every set bit", func() {
			slots := &fakeSlots{
				lastAccess: make([]uint64, 3),
				refBits:    []bool{true, true, true},
			}
			f := NewVictimFinder(Clock, nil).(*clockVictimFinder)

			Expect(f.FindVictim(slots)).To(Equal(0))
			Expect(slots.refBits).To(Equal([]bool{false, false, false}))
			Expect(f.hand).To(Equal(1))
		})

		It("should take a clear bit immediately", func() {
			slots := &fakeSlots{
				lastAccess: make([]uint64, 3),
				refBits:    []bool{true, false, true},
			}
			f := NewVictimFinder(Clock, nil).(*clockVictimFinder)

			Expect(f.FindVictim(slots)).To(Equal(1))
			Expect(slots.refBits).To(Equal([]bool{false, false, true}))
			Expect(f.hand).To(Equal(2))
		})

		It("should keep its hand across calls", func() {
			slots := &fakeSlots{
				lastAccess: make([]uint64, 2),
				refBits:    []bool{true, true},
			}
			f := NewVictimFinder(Clock, nil).(*clockVictimFinder)

			Expect(f.FindVictim(slots)).To(Equal(0))
			Expect(f.hand).To(Equal(1))

			slots.refBits[0] = true
			Expect(f.FindVictim(slots)).To(Equal(1))
			Expect(f.hand).To(Equal(0))
		})
	})

	It("should panic on an undefined policy tag", func() {
		Expect(func() { NewVictimFinder(Policy(42), nil) }).To(Panic())
	})
})
