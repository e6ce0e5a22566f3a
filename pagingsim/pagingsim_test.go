package pagingsim_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/pagingsim"
	"github.com/vmlab-project/vmlab/vm"
)

func buildSim(frames int, policy eviction.Policy) *pagingsim.Simulator {
	s, err := pagingsim.MakeBuilder().
		WithNumFrames(frames).
		WithPolicy(policy).
		Build("Paging")
	Expect(err).ToNot(HaveOccurred())

	return s
}

func occupiedVPNs(st pagingsim.Status) map[string]int {
	out := make(map[string]int)
	for _, f := range st.Frames {
		if f.Occupied {
			out[f.VPN] = f.Index
		}
	}

	return out
}

var _ = Describe("Simulator", func() {
	Context("when building", func() {
		It("should reject out-of-range frame counts", func() {
			for _, n := range []int{0, -3, 65, 1000} {
				_, err := pagingsim.MakeBuilder().
					WithNumFrames(n).
					Build("Paging")

				Expect(err).To(HaveOccurred())
				Expect(vm.IsCode(err, vm.CodeInvalidConfig)).To(BeTrue())
			}
		})

		It("should accept the domain boundaries", func() {
			for _, n := range []int{1, 64} {
				s, err := pagingsim.MakeBuilder().
					WithNumFrames(n).
					Build("Paging")

				Expect(err).ToNot(HaveOccurred())

				st := s.Status()
				Expect(st.NumFrames).To(Equal(n))
				for _, f := range st.Frames {
					Expect(f.Occupied).To(BeFalse())
				}
			}
		})

		It("should reject an undefined policy tag", func() {
			_, err := pagingsim.MakeBuilder().
				WithPolicy(eviction.Policy(42)).
				Build("Paging")

			Expect(err).To(HaveOccurred())
			Expect(vm.IsCode(err, vm.CodeInvalidConfig)).To(BeTrue())
		})
	})

	Context("when accessing", func() {
		It("should fault on the first touch and hit on the second", func() {
			s := buildSim(4, eviction.LRU)

			first := s.Access(7)
			second := s.Access(7)

			Expect(first.PageFault).To(BeTrue())
			Expect(first.FrameIndex).To(Equal(0))
			Expect(second.Hit).To(BeTrue())
			Expect(second.FrameIndex).To(Equal(0))

			st := s.Status()
			Expect(st.PageFaults).To(Equal(uint64(1)))
			Expect(st.PageHits).To(Equal(uint64(1)))
			Expect(st.DiskReads).To(Equal(uint64(1)))
			Expect(st.HitRate).To(Equal(50.0))
		})

		It("should assign free frames in index order", func() {
			s := buildSim(3, eviction.LRU)

			Expect(s.Access(1).FrameIndex).To(Equal(0))
			Expect(s.Access(2).FrameIndex).To(Equal(1))
			Expect(s.Access(3).FrameIndex).To(Equal(2))
		})

		It("should count a disk read per fault", func() {
			s := buildSim(2, eviction.LRU)

			for _, vpn := range []uint64{1, 2, 3, 4, 1} {
				s.Access(vpn)
			}

			st := s.Status()
			Expect(st.PageFaults).To(Equal(uint64(5)))
			Expect(st.DiskReads).To(Equal(uint64(5)))
		})
	})

	Context("when evicting", func() {
		It("should evict the least recently used page", func() {
			s := buildSim(2, eviction.LRU)

			Expect(s.Access(1).PageFault).To(BeTrue())
			Expect(s.Access(2).PageFault).To(BeTrue())
			Expect(s.Access(1).Hit).To(BeTrue())

			res := s.Access(3)

			Expect(res.PageFault).To(BeTrue())
			Expect(res.EvictedVPN).ToNot(BeNil())
			Expect(*res.EvictedVPN).To(Equal(uint64(2)))
			Expect(res.FrameIndex).To(Equal(1))
		})

		It("should evict the first-loaded page under FIFO despite recency", func() {
			s := buildSim(2, eviction.FIFO)

			s.Access(1)
			s.Access(2)
			s.Access(1)

			res := s.Access(3)

			Expect(res.PageFault).To(BeTrue())
			Expect(*res.EvictedVPN).To(Equal(uint64(1)))
			Expect(res.FrameIndex).To(Equal(0))
		})

		It("should clear both reference bits before evicting under CLOCK", func() {
			s := buildSim(2, eviction.Clock)

			s.Access(1)
			s.Access(2)

			res := s.Access(3)

			Expect(res.PageFault).To(BeTrue())
			Expect(res.FrameIndex).To(Equal(0))
			Expect(*res.EvictedVPN).To(Equal(uint64(1)))

			next := s.Access(4)
			Expect(next.FrameIndex).To(Equal(1))
			Expect(*next.EvictedVPN).To(Equal(uint64(2)))
		})

		It("should evict reproducibly under RANDOM with a fixed seed", func() {
			run := func() pagingsim.Status {
				s, err := pagingsim.MakeBuilder().
					WithNumFrames(2).
					WithPolicy(eviction.Random).
					WithRand(rand.New(rand.NewSource(11))).
					Build("Paging")
				Expect(err).ToNot(HaveOccurred())

				for _, vpn := range []uint64{1, 2, 3, 4, 5} {
					s.Access(vpn)
				}

				return s.Status()
			}

			Expect(run()).To(Equal(run()))
		})
	})

	Context("page table invariants", func() {
		It("should keep the table bijective with occupied frames", func() {
			s := buildSim(3, eviction.LRU)

			for _, vpn := range []uint64{1, 2, 3, 4, 2, 5, 1, 1, 6} {
				s.Access(vpn)
			}

			table := s.PageTable()
			frames := occupiedVPNs(s.Status())

			Expect(table).To(HaveLen(len(frames)))
			for vpn, frame := range table {
				Expect(frames).To(HaveKeyWithValue(vm.FormatHex(vpn), frame))
			}
		})

		It("should never exceed the frame count", func() {
			s := buildSim(2, eviction.FIFO)

			for vpn := uint64(0); vpn < 30; vpn++ {
				s.Access(vpn)
			}

			Expect(s.PageTable()).To(HaveLen(2))
			Expect(occupiedVPNs(s.Status())).To(HaveLen(2))
		})

		It("should drop the victim before installing the new page", func() {
			s := buildSim(1, eviction.LRU)

			s.Access(1)
			res := s.Access(2)

			Expect(*res.EvictedVPN).To(Equal(uint64(1)))

			table := s.PageTable()
			Expect(table).To(HaveLen(1))
			Expect(table).To(HaveKeyWithValue(uint64(2), 0))
		})
	})

	Context("sequences", func() {
		It("should be observably identical to repeated accesses", func() {
			vpns := []uint64{1, 2, 3, 1, 4, 2, 5, 1, 3, 3}

			batch := buildSim(3, eviction.LRU)
			oneByOne := buildSim(3, eviction.LRU)

			batchResults := batch.Sequence(vpns)

			singleResults := make([]pagingsim.AccessResult, len(vpns))
			for i, vpn := range vpns {
				singleResults[i] = oneByOne.Access(vpn)
			}

			Expect(batchResults).To(Equal(singleResults))
			Expect(batch.Status()).To(Equal(oneByOne.Status()))
			Expect(batch.PageTable()).To(Equal(oneByOne.PageTable()))
		})

		It("should collect one result per address in order", func() {
			s := buildSim(2, eviction.FIFO)

			results := s.Sequence([]uint64{9, 9, 9})

			Expect(results).To(HaveLen(3))
			Expect(results[0].PageFault).To(BeTrue())
			Expect(results[1].Hit).To(BeTrue())
			Expect(results[2].Hit).To(BeTrue())
		})
	})

	Context("when resetting stats", func() {
		It("should zero counters and history but keep contents", func() {
			s := buildSim(2, eviction.LRU)
			s.Access(1)
			s.Access(2)
			s.Access(1)

			before := s.Status()
			s.ResetStats()
			after := s.Status()

			Expect(after.PageFaults).To(Equal(uint64(0)))
			Expect(after.PageHits).To(Equal(uint64(0)))
			Expect(after.DiskReads).To(Equal(uint64(0)))
			Expect(after.HitRate).To(Equal(0.0))
			Expect(after.History).To(BeEmpty())
			Expect(after.Frames).To(Equal(before.Frames))
			Expect(s.PageTable()).To(Equal(map[uint64]int{1: 0, 2: 1}))
		})
	})

	Context("when observing", func() {
		It("should report status idempotently", func() {
			s := buildSim(2, eviction.Clock)
			s.Sequence([]uint64{1, 2, 3, 1})

			Expect(s.Status()).To(Equal(s.Status()))
		})

		It("should show only the last 20 history records", func() {
			s := buildSim(4, eviction.LRU)

			for vpn := uint64(0); vpn < 33; vpn++ {
				s.Access(vpn)
			}

			hist := s.Status().History

			Expect(hist).To(HaveLen(20))
			Expect(hist[0].VPN).To(Equal("0xd"))
			Expect(hist[19].VPN).To(Equal("0x20"))
		})

		It("should attribute evictions in the history", func() {
			s := buildSim(1, eviction.LRU)

			s.Access(0xa)
			s.Access(0xb)

			hist := s.Status().History

			Expect(hist[0].EvictedVPN).To(BeEmpty())
			Expect(hist[1].EvictedVPN).To(Equal("0xa"))
		})
	})
})
