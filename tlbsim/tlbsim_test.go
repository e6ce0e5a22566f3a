package tlbsim_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/tlbsim"
	"github.com/vmlab-project/vmlab/vm"
)

func pfn(v uint64) *uint64 {
	return &v
}

func countValid(st tlbsim.Status) int {
	n := 0
	for _, e := range st.Entries {
		if e.Valid {
			n++
		}
	}

	return n
}

var _ = Describe("Simulator", func() {
	var tlb *tlbsim.Simulator

	BeforeEach(func() {
		var err error
		tlb, err = tlbsim.MakeBuilder().
			WithSize(4).
			WithPolicy(eviction.LRU).
			Build("TLB")
		Expect(err).ToNot(HaveOccurred())
	})

	Context("when building", func() {
		It("should reject out-of-range sizes", func() {
			for _, size := range []int{0, -1, 257, 1000} {
				_, err := tlbsim.MakeBuilder().WithSize(size).Build("TLB")

				Expect(err).To(HaveOccurred())
				Expect(vm.IsCode(err, vm.CodeInvalidConfig)).To(BeTrue())
			}
		})

		It("should accept the domain boundaries", func() {
			for _, size := range []int{1, 256} {
				s, err := tlbsim.MakeBuilder().WithSize(size).Build("TLB")

				Expect(err).ToNot(HaveOccurred())
				Expect(s.Status().Size).To(Equal(size))
			}
		})

		It("should reject an undefined policy tag", func() {
			_, err := tlbsim.MakeBuilder().
				WithPolicy(eviction.Policy(9)).
				Build("TLB")

			Expect(err).To(HaveOccurred())
			Expect(vm.IsCode(err, vm.CodeInvalidConfig)).To(BeTrue())
		})

		It("should start with every slot invalid and zero counters", func() {
			st := tlb.Status()

			Expect(st.Size).To(Equal(4))
			Expect(st.Policy).To(Equal("LRU"))
			Expect(st.Hits).To(Equal(uint64(0)))
			Expect(st.Misses).To(Equal(uint64(0)))
			Expect(st.HitRate).To(Equal(0.0))
			Expect(countValid(st)).To(Equal(0))
		})
	})

	Context("when looking up", func() {
		It("should miss on an empty cache", func() {
			res := tlb.Lookup(0x10)

			Expect(res.Hit).To(BeFalse())
			Expect(tlb.Status().Misses).To(Equal(uint64(1)))
		})

		It("should hit after an insert", func() {
			tlb.Insert(0x10, 0x99)

			res := tlb.Lookup(0x10)

			Expect(res.Hit).To(BeTrue())
			Expect(res.PFN).To(Equal(uint64(0x99)))
			Expect(tlb.Status().Hits).To(Equal(uint64(1)))
		})

		It("should account every lookup as a hit or a miss", func() {
			tlb.Insert(1, 11)
			tlb.Insert(2, 22)

			for _, vpn := range []uint64{1, 2, 3, 4, 1} {
				tlb.Lookup(vpn)
			}

			st := tlb.Status()
			Expect(st.Hits + st.Misses).To(Equal(uint64(5)))
			Expect(st.Hits).To(Equal(uint64(3)))
			Expect(st.Misses).To(Equal(uint64(2)))
		})

		It("should round the hit rate to two decimals", func() {
			tlb.Insert(1, 11)
			tlb.Lookup(1)
			tlb.Lookup(2)
			tlb.Lookup(3)

			Expect(tlb.Status().HitRate).To(Equal(33.33))
		})
	})

	Context("when inserting", func() {
		It("should fill free slots in index order", func() {
			r0 := tlb.Insert(1, 11)
			r1 := tlb.Insert(2, 22)
			r2 := tlb.Insert(3, 33)

			Expect(r0.Slot).To(Equal(0))
			Expect(r1.Slot).To(Equal(1))
			Expect(r2.Slot).To(Equal(2))
		})

		It("should update a resident VPN in place", func() {
			tlb.Insert(1, 11)
			tlb.Insert(2, 22)

			res := tlb.Insert(1, 0xaa)

			Expect(res.Slot).To(Equal(0))
			Expect(res.EvictedVPN).To(BeNil())

			st := tlb.Status()
			Expect(countValid(st)).To(Equal(2))
			Expect(st.Entries[0].VPN).To(Equal("0x1"))
			Expect(st.Entries[0].PFN).To(Equal("0xaa"))
			Expect(st.Entries[1].VPN).To(Equal("0x2"))
		})

		It("should render entries as lowercase hex", func() {
			tlb.Insert(0x1A, 0x2B)

			st := tlb.Status()
			Expect(st.Entries[0].VPN).To(Equal("0x1a"))
			Expect(st.Entries[0].PFN).To(Equal("0x2b"))
		})

		It("should never hold more valid entries than its size", func() {
			for i := uint64(0); i < 20; i++ {
				tlb.Insert(i, i+100)
			}

			Expect(countValid(tlb.Status())).To(Equal(4))
		})
	})

	Context("when evicting", func() {
		build := func(policy eviction.Policy) *tlbsim.Simulator {
			s, err := tlbsim.MakeBuilder().
				WithSize(2).
				WithPolicy(policy).
				Build("TLB")
			Expect(err).ToNot(HaveOccurred())

			return s
		}

		It("should evict the least recently used entry", func() {
			s := build(eviction.LRU)
			s.Insert(1, 11)
			s.Insert(2, 22)
			s.Lookup(1)

			res := s.Insert(3, 33)

			Expect(res.Slot).To(Equal(1))
			Expect(res.EvictedVPN).ToNot(BeNil())
			Expect(*res.EvictedVPN).To(Equal(uint64(2)))
		})

		It("should evict the oldest insertion under FIFO", func() {
			s := build(eviction.FIFO)
			s.Insert(1, 11)
			s.Insert(2, 22)
			s.Lookup(1)

			res := s.Insert(3, 33)

			Expect(res.Slot).To(Equal(0))
			Expect(*res.EvictedVPN).To(Equal(uint64(1)))
		})

		It("should give second chances under CLOCK", func() {
			s := build(eviction.Clock)
			s.Insert(1, 11)
			s.Insert(2, 22)

			res := s.Insert(3, 33)

			Expect(res.Slot).To(Equal(0))
			Expect(*res.EvictedVPN).To(Equal(uint64(1)))
		})

		It("should evict reproducibly under RANDOM with a fixed seed", func() {
			run := func() tlbsim.Status {
				s, err := tlbsim.MakeBuilder().
					WithSize(2).
					WithPolicy(eviction.Random).
					WithRand(rand.New(rand.NewSource(5))).
					Build("TLB")
				Expect(err).ToNot(HaveOccurred())

				s.Insert(1, 11)
				s.Insert(2, 22)
				s.Insert(3, 33)
				s.Insert(4, 44)

				return s.Status()
			}

			first := run()
			second := run()

			Expect(countValid(first)).To(Equal(2))
			Expect(second).To(Equal(first))
		})
	})

	Context("when accessing", func() {
		It("should not install on a miss without a PFN", func() {
			res := tlb.Access(0x10, nil)

			Expect(res.Hit).To(BeFalse())
			Expect(res.Inserted).To(BeFalse())

			st := tlb.Status()
			Expect(st.Misses).To(Equal(uint64(1)))
			Expect(countValid(st)).To(Equal(0))
		})

		It("should install on a miss with a PFN", func() {
			res := tlb.Access(0x10, pfn(0x99))

			Expect(res.Hit).To(BeFalse())
			Expect(res.Inserted).To(BeTrue())
			Expect(res.Slot).To(Equal(0))
			Expect(res.PFN).To(Equal(uint64(0x99)))
		})

		It("should not reinstall on a hit", func() {
			tlb.Access(0x10, pfn(0x99))

			res := tlb.Access(0x10, pfn(0x55))

			Expect(res.Hit).To(BeTrue())
			Expect(res.Inserted).To(BeFalse())
			Expect(res.PFN).To(Equal(uint64(0x99)))
		})

		It("should advance the clock once per composite access", func() {
			tlb.Access(0x10, pfn(0x99))
			tlb.Access(0x10, nil)

			Expect(tlb.Status().Entries[0].LastAccessTick).
				To(Equal(uint64(1)))
		})
	})

	Context("when flushing and resetting", func() {
		BeforeEach(func() {
			tlb.Access(1, pfn(11))
			tlb.Access(1, nil)
			tlb.Access(2, nil)
		})

		It("should drop contents but keep counters on Flush", func() {
			tlb.Flush()

			st := tlb.Status()
			Expect(countValid(st)).To(Equal(0))
			Expect(st.Hits).To(Equal(uint64(1)))
			Expect(st.Misses).To(Equal(uint64(2)))
		})

		It("should keep contents but zero counters on ResetStats", func() {
			tlb.ResetStats()

			st := tlb.Status()
			Expect(countValid(st)).To(Equal(1))
			Expect(st.Hits).To(Equal(uint64(0)))
			Expect(st.Misses).To(Equal(uint64(0)))
			Expect(st.HitRate).To(Equal(0.0))
			Expect(st.History).To(BeEmpty())
		})
	})

	Context("when observing", func() {
		It("should report status idempotently", func() {
			tlb.Access(1, pfn(11))
			tlb.Access(2, nil)

			Expect(tlb.Status()).To(Equal(tlb.Status()))
		})

		It("should record every operation in the history", func() {
			tlb.Access(1, pfn(11))
			tlb.Lookup(1)
			tlb.Lookup(9)

			hist := tlb.Status().History

			Expect(hist).To(HaveLen(3))
			Expect(hist[0].VPN).To(Equal("0x1"))
			Expect(hist[0].Hit).To(BeFalse())
			Expect(hist[1].Hit).To(BeTrue())
			Expect(hist[2].VPN).To(Equal("0x9"))
			Expect(hist[2].Frame).To(Equal(-1))
		})

		It("should bound the history", func() {
			for i := uint64(0); i < vm.HistoryLimit+5; i++ {
				tlb.Lookup(i)
			}

			Expect(tlb.Status().History).To(HaveLen(vm.HistoryLimit))
		})
	})
})
