// Package pagingsim implements the demand-paging simulator.
package pagingsim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/vm"
)

// MinFrames and MaxFrames bound the physical frame pool.
const (
	MinFrames = 1
	MaxFrames = 64
)

// A Builder configures and creates paging simulators.
type Builder struct {
	numFrames int
	policy    eviction.Policy
	rng       *rand.Rand
	sink      vm.TraceSink
}

// MakeBuilder returns a Builder with an 8-frame LRU configuration.
func MakeBuilder() Builder {
	return Builder{
		numFrames: 8,
		policy:    eviction.LRU,
	}
}

// WithNumFrames sets the frame count, in [MinFrames, MaxFrames].
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithPolicy sets the eviction policy.
func (b Builder) WithPolicy(p eviction.Policy) Builder {
	b.policy = p
	return b
}

// WithRand injects the randomness source consumed by the RANDOM policy.
func (b Builder) WithRand(rng *rand.Rand) Builder {
	b.rng = rng
	return b
}

// WithTraceSink forwards a copy of every access record to sink.
func (b Builder) WithTraceSink(sink vm.TraceSink) Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and returns a ready simulator with every
// frame free, an empty page table, and all counters at zero.
func (b Builder) Build(name string) (*Simulator, error) {
	if b.numFrames < MinFrames || b.numFrames > MaxFrames {
		return nil, vm.InvalidConfigErr(name,
			fmt.Sprintf("frame count %d outside [%d, %d]",
				b.numFrames, MinFrames, MaxFrames))
	}

	if !b.policy.Valid() {
		return nil, vm.InvalidConfigErr(name,
			fmt.Sprintf("unknown eviction policy %v", b.policy))
	}

	rng := b.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Simulator{
		name:      name,
		numFrames: b.numFrames,
		policy:    b.policy,
		frames:    make([]Frame, b.numFrames),
		pageTable: make(map[uint64]int),
		finder:    eviction.NewVictimFinder(b.policy, rng),
		history:   vm.NewHistory(),
		sink:      b.sink,
	}

	return s, nil
}
