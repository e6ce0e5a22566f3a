// Package tlbsim implements the address-translation cache simulator.
package tlbsim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vmlab-project/vmlab/eviction"
	"github.com/vmlab-project/vmlab/vm"
)

// MinSize and MaxSize bound the number of translation slots.
const (
	MinSize = 1
	MaxSize = 256
)

// A Builder configures and creates address-cache simulators.
type Builder struct {
	size   int
	policy eviction.Policy
	rng    *rand.Rand
	sink   vm.TraceSink
}

// MakeBuilder returns a Builder with a 16-slot LRU configuration.
func MakeBuilder() Builder {
	return Builder{
		size:   16,
		policy: eviction.LRU,
	}
}

// WithSize sets the slot count, in [MinSize, MaxSize].
func (b Builder) WithSize(size int) Builder {
	b.size = size
	return b
}

// WithPolicy sets the eviction policy.
func (b Builder) WithPolicy(p eviction.Policy) Builder {
	b.policy = p
	return b
}

// WithRand injects the randomness source consumed by the RANDOM policy.
// Deterministic tests pass a fixed-seed source.
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
// slot invalid and all counters at zero.
func (b Builder) Build(name string) (*Simulator, error) {
	if b.size < MinSize || b.size > MaxSize {
		return nil, vm.InvalidConfigErr(name,
			fmt.Sprintf("tlb size %d outside [%d, %d]", b.size, MinSize, MaxSize))
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
		name:    name,
		size:    b.size,
		policy:  b.policy,
		entries: make([]Entry, b.size),
		finder:  eviction.NewVictimFinder(b.policy, rng),
		history: vm.NewHistory(),
		sink:    b.sink,
	}

	return s, nil
}
