// Package eviction provides the victim-selection policies shared by the
// address-translation cache and the paging simulator.
package eviction

import (
	"fmt"
	"strings"

	"github.com/vmlab-project/vmlab/vm"
)

// A Policy tags one of the four victim-selection algorithms.
type Policy int

const (
	// LRU evicts the slot with the smallest last-access tick.
	LRU Policy = iota

	// FIFO evicts the slot with the smallest insertion tick.
	FIFO

	// Random evicts a uniformly chosen slot.
	Random

	// Clock runs the second-chance algorithm over the reference bits.
	Clock
)

var policyNames = map[Policy]string{
	LRU:    "LRU",
	FIFO:   "FIFO",
	Random: "RANDOM",
	Clock:  "CLOCK",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}

	return fmt.Sprintf("Policy(%d)", int(p))
}

// Valid reports whether p is one of the four defined policies.
func (p Policy) Valid() bool {
	_, ok := policyNames[p]
	return ok
}

// ParsePolicy recognizes the four policy tokens, case-insensitively. An
// unknown token is rejected the same way for every simulator; no default is
// substituted.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LRU":
		return LRU, nil
	case "FIFO":
		return FIFO, nil
	case "RANDOM":
		return Random, nil
	case "CLOCK":
		return Clock, nil
	default:
		return 0, vm.InvalidConfigErr("policy",
			fmt.Sprintf("unknown eviction policy %q", s))
	}
}
