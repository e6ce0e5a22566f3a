package vm

import "math"

// HitRate returns hits over total accesses as a percentage rounded to two
// decimal places, 0 when nothing was accessed yet.
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}

	return math.Round(float64(hits)/float64(total)*10000) / 100
}
