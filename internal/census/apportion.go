package census

import (
	"math"
	"sort"
)

// apportion splits total across categories proportionally to weights using
// the largest-remainder method. The result always sums to total exactly.
// Remainder seats go to the largest fractional parts; ties break toward the
// lower index, so the split is deterministic for a fixed weight order.
// Zero or negative weight sums degrade to equal weights.
func apportion(total int, weights []float64) []int {
	out := make([]int, len(weights))
	if total <= 0 || len(weights) == 0 {
		return out
	}

	var sum float64
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	if sum <= 0 {
		equal := make([]float64, len(weights))
		for i := range equal {
			equal[i] = 1
		}
		weights = equal
		sum = float64(len(weights))
	}

	type slot struct {
		idx  int
		frac float64
	}
	slots := make([]slot, len(weights))
	assigned := 0
	for i, w := range weights {
		if w < 0 {
			w = 0
		}
		quota := float64(total) * w / sum
		floor := int(math.Floor(quota))
		out[i] = floor
		assigned += floor
		slots[i] = slot{idx: i, frac: quota - float64(floor)}
	}

	sort.SliceStable(slots, func(a, b int) bool { return slots[a].frac > slots[b].frac })
	for i := 0; i < total-assigned; i++ {
		out[slots[i%len(slots)].idx]++
	}
	return out
}
