package synth

import (
	"math"

	"github.com/sells-group/hui-cli/internal/model"
)

// InverseCDF maps a uniform draw through the piecewise linear inverse CDF
// anchored at (0, 0), the K breakpoints at percentiles j/(K+1), and
// (1, ceiling). Returns the income and the 1-based segment the draw fell
// in (1..K+1).
func InverseCDF(d model.Distribution, u float64) (float64, int) {
	k := len(d.Breakpoints)
	seg := int(u*float64(k+1)) + 1
	if seg > k+1 {
		// u just below 1 can round across the last boundary
		seg = k + 1
	}

	var lo, hi float64
	if seg > 1 {
		lo = d.Breakpoints[seg-2]
	}
	if seg <= k {
		hi = d.Breakpoints[seg-1]
	} else {
		hi = d.Ceiling
	}

	t := u*float64(k+1) - float64(seg-1)
	return lo + t*(hi-lo), seg
}

// RoundCents rounds an income to whole cents, half away from zero.
func RoundCents(x float64) float64 {
	return math.Round(x*100) / 100
}
