package model

import "github.com/rotisserie/eris"

// DistributionKey identifies one tract-level income distribution. County
// pooled fallback rows carry the 5-digit county FIPS in TractID.
type DistributionKey struct {
	TractID string `json:"tractid"`
	Race    Race   `json:"race"`
	Hispan  Hispan `json:"hispan"`
	Family  Family `json:"family"`
}

// Distribution holds the ordered quantile breakpoints of one income
// distribution. Breakpoints sit at evenly spaced percentiles j/(K+1); the
// ceiling top-codes the open upper tail.
type Distribution struct {
	DistributionKey
	Breakpoints []float64 `json:"breakpoints"`
	Ceiling     float64   `json:"ceiling"`
	Vintage     int       `json:"vintage"`
}

// Validate checks the structural invariants: at least one breakpoint, all
// non-negative and strictly increasing, ceiling at or above the last.
func (d Distribution) Validate() error {
	if len(d.Breakpoints) == 0 {
		return eris.Errorf("model: distribution %v has no breakpoints", d.DistributionKey)
	}
	prev := -1.0
	for i, b := range d.Breakpoints {
		if b < 0 {
			return eris.Errorf("model: distribution %v breakpoint %d is negative", d.DistributionKey, i)
		}
		if b <= prev {
			return eris.Errorf("model: distribution %v breakpoints not strictly increasing at %d", d.DistributionKey, i)
		}
		prev = b
	}
	if d.Ceiling < prev {
		return eris.Errorf("model: distribution %v ceiling %.2f below last breakpoint %.2f", d.DistributionKey, d.Ceiling, prev)
	}
	return nil
}
