package census

import "math"

// IncomeBracket is one closed-open income interval with a household count.
// The open top bracket carries Upper = +Inf and is top-coded during
// conversion.
type IncomeBracket struct {
	Lower float64
	Upper float64
	Count int
}

// bracketBounds is the 16-interval schedule shared by the ACS family
// (B19101) and nonfamily (B19201) income tables, cells _002 through _017.
var bracketBounds = [16][2]float64{
	{0, 10000},
	{10000, 15000},
	{15000, 20000},
	{20000, 25000},
	{25000, 30000},
	{30000, 35000},
	{35000, 40000},
	{40000, 45000},
	{45000, 50000},
	{50000, 60000},
	{60000, 75000},
	{75000, 100000},
	{100000, 125000},
	{125000, 150000},
	{150000, 200000},
	{200000, math.Inf(1)},
}

// acsBrackets fills the standard schedule with counts from the table cells,
// in cell order.
func acsBrackets(counts []int) []IncomeBracket {
	brackets := make([]IncomeBracket, 0, len(bracketBounds))
	for i, b := range bracketBounds {
		count := 0
		if i < len(counts) {
			count = counts[i]
		}
		brackets = append(brackets, IncomeBracket{Lower: b[0], Upper: b[1], Count: count})
	}
	return brackets
}

// breakpointCount fixes K: breakpoints at the nine deciles, percentiles
// j/(K+1) for j = 1..9.
const breakpointCount = 9

// BreakpointsFromBrackets converts bracket counts to k evenly spaced
// quantile breakpoints by linear interpolation of the bracket CDF. An open
// top bracket is top-coded at twice its lower bound, and that bound doubles
// as the ceiling when the top bracket is occupied. Returns (nil, 0) when
// the brackets hold no households.
func BreakpointsFromBrackets(brackets []IncomeBracket, k int) ([]float64, float64) {
	total := 0
	ceiling := 0.0
	for _, b := range brackets {
		if b.Count <= 0 {
			continue
		}
		total += b.Count
		ceiling = topCodedUpper(b)
	}
	if total == 0 || k <= 0 {
		return nil, 0
	}

	breakpoints := make([]float64, 0, k)
	for j := 1; j <= k; j++ {
		target := float64(total) * float64(j) / float64(k+1)
		breakpoints = append(breakpoints, interpolate(brackets, target))
	}
	return breakpoints, ceiling
}

// interpolate inverts the bracket CDF at a cumulative target, linearly
// within the first bracket whose cumulative count reaches it.
func interpolate(brackets []IncomeBracket, target float64) float64 {
	cum := 0.0
	highest := 0.0
	for _, b := range brackets {
		if b.Count <= 0 {
			continue
		}
		next := cum + float64(b.Count)
		if next >= target {
			upper := topCodedUpper(b)
			return b.Lower + (target-cum)/float64(b.Count)*(upper-b.Lower)
		}
		cum = next
		highest = topCodedUpper(b)
	}
	// target beyond all mass; only reachable through float slop
	return highest
}

func topCodedUpper(b IncomeBracket) float64 {
	if math.IsInf(b.Upper, 1) {
		return 2 * b.Lower
	}
	return b.Upper
}
