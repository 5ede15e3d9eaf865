package census

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hui-cli/internal/model"
)

func TestACSBrackets(t *testing.T) {
	counts := make([]int, 16)
	counts[0] = 12
	counts[15] = 3

	brackets := acsBrackets(counts)
	require.Len(t, brackets, 16)
	assert.Equal(t, IncomeBracket{Lower: 0, Upper: 10000, Count: 12}, brackets[0])
	assert.Equal(t, 200000.0, brackets[15].Lower)
	assert.True(t, math.IsInf(brackets[15].Upper, 1))
	assert.Equal(t, 3, brackets[15].Count)
}

func TestACSBrackets_ShortCounts(t *testing.T) {
	brackets := acsBrackets([]int{5})
	require.Len(t, brackets, 16)
	assert.Equal(t, 5, brackets[0].Count)
	for _, b := range brackets[1:] {
		assert.Zero(t, b.Count)
	}
}

func TestBreakpointsFromBrackets_UniformSingleBracket(t *testing.T) {
	counts := make([]int, 16)
	counts[0] = 100

	bps, ceiling := BreakpointsFromBrackets(acsBrackets(counts), 9)
	require.Len(t, bps, 9)
	want := []float64{1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000, 9000}
	assert.InDeltaSlice(t, want, bps, 1e-6)
	assert.Equal(t, 10000.0, ceiling)
}

func TestBreakpointsFromBrackets_SpansBrackets(t *testing.T) {
	counts := make([]int, 16)
	counts[0] = 50 // 0 - 10k
	counts[9] = 50 // 50k - 60k

	bps, ceiling := BreakpointsFromBrackets(acsBrackets(counts), 9)
	require.Len(t, bps, 9)
	want := []float64{2000, 4000, 6000, 8000, 10000, 52000, 54000, 56000, 58000}
	assert.InDeltaSlice(t, want, bps, 1e-6)
	assert.Equal(t, 60000.0, ceiling)
}

func TestBreakpointsFromBrackets_TopCoded(t *testing.T) {
	counts := make([]int, 16)
	counts[15] = 10

	bps, ceiling := BreakpointsFromBrackets(acsBrackets(counts), 9)
	require.Len(t, bps, 9)
	want := []float64{220000, 240000, 260000, 280000, 300000, 320000, 340000, 360000, 380000}
	assert.InDeltaSlice(t, want, bps, 1e-6)
	assert.Equal(t, 400000.0, ceiling)
}

func TestBreakpointsFromBrackets_Empty(t *testing.T) {
	bps, ceiling := BreakpointsFromBrackets(acsBrackets(make([]int, 16)), 9)
	assert.Nil(t, bps)
	assert.Zero(t, ceiling)

	bps, _ = BreakpointsFromBrackets(acsBrackets([]int{1}), 0)
	assert.Nil(t, bps)
}

func TestBreakpointsFromBrackets_SatisfyDistributionInvariants(t *testing.T) {
	cases := [][]int{
		{1},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 7},
		{3, 0, 5, 0, 0, 9, 0, 0, 0, 0, 2, 0, 0, 0, 0, 1},
		{120, 85, 60, 44, 31, 30, 28, 25, 22, 40, 48, 51, 30, 14, 11, 9},
	}
	for i, counts := range cases {
		bps, ceiling := BreakpointsFromBrackets(acsBrackets(counts), breakpointCount)
		require.NotNil(t, bps, "case %d", i)

		d := model.Distribution{
			DistributionKey: model.DistributionKey{TractID: "37155960100", Race: model.RaceAny, Hispan: model.HispanAny, Family: model.FamilyYes},
			Breakpoints:     bps,
			Ceiling:         ceiling,
			Vintage:         2010,
		}
		assert.NoError(t, d.Validate(), "case %d", i)
	}
}
