package synth

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/hui-cli/internal/model"
)

func testDist() model.Distribution {
	return model.Distribution{
		DistributionKey: model.DistributionKey{TractID: "37155970100", Race: model.RaceWhite, Hispan: model.HispanNot, Family: model.FamilyYes},
		Breakpoints:     []float64{20000, 40000, 60000, 80000},
		Ceiling:         160000,
	}
}

func TestInverseCDFAnchors(t *testing.T) {
	t.Parallel()
	d := testDist()

	t.Run("zero draw", func(t *testing.T) {
		t.Parallel()
		income, group := InverseCDF(d, 0)
		assert.Equal(t, 0.0, income)
		assert.Equal(t, 1, group)
	})

	t.Run("segment boundaries hit breakpoints", func(t *testing.T) {
		t.Parallel()
		for j, want := range d.Breakpoints {
			u := float64(j+1) / 5.0
			income, group := InverseCDF(d, u)
			assert.InDelta(t, want, income, 1e-9)
			assert.Equal(t, j+2, group)
		}
	})

	t.Run("midpoint interpolates", func(t *testing.T) {
		t.Parallel()
		income, group := InverseCDF(d, 0.5)
		assert.InDelta(t, 50000, income, 1e-9)
		assert.Equal(t, 3, group)
	})

	t.Run("upper tail approaches ceiling", func(t *testing.T) {
		t.Parallel()
		income, group := InverseCDF(d, 0.9999999)
		assert.Equal(t, 5, group)
		assert.Greater(t, income, 159000.0)
		assert.LessOrEqual(t, income, d.Ceiling)
	})

	t.Run("draw just below one stays in range", func(t *testing.T) {
		t.Parallel()
		income, group := InverseCDF(d, justBelowOne)
		assert.Equal(t, 5, group)
		assert.LessOrEqual(t, income, d.Ceiling)
	})
}

// largest float64 strictly below 1
const justBelowOne = 0x1.fffffffffffffp-1

func TestInverseCDFQuantileFidelity(t *testing.T) {
	t.Parallel()

	d := testDist()
	stream := NewUniformStream(9876, "37155", "occ:r1:h0:f1")

	const n = 1000
	draws := make([]float64, n)
	for i := range draws {
		income, _ := InverseCDF(d, stream.Next())
		draws[i] = income
	}
	sort.Float64s(draws)

	for j, bp := range d.Breakpoints {
		p := float64(j+1) / 5.0
		q := stat.Quantile(p, stat.Empirical, draws, nil)
		assert.InDelta(t, bp, q, 5000, "quantile %.1f", p)
	}

	// every draw in domain
	require.GreaterOrEqual(t, draws[0], 0.0)
	require.LessOrEqual(t, draws[n-1], d.Ceiling)
}

func TestRoundCents(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 45231.5, RoundCents(45231.5))
	assert.Equal(t, 45231.57, RoundCents(45231.5689))
	assert.Equal(t, 45231.56, RoundCents(45231.5612))
	assert.Equal(t, 0.0, RoundCents(0.0049999))
}
