package census

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApportion_Proportional(t *testing.T) {
	assert.Equal(t, []int{5, 5}, apportion(10, []float64{1, 1}))
	assert.Equal(t, []int{4, 1}, apportion(5, []float64{4, 1}))
	assert.Equal(t, []int{8, 2}, apportion(10, []float64{0.8, 0.2}))
}

func TestApportion_RemainderToLargestFraction(t *testing.T) {
	// 0.2 vs 0.8 fractional parts; the single remainder goes right.
	assert.Equal(t, []int{0, 1}, apportion(1, []float64{0.2, 0.8}))
	// quotas 0.33/0.67; the remainder goes to the larger fraction.
	assert.Equal(t, []int{0, 1}, apportion(1, []float64{2, 4}))
}

func TestApportion_TiesBreakLow(t *testing.T) {
	assert.Equal(t, []int{4, 3, 3}, apportion(10, []float64{1, 1, 1}))
	assert.Equal(t, []int{1, 1, 0}, apportion(2, []float64{1, 1, 1}))
	assert.Equal(t, []int{2, 1}, apportion(3, []float64{0.5, 0.5}))
}

func TestApportion_ZeroWeightsDegradeToEqual(t *testing.T) {
	assert.Equal(t, []int{3, 2, 2}, apportion(7, []float64{0, 0, 0}))
}

func TestApportion_NegativeWeightClamped(t *testing.T) {
	assert.Equal(t, []int{0, 100}, apportion(100, []float64{-1, 1}))
}

func TestApportion_Degenerate(t *testing.T) {
	assert.Equal(t, []int{0, 0}, apportion(0, []float64{1, 2}))
	assert.Equal(t, []int{0, 0}, apportion(-3, []float64{1, 2}))
	assert.Empty(t, apportion(5, nil))
}

func TestApportion_AlwaysSumsToTotal(t *testing.T) {
	weights := []float64{3, 1, 2, 0, 5}
	for total := 1; total <= 50; total++ {
		got := apportion(total, weights)
		sum := 0
		for _, n := range got {
			sum += n
		}
		assert.Equal(t, total, sum, "total %d", total)
	}
}
