package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drawN(s *UniformStream, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Next()
	}
	return out
}

func TestUniformStreamDeterminism(t *testing.T) {
	t.Parallel()

	a := drawN(NewUniformStream(9876, "37155", "occ:r1:h0:f1"), 50)
	b := drawN(NewUniformStream(9876, "37155", "occ:r1:h0:f1"), 50)
	assert.Equal(t, a, b)
}

func TestUniformStreamIndependence(t *testing.T) {
	t.Parallel()

	base := drawN(NewUniformStream(9876, "37155", "occ:r1:h0:f1"), 20)

	t.Run("different stratum", func(t *testing.T) {
		t.Parallel()
		other := drawN(NewUniformStream(9876, "37155", "occ:r2:h0:f1"), 20)
		assert.NotEqual(t, base, other)
	})

	t.Run("different county", func(t *testing.T) {
		t.Parallel()
		other := drawN(NewUniformStream(9876, "29097", "occ:r1:h0:f1"), 20)
		assert.NotEqual(t, base, other)
	})

	t.Run("different seed", func(t *testing.T) {
		t.Parallel()
		other := drawN(NewUniformStream(1234, "37155", "occ:r1:h0:f1"), 20)
		assert.NotEqual(t, base, other)
	})
}

func TestUniformStreamDomain(t *testing.T) {
	t.Parallel()

	s := NewUniformStream(42, "37155", "occ:r7:h1:f0")
	for i := 0; i < 1000; i++ {
		u := s.Next()
		require.GreaterOrEqual(t, u, 0.0)
		require.Less(t, u, 1.0)
	}
}

func TestStreamSeedDomainSeparation(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t,
		streamSeed(0x55, 9876, "37155", "occ:r1:h0:f1"),
		streamSeed(0xaa, 9876, "37155", "occ:r1:h0:f1"))
}
