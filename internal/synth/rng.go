package synth

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// streamSeed hashes the stream identity into one 64-bit PCG seed word.
// The domain tag keeps the two seed words of a stream independent.
func streamSeed(domain byte, seed int64, countyFIPS, stratumKey string) uint64 {
	h := fnv.New64a()
	h.Write([]byte{domain})
	fmt.Fprintf(h, "%d|%s|%s", seed, countyFIPS, stratumKey)
	return h.Sum64()
}

// UniformStream is the deterministic uniform-[0,1) draw sequence for one
// stratum within one county. Streams with different identities are
// independent; the same identity always replays the same sequence.
type UniformStream struct {
	u distuv.Uniform
}

// NewUniformStream derives the stream for (seed, county, stratum).
func NewUniformStream(seed int64, countyFIPS, stratumKey string) *UniformStream {
	src := rand.NewPCG(
		streamSeed(0x55, seed, countyFIPS, stratumKey),
		streamSeed(0xaa, seed, countyFIPS, stratumKey),
	)
	return &UniformStream{u: distuv.Uniform{Min: 0, Max: 1, Src: src}}
}

// Next returns the next draw in [0, 1).
func (s *UniformStream) Next() float64 {
	return s.u.Rand()
}
