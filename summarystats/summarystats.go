// Package summarystats turns repetitions of a forward run into fixed
// size feature vectors.
package summarystats

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lfi/rng"
	"github.com/samuelfneumann/lfi/simulator"
)

// SummaryStats computes summary statistics of simulated data
type SummaryStats interface {
	// Calc returns a matrix with one row of NSummary() features per
	// repetition
	Calc(reps []simulator.Repetition) (*mat.Dense, error)

	// NSummary returns the number of features per repetition
	NSummary() int
}

// Seeder provides reproducible seeds to summary statistics which need
// randomness. Implementations embed it. A Seeder is not safe for
// concurrent use.
type Seeder struct {
	stream rng.Stream
}

// NewSeeder returns a Seeder drawing from a stream seeded with seed,
// or an unseeded Seeder if seed is nil
func NewSeeder(seed *uint64) *Seeder {
	if seed == nil {
		return &Seeder{stream: rng.Unseeded()}
	}
	return &Seeder{stream: rng.NewStream(*seed)}
}

// GenNewSeed returns a new seed in [0, 2^31). If the receiver is
// unseeded, ok is false.
func (s *Seeder) GenNewSeed() (seed uint64, ok bool) {
	seed, ok, s.stream = s.stream.Next()
	return seed, ok
}
