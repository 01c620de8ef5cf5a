package summarystats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/lfi/rng"
	"github.com/samuelfneumann/lfi/simulator"
)

// Identity uses the simulated data itself as summary statistics
type Identity struct {
	*Seeder
	n int
}

// NewIdentity returns Identity statistics for data of length n
func NewIdentity(n int, seed *uint64) *Identity {
	return &Identity{Seeder: NewSeeder(seed), n: n}
}

// NSummary returns the length of the data
func (i *Identity) NSummary() int { return i.n }

// Calc copies the data of each repetition into a row
func (i *Identity) Calc(reps []simulator.Repetition) (*mat.Dense, error) {
	if len(reps) == 0 {
		return nil, fmt.Errorf("calc: no repetitions")
	}

	out := mat.NewDense(len(reps), i.n, nil)
	for r, rep := range reps {
		if len(rep.Data) != i.n {
			return nil, fmt.Errorf("calc: repetition %v has %v values, "+
				"expected %v", r, len(rep.Data), i.n)
		}
		out.SetRow(r, rep.Data)
	}
	return out, nil
}

// Moments summarizes the data of each repetition, viewed as samples
// of a scalar quantity, by its mean and standard deviation
type Moments struct {
	*Seeder
}

// NewMoments returns Moments statistics
func NewMoments(seed *uint64) *Moments {
	return &Moments{Seeder: NewSeeder(seed)}
}

// NSummary returns 2
func (m *Moments) NSummary() int { return 2 }

// Calc computes the mean and standard deviation of each repetition
func (m *Moments) Calc(reps []simulator.Repetition) (*mat.Dense, error) {
	if len(reps) == 0 {
		return nil, fmt.Errorf("calc: no repetitions")
	}

	out := mat.NewDense(len(reps), 2, nil)
	for r, rep := range reps {
		if len(rep.Data) < 2 {
			return nil, fmt.Errorf("calc: repetition %v has %v values, "+
				"need at least 2", r, len(rep.Data))
		}
		mean, std := stat.MeanStdDev(rep.Data, nil)
		out.SetRow(r, []float64{mean, std})
	}
	return out, nil
}

// RandomProjection projects the data of each repetition onto k random
// directions. The directions are drawn once, from the first seed of
// the statistic, so equal seeds give equal features.
type RandomProjection struct {
	*Seeder
	n, k int

	// proj holds one direction per column, (n, k)
	proj *mat.Dense
}

// NewRandomProjection returns statistics projecting data of length n
// onto k directions with entries drawn from 𝒩(0, 1/n)
func NewRandomProjection(n, k int, seed *uint64) (*RandomProjection,
	error) {
	if n < 1 || k < 1 {
		return nil, fmt.Errorf("newRandomProjection: expected n, k >= 1 "+
			"but got n = %v, k = %v", n, k)
	}

	r := &RandomProjection{Seeder: NewSeeder(seed), n: n, k: k}
	normal := distuv.Normal{
		Mu:    0,
		Sigma: 1 / math.Sqrt(float64(n)),
		Src:   rng.Source(r.GenNewSeed()),
	}

	data := make([]float64, n*k)
	for i := range data {
		data[i] = normal.Rand()
	}
	r.proj = mat.NewDense(n, k, data)

	return r, nil
}

// NSummary returns the number of directions
func (r *RandomProjection) NSummary() int { return r.k }

// Calc projects the data of each repetition onto the directions
func (r *RandomProjection) Calc(reps []simulator.Repetition) (*mat.Dense,
	error) {
	if len(reps) == 0 {
		return nil, fmt.Errorf("calc: no repetitions")
	}

	data := mat.NewDense(len(reps), r.n, nil)
	for i, rep := range reps {
		if len(rep.Data) != r.n {
			return nil, fmt.Errorf("calc: repetition %v has %v values, "+
				"expected %v", i, len(rep.Data), r.n)
		}
		data.SetRow(i, rep.Data)
	}

	out := mat.NewDense(len(reps), r.k, nil)
	out.Mul(data, r.proj)
	return out, nil
}
