// Package simulator defines forward models and runs them over batches
// of parameter vectors.
package simulator

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/iter"
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/lfi/rng"
)

// Repetition is the result of a single forward run of a simulator
type Repetition struct {
	// Data holds the simulated observations
	Data []float64

	// Extra holds any additional outputs of the forward run
	Extra map[string]interface{}
}

// Simulator is a forward model
type Simulator interface {
	// DimParam returns the dimension of parameter vectors
	DimParam() int

	// GenSingle runs the forward model once for params, drawing any
	// randomness from src
	GenSingle(params []float64, src rand.Source) (Repetition, error)
}

// Gen runs the forward model nReps times for each parameter vector in
// params. Runs are spread over at most workers goroutines (all
// available CPUs if workers <= 0). Each parameter vector is simulated
// with its own source derived from seeds, so results do not depend on
// scheduling. The returned slice is aligned with params.
func Gen(ctx context.Context, sim Simulator, params [][]float64, nReps int,
	seeds rng.Stream, workers int) ([][]Repetition, rng.Stream, error) {
	if nReps < 1 {
		return nil, seeds, fmt.Errorf("gen: expected nReps >= 1 but got %v",
			nReps)
	}

	type task struct {
		params []float64
		src    rand.Source
	}
	tasks := make([]task, len(params))
	for i, p := range params {
		if len(p) != sim.DimParam() {
			return nil, seeds, fmt.Errorf("gen: parameter vector %v has "+
				"length %v, expected %v", i, len(p), sim.DimParam())
		}

		var seed uint64
		var ok bool
		seed, ok, seeds = seeds.Next()
		tasks[i] = task{params: p, src: rng.Source(seed, ok)}
	}

	mapper := iter.Mapper[task, []Repetition]{MaxGoroutines: workers}
	out, err := mapper.MapErr(tasks, func(t *task) ([]Repetition, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		reps := make([]Repetition, nReps)
		for r := range reps {
			rep, err := sim.GenSingle(t.params, t.src)
			if err != nil {
				return nil, fmt.Errorf("params %v: %w", t.params, err)
			}
			reps[r] = rep
		}
		return reps, nil
	})
	if err != nil {
		return nil, seeds, fmt.Errorf("gen: %w", err)
	}

	return out, seeds, nil
}
