package simulator

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Gauss is a simulator whose data is the parameter vector corrupted by
// isotropic Gaussian noise. It has a closed-form posterior for
// Gaussian priors, which makes it useful for checking inference.
type Gauss struct {
	dim   int
	noise float64
}

// NewGauss returns a Gauss simulator over dim-dimensional parameters
// with the given noise standard deviation
func NewGauss(dim int, noise float64) (*Gauss, error) {
	if dim < 1 {
		return nil, fmt.Errorf("newGauss: expected dim >= 1 but got %v", dim)
	}
	if noise <= 0 {
		return nil, fmt.Errorf("newGauss: expected noise > 0 but got %v",
			noise)
	}

	return &Gauss{dim: dim, noise: noise}, nil
}

// DimParam returns the dimension of the parameters
func (g *Gauss) DimParam() int { return g.dim }

// Noise returns the standard deviation of the observation noise
func (g *Gauss) Noise() float64 { return g.noise }

// GenSingle simulates one noisy observation of params
func (g *Gauss) GenSingle(params []float64, src rand.Source) (Repetition,
	error) {
	if len(params) != g.dim {
		return Repetition{}, fmt.Errorf("genSingle: expected %v parameters "+
			"but got %v", g.dim, len(params))
	}

	noise := distuv.Normal{Mu: 0, Sigma: g.noise, Src: src}
	data := make([]float64, g.dim)
	for i, p := range params {
		data[i] = p + noise.Rand()
	}

	return Repetition{Data: data}, nil
}
