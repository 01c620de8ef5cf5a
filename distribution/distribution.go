// Package distribution provides the closed-form probability
// distributions over parameter vectors used by likelihood-free
// inference: Gaussians, mixtures of Gaussians and uniform boxes.
//
// Gaussians are stored in natural parameters (precision P and
// precision-weighted mean h = P m) so that density multiplication and
// division are exact additions and subtractions of natural parameters.
// Operations never mutate their receiver or arguments.
package distribution

import (
	"errors"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrImproper is returned when density arithmetic produces a density
	// which cannot be normalized, e.g. dividing by a Gaussian which is
	// narrower than the dividend.
	ErrImproper = errors.New("improper distribution")

	// ErrDimension is returned when distributions of different
	// dimensionality are combined.
	ErrDimension = errors.New("dimension mismatch")
)

// Distribution is a probability distribution over real vectors
type Distribution interface {
	// Dim returns the dimension of the vectors the distribution is
	// defined over
	Dim() int

	// LogProb returns the log of the probability density of x, which
	// must have length Dim()
	LogProb(x []float64) float64

	// Sample draws n samples from the distribution using src. Each row
	// of the returned matrix is a sample.
	Sample(n int, src rand.Source) *mat.Dense

	// Mean stores the mean of the distribution in dst and returns it.
	// If dst is nil, a new slice is allocated.
	Mean(dst []float64) []float64

	// Std stores the marginal standard deviations of the distribution
	// in dst and returns it. If dst is nil, a new slice is allocated.
	Std(dst []float64) []float64
}

// Kind is the family of a Distribution, as far as density correction
// is concerned
type Kind int

const (
	// KindUnsupported is any family other than the ones below
	KindUnsupported Kind = iota
	KindUniform
	KindGaussian
)

// KindOf returns the family of d
func KindOf(d Distribution) Kind {
	switch d.(type) {
	case *Uniform:
		return KindUniform
	case *Gaussian:
		return KindGaussian
	default:
		return KindUnsupported
	}
}

func (k Kind) String() string {
	switch k {
	case KindUniform:
		return "Uniform"
	case KindGaussian:
		return "Gaussian"
	default:
		return "Unsupported"
	}
}

func resize(dst []float64, n int) []float64 {
	if dst == nil {
		return make([]float64, n)
	}
	if len(dst) != n {
		panic(ErrDimension)
	}
	return dst
}
