package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// Uniform is a uniform distribution over an axis-aligned box
type Uniform struct {
	bounds []r1.Interval
	dist   *distmv.Uniform
}

// NewUniform returns a uniform distribution over the box with the
// given lower and upper corners
func NewUniform(lower, upper []float64) (*Uniform, error) {
	if len(lower) != len(upper) {
		return nil, fmt.Errorf("newUniform: lower of length %v and upper "+
			"of length %v: %w", len(lower), len(upper), ErrDimension)
	}
	if len(lower) == 0 {
		return nil, fmt.Errorf("newUniform: empty bounds")
	}

	bounds := make([]r1.Interval, len(lower))
	for i := range bounds {
		if !(lower[i] < upper[i]) {
			return nil, fmt.Errorf("newUniform: lower bound %v not below "+
				"upper bound %v in dimension %v", lower[i], upper[i], i)
		}
		bounds[i] = r1.Interval{Min: lower[i], Max: upper[i]}
	}

	return &Uniform{
		bounds: bounds,
		dist:   distmv.NewUniform(bounds, nil),
	}, nil
}

// Dim returns the dimension of the box
func (u *Uniform) Dim() int { return len(u.bounds) }

// Bounds returns a copy of the bounds of the box
func (u *Uniform) Bounds() []r1.Interval {
	return append([]r1.Interval(nil), u.bounds...)
}

// LogProb returns the log density of x, which is -Inf outside the box
func (u *Uniform) LogProb(x []float64) float64 {
	if len(x) != len(u.bounds) {
		panic(ErrDimension)
	}
	return u.dist.LogProb(x)
}

// Sample draws n samples uniformly from the box
func (u *Uniform) Sample(n int, src rand.Source) *mat.Dense {
	dist := distmv.NewUniform(u.bounds, src)

	out := mat.NewDense(n, u.Dim(), nil)
	for i := 0; i < n; i++ {
		dist.Rand(out.RawRowView(i))
	}
	return out
}

// Mean stores the center of the box in dst
func (u *Uniform) Mean(dst []float64) []float64 {
	dst = resize(dst, u.Dim())
	return u.dist.Mean(dst)
}

// Std stores the marginal standard deviations in dst
func (u *Uniform) Std(dst []float64) []float64 {
	dst = resize(dst, u.Dim())
	for i, b := range u.bounds {
		dst[i] = (b.Max - b.Min) / math.Sqrt(12)
	}
	return dst
}
