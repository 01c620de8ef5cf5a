package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MoG is a mixture of Gaussians:
//
//		p(x) = Σ_k a_k 𝒩(x; m_k, S_k)
//
// with non-negative mixing weights a_k summing to one.
type MoG struct {
	weights    []float64
	components []*Gaussian
}

// NewMoG returns a mixture of the given components. The weights must
// be non-negative and have a positive sum; they are normalized.
func NewMoG(weights []float64, components []*Gaussian) (*MoG, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("newMoG: no components")
	}
	if len(weights) != len(components) {
		return nil, fmt.Errorf("newMoG: %v weights for %v components",
			len(weights), len(components))
	}

	dim := components[0].Dim()
	for i, c := range components {
		if c.Dim() != dim {
			return nil, fmt.Errorf("newMoG: component %v has dimension %v, "+
				"expected %v: %w", i, c.Dim(), dim, ErrDimension)
		}
	}

	var sum float64
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("newMoG: invalid weight %v at index %v",
				w, i)
		}
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("newMoG: weights sum to %v", sum)
	}

	w := make([]float64, len(weights))
	for i := range w {
		w[i] = weights[i] / sum
	}

	return &MoG{
		weights:    w,
		components: append([]*Gaussian(nil), components...),
	}, nil
}

// newMoGLog returns a mixture with unnormalized log weights
func newMoGLog(logWeights []float64, components []*Gaussian) (*MoG, error) {
	norm := floats.LogSumExp(logWeights)
	if math.IsInf(norm, 0) || math.IsNaN(norm) {
		return nil, fmt.Errorf("mixing weights cannot be normalized: %w",
			ErrImproper)
	}

	w := make([]float64, len(logWeights))
	for i, lw := range logWeights {
		w[i] = math.Exp(lw - norm)
	}
	return NewMoG(w, components)
}

// Dim returns the dimension of the mixture
func (m *MoG) Dim() int { return m.components[0].Dim() }

// NComponents returns the number of mixture components
func (m *MoG) NComponents() int { return len(m.components) }

// Weights returns a copy of the mixing weights
func (m *MoG) Weights() []float64 {
	return append([]float64(nil), m.weights...)
}

// Component returns the ith mixture component
func (m *MoG) Component(i int) *Gaussian { return m.components[i] }

// LogProb returns the log density of x
func (m *MoG) LogProb(x []float64) float64 {
	lp := make([]float64, len(m.components))
	for k, c := range m.components {
		lp[k] = math.Log(m.weights[k]) + c.LogProb(x)
	}
	return floats.LogSumExp(lp)
}

// Sample draws n samples from the mixture
func (m *MoG) Sample(n int, src rand.Source) *mat.Dense {
	cat := distuv.NewCategorical(m.weights, src)

	out := mat.NewDense(n, m.Dim(), nil)
	for i := 0; i < n; i++ {
		k := int(cat.Rand())
		s := m.components[k].Sample(1, src)
		copy(out.RawRowView(i), s.RawRowView(0))
	}
	return out
}

// Mean stores the mean of the mixture in dst
func (m *MoG) Mean(dst []float64) []float64 {
	dst = resize(dst, m.Dim())
	for i := range dst {
		dst[i] = 0
	}

	mean := make([]float64, m.Dim())
	for k, c := range m.components {
		floats.AddScaled(dst, m.weights[k], c.Mean(mean))
	}
	return dst
}

// Std stores the marginal standard deviations of the mixture in dst
func (m *MoG) Std(dst []float64) []float64 {
	dst = resize(dst, m.Dim())
	cov := m.covariance()
	for i := range dst {
		dst[i] = math.Sqrt(cov.At(i, i))
	}
	return dst
}

// covariance returns the covariance of the mixture:
//
//		S = Σ_k a_k (S_k + m_k m_kᵀ) - m mᵀ
func (m *MoG) covariance() *mat.SymDense {
	dim := m.Dim()
	mean := mat.NewVecDense(dim, m.Mean(nil))

	cov := mat.NewSymDense(dim, nil)
	for k, c := range m.components {
		second := c.Cov()
		second.SymRankOne(second, 1, c.mean)
		cov.AddSym(cov, scaleSym(m.weights[k], second))
	}
	cov.SymRankOne(cov, -1, mean)

	return cov
}

// ProjectToGaussian returns the Gaussian with the same mean and
// covariance as the mixture
func (m *MoG) ProjectToGaussian() (*Gaussian, error) {
	g, err := NewGaussian(m.Mean(nil), m.covariance())
	if err != nil {
		return nil, fmt.Errorf("projectToGaussian: %w", err)
	}
	return g, nil
}

// MulGaussian returns the normalized product of the mixture density
// and the density of g. The product of a mixture of Gaussians and a
// Gaussian is again a mixture of Gaussians whose mixing weights are
// rescaled by the overlap of each component with g.
func (m *MoG) MulGaussian(g *Gaussian) (*MoG, error) {
	prod, err := m.combine(g, 1)
	if err != nil {
		return nil, fmt.Errorf("mulGaussian: %w", err)
	}
	return prod, nil
}

// DivGaussian returns the normalized quotient of the mixture density
// and the density of g. Each component must have a larger precision
// than g in every direction, otherwise ErrImproper is returned.
func (m *MoG) DivGaussian(g *Gaussian) (*MoG, error) {
	quot, err := m.combine(g, -1)
	if err != nil {
		return nil, fmt.Errorf("divGaussian: %w", err)
	}
	return quot, nil
}

func (m *MoG) combine(g *Gaussian, sign float64) (*MoG, error) {
	if g.Dim() != m.Dim() {
		return nil, fmt.Errorf("dimensions %v and %v: %w", m.Dim(), g.Dim(),
			ErrDimension)
	}

	comps := make([]*Gaussian, len(m.components))
	logWeights := make([]float64, len(m.components))
	for k, c := range m.components {
		res, logScale, err := c.combine(g, sign)
		if err != nil {
			return nil, fmt.Errorf("component %v: %w", k, err)
		}
		comps[k] = res
		logWeights[k] = math.Log(m.weights[k]) + logScale
	}

	return newMoGLog(logWeights, comps)
}

// ZTransInv returns the distribution of mean + std ⊙ x for x
// distributed according to the receiver
func (m *MoG) ZTransInv(mean, std []float64) (*MoG, error) {
	comps := make([]*Gaussian, len(m.components))
	for k, c := range m.components {
		z, err := c.ZTransInv(mean, std)
		if err != nil {
			return nil, fmt.Errorf("zTransInv: component %v: %w", k, err)
		}
		comps[k] = z
	}
	return NewMoG(m.weights, comps)
}

func scaleSym(f float64, s *mat.SymDense) *mat.SymDense {
	out := mat.NewSymDense(s.Symmetric(), nil)
	out.ScaleSym(f, s)
	return out
}
