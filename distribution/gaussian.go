package distribution

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

var logTwoPi = math.Log(2 * math.Pi)

// Gaussian is a multivariate normal distribution.
//
// A Gaussian keeps both parameterizations: the natural parameters
// (precision P and h = P m) which are closed under multiplication and
// division of densities, and the moment parameters (mean m and
// covariance S) used for sampling and projection.
type Gaussian struct {
	dim int

	prec *mat.SymDense
	h    *mat.VecDense

	mean *mat.VecDense
	cov  *mat.SymDense

	logDetPrec float64
}

// NewGaussian returns a Gaussian with the given mean and covariance.
// The covariance must be positive definite.
func NewGaussian(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	if cov.Symmetric() != len(mean) {
		return nil, fmt.Errorf("newGaussian: mean of length %v and "+
			"covariance of size %v: %w", len(mean), cov.Symmetric(),
			ErrDimension)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("newGaussian: covariance is not positive "+
			"definite: %w", ErrImproper)
	}

	prec := mat.NewSymDense(len(mean), nil)
	if err := chol.InverseTo(prec); err != nil {
		return nil, fmt.Errorf("newGaussian: could not invert "+
			"covariance: %v", err)
	}

	m := mat.NewVecDense(len(mean), append([]float64(nil), mean...))
	h := mat.NewVecDense(len(mean), nil)
	h.MulVec(prec, m)

	covCopy := mat.NewSymDense(len(mean), nil)
	covCopy.CopySym(cov)

	return &Gaussian{
		dim:        len(mean),
		prec:       prec,
		h:          h,
		mean:       m,
		cov:        covCopy,
		logDetPrec: -chol.LogDet(),
	}, nil
}

// NewIsotropic returns a Gaussian with the given mean and the
// covariance std² I.
func NewIsotropic(mean []float64, std float64) (*Gaussian, error) {
	diag := make([]float64, len(mean))
	for i := range diag {
		diag[i] = std * std
	}
	return NewGaussian(mean, mat.NewDiagDense(len(mean), diag))
}

// NewGaussianPrecision returns a Gaussian with the given mean and
// precision matrix. The precision must be positive definite.
func NewGaussianPrecision(mean []float64, prec mat.Symmetric) (*Gaussian,
	error) {
	if prec.Symmetric() != len(mean) {
		return nil, fmt.Errorf("newGaussianPrecision: mean of length %v "+
			"and precision of size %v: %w", len(mean), prec.Symmetric(),
			ErrDimension)
	}

	p := mat.NewSymDense(len(mean), nil)
	p.CopySym(prec)

	h := mat.NewVecDense(len(mean), nil)
	h.MulVec(p, mat.NewVecDense(len(mean), append([]float64(nil), mean...)))

	g, err := newNatural(p, h)
	if err != nil {
		return nil, fmt.Errorf("newGaussianPrecision: %w", err)
	}
	return g, nil
}

// newNatural constructs a Gaussian from natural parameters, taking
// ownership of prec and h
func newNatural(prec *mat.SymDense, h *mat.VecDense) (*Gaussian, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(prec); !ok {
		return nil, fmt.Errorf("precision is not positive definite: %w",
			ErrImproper)
	}

	n := prec.Symmetric()
	mean := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(mean, h); err != nil {
		return nil, fmt.Errorf("could not solve for mean: %w", ErrImproper)
	}

	cov := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(cov); err != nil {
		return nil, fmt.Errorf("could not invert precision: %w", ErrImproper)
	}

	return &Gaussian{
		dim:        n,
		prec:       prec,
		h:          h,
		mean:       mean,
		cov:        cov,
		logDetPrec: chol.LogDet(),
	}, nil
}

// Dim returns the dimension of the Gaussian
func (g *Gaussian) Dim() int { return g.dim }

// Mean stores the mean of the Gaussian in dst
func (g *Gaussian) Mean(dst []float64) []float64 {
	dst = resize(dst, g.dim)
	copy(dst, g.mean.RawVector().Data)
	return dst
}

// Std stores the marginal standard deviations of the Gaussian in dst
func (g *Gaussian) Std(dst []float64) []float64 {
	dst = resize(dst, g.dim)
	for i := range dst {
		dst[i] = math.Sqrt(g.cov.At(i, i))
	}
	return dst
}

// Cov returns a copy of the covariance matrix
func (g *Gaussian) Cov() *mat.SymDense {
	c := mat.NewSymDense(g.dim, nil)
	c.CopySym(g.cov)
	return c
}

// Prec returns a copy of the precision matrix
func (g *Gaussian) Prec() *mat.SymDense {
	p := mat.NewSymDense(g.dim, nil)
	p.CopySym(g.prec)
	return p
}

// LogProb returns the log density of x
func (g *Gaussian) LogProb(x []float64) float64 {
	if len(x) != g.dim {
		panic(ErrDimension)
	}

	diff := mat.NewVecDense(g.dim, nil)
	diff.SubVec(mat.NewVecDense(g.dim, x), g.mean)

	quad := mat.Inner(diff, g.prec, diff)
	return 0.5*(g.logDetPrec-quad) - 0.5*float64(g.dim)*logTwoPi
}

// Sample draws n samples from the Gaussian
func (g *Gaussian) Sample(n int, src rand.Source) *mat.Dense {
	normal, ok := distmv.NewNormal(g.mean.RawVector().Data, g.cov, src)
	if !ok {
		// The covariance was factorized at construction
		panic("distribution: covariance lost positive definiteness")
	}

	out := mat.NewDense(n, g.dim, nil)
	for i := 0; i < n; i++ {
		normal.Rand(out.RawRowView(i))
	}
	return out
}

// logNormalizer returns the log of the normalizing constant of the
// unnormalized density exp(-½ xᵀPx + hᵀx):
//
//		A(P, h) = ½ hᵀm - ½ log|P| + D/2 log 2π
func (g *Gaussian) logNormalizer() float64 {
	return 0.5*mat.Dot(g.h, g.mean) - 0.5*g.logDetPrec +
		0.5*float64(g.dim)*logTwoPi
}

// Mul returns the normalized product of the densities of the receiver
// and o
func (g *Gaussian) Mul(o *Gaussian) (*Gaussian, error) {
	prod, _, err := g.combine(o, 1)
	if err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}
	return prod, nil
}

// Div returns the normalized quotient of the densities of the receiver
// and o. The quotient is proper only if the precision of the receiver
// exceeds the precision of o in every direction; otherwise ErrImproper
// is returned.
func (g *Gaussian) Div(o *Gaussian) (*Gaussian, error) {
	quot, _, err := g.combine(o, -1)
	if err != nil {
		return nil, fmt.Errorf("div: %w", err)
	}
	return quot, nil
}

// combine multiplies (sign = 1) or divides (sign = -1) the densities
// of the receiver and o. It returns the normalized result together
// with the log of the scale factor c such that
//
//		g(x) · o(x)^sign = c · result(x)
func (g *Gaussian) combine(o *Gaussian, sign float64) (*Gaussian, float64,
	error) {
	if g.dim != o.dim {
		return nil, 0, fmt.Errorf("dimensions %v and %v: %w", g.dim, o.dim,
			ErrDimension)
	}

	prec := mat.NewSymDense(g.dim, nil)
	for i := 0; i < g.dim; i++ {
		for j := i; j < g.dim; j++ {
			prec.SetSym(i, j, g.prec.At(i, j)+sign*o.prec.At(i, j))
		}
	}

	h := mat.NewVecDense(g.dim, nil)
	h.AddScaledVec(g.h, sign, o.h)

	result, err := newNatural(prec, h)
	if err != nil {
		return nil, 0, err
	}

	logScale := result.logNormalizer() - g.logNormalizer() -
		sign*o.logNormalizer()
	return result, logScale, nil
}

// ZTransInv returns the distribution of mean + std ⊙ x for x
// distributed according to the receiver
func (g *Gaussian) ZTransInv(mean, std []float64) (*Gaussian, error) {
	if len(mean) != g.dim || len(std) != g.dim {
		return nil, fmt.Errorf("zTransInv: %w", ErrDimension)
	}

	m := make([]float64, g.dim)
	cov := mat.NewSymDense(g.dim, nil)
	for i := 0; i < g.dim; i++ {
		m[i] = mean[i] + std[i]*g.mean.AtVec(i)
		for j := i; j < g.dim; j++ {
			cov.SetSym(i, j, std[i]*std[j]*g.cov.At(i, j))
		}
	}

	z, err := NewGaussian(m, cov)
	if err != nil {
		return nil, fmt.Errorf("zTransInv: %w", err)
	}
	return z, nil
}
