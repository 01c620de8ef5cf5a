package distribution

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

const tolerance float64 = 1e-8

// randomGaussian returns a Gaussian with a random mean and a random
// positive definite covariance
func randomGaussian(t *testing.T, rng *rand.Rand, dim int,
	scale float64) *Gaussian {
	a := mat.NewDense(dim, dim, nil)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			a.Set(i, j, rng.NormFloat64()*scale)
		}
	}

	cov := mat.NewSymDense(dim, nil)
	cov.SymOuterK(1, a)
	for i := 0; i < dim; i++ {
		cov.SetSym(i, i, cov.At(i, i)+scale)
	}

	mean := make([]float64, dim)
	for i := range mean {
		mean[i] = rng.NormFloat64()
	}

	g, err := NewGaussian(mean, cov)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// logRatioConstant checks that lhs(x) - rhs(x) does not depend on x
// for the given points, i.e. that lhs and rhs are the same density up
// to normalization
func logRatioConstant(t *testing.T, points *mat.Dense, lhs,
	rhs func([]float64) float64) {
	t.Helper()

	rows, _ := points.Dims()
	first := lhs(points.RawRowView(0)) - rhs(points.RawRowView(0))
	for i := 1; i < rows; i++ {
		x := points.RawRowView(i)
		diff := lhs(x) - rhs(x)
		if math.Abs(diff-first) > 1e-6 {
			t.Errorf("log density ratio not constant: %v at point 0, %v at "+
				"point %v", first, diff, i)
		}
	}
}

func TestGaussianLogProb(t *testing.T) {
	const tests int = 10
	const dim int = 3
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < tests; i++ {
		g := randomGaussian(t, rng, dim, 1)

		target, ok := distmv.NewNormal(g.Mean(nil), g.Cov(), nil)
		if !ok {
			t.Fatal("could not construct target normal")
		}

		points := g.Sample(20, rand.NewSource(uint64(i)))
		for j := 0; j < 20; j++ {
			x := points.RawRowView(j)
			if math.Abs(g.LogProb(x)-target.LogProb(x)) > tolerance {
				t.Errorf("expected log prob %v but got %v", target.LogProb(x),
					g.LogProb(x))
			}
		}
	}
}

func TestGaussianPrecisionRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	g := randomGaussian(t, rng, 4, 1)

	p, err := NewGaussianPrecision(g.Mean(nil), g.Prec())
	if err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(g.Mean(nil), p.Mean(nil), 1e-9) {
		t.Errorf("means differ: %v and %v", g.Mean(nil), p.Mean(nil))
	}
	if !mat.EqualApprox(g.Cov(), p.Cov(), 1e-9) {
		t.Errorf("covariances differ:\n%v\n%v", mat.Formatted(g.Cov()),
			mat.Formatted(p.Cov()))
	}
}

func TestGaussianMulDiv(t *testing.T) {
	const tests int = 10
	const dim int = 2
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < tests; i++ {
		a := randomGaussian(t, rng, dim, 1)
		b := randomGaussian(t, rng, dim, 1)

		prod, err := a.Mul(b)
		if err != nil {
			t.Fatal(err)
		}
		points := prod.Sample(10, rand.NewSource(uint64(i)))
		logRatioConstant(t, points, prod.LogProb, func(x []float64) float64 {
			return a.LogProb(x) + b.LogProb(x)
		})

		// Dividing the product by b recovers a
		back, err := prod.Div(b)
		if err != nil {
			t.Fatal(err)
		}
		if !floats.EqualApprox(a.Mean(nil), back.Mean(nil), 1e-6) {
			t.Errorf("expected mean %v after division but got %v",
				a.Mean(nil), back.Mean(nil))
		}
		if !mat.EqualApprox(a.Cov(), back.Cov(), 1e-6) {
			t.Errorf("expected covariance\n%v\nafter division but got\n%v",
				mat.Formatted(a.Cov()), mat.Formatted(back.Cov()))
		}
	}
}

func TestGaussianDivImproper(t *testing.T) {
	narrow, err := NewIsotropic([]float64{0, 0}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	wide, err := NewIsotropic([]float64{0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := wide.Div(narrow); !errors.Is(err, ErrImproper) {
		t.Errorf("expected ErrImproper but got %v", err)
	}
	if _, err := narrow.Div(wide); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGaussianDimensionMismatch(t *testing.T) {
	a, _ := NewIsotropic([]float64{0, 0}, 1)
	b, _ := NewIsotropic([]float64{0, 0, 0}, 1)

	if _, err := a.Mul(b); !errors.Is(err, ErrDimension) {
		t.Errorf("expected ErrDimension but got %v", err)
	}
}

func TestGaussianZTransInv(t *testing.T) {
	g, err := NewGaussian([]float64{1, -1}, mat.NewSymDense(2, []float64{
		1, 0.5,
		0.5, 2,
	}))
	if err != nil {
		t.Fatal(err)
	}

	z, err := g.ZTransInv([]float64{10, 20}, []float64{2, 3})
	if err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(z.Mean(nil), []float64{12, 17}, tolerance) {
		t.Errorf("expected mean [12 17] but got %v", z.Mean(nil))
	}
	want := mat.NewSymDense(2, []float64{
		4, 3,
		3, 18,
	})
	if !mat.EqualApprox(z.Cov(), want, tolerance) {
		t.Errorf("expected covariance\n%v\nbut got\n%v", mat.Formatted(want),
			mat.Formatted(z.Cov()))
	}
}

func TestMoGLogProb(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := randomGaussian(t, rng, 2, 1)
	b := randomGaussian(t, rng, 2, 1)

	m, err := NewMoG([]float64{1, 3}, []*Gaussian{a, b})
	if err != nil {
		t.Fatal(err)
	}

	if !floats.EqualApprox(m.Weights(), []float64{0.25, 0.75}, tolerance) {
		t.Errorf("expected normalized weights but got %v", m.Weights())
	}

	points := m.Sample(20, rand.NewSource(5))
	for i := 0; i < 20; i++ {
		x := points.RawRowView(i)
		want := math.Log(0.25*math.Exp(a.LogProb(x)) +
			0.75*math.Exp(b.LogProb(x)))
		if math.Abs(m.LogProb(x)-want) > 1e-6 {
			t.Errorf("expected log prob %v but got %v", want, m.LogProb(x))
		}
	}
}

func TestMoGArithmetic(t *testing.T) {
	const tests int = 5
	const dim int = 2
	rng := rand.New(rand.NewSource(6))

	for i := 0; i < tests; i++ {
		comps := []*Gaussian{
			randomGaussian(t, rng, dim, 0.2),
			randomGaussian(t, rng, dim, 0.2),
			randomGaussian(t, rng, dim, 0.2),
		}
		m, err := NewMoG([]float64{0.2, 0.3, 0.5}, comps)
		if err != nil {
			t.Fatal(err)
		}
		g := randomGaussian(t, rng, dim, 0.2)
		wide, err := NewIsotropic(g.Mean(nil), 10)
		if err != nil {
			t.Fatal(err)
		}

		prod, err := m.MulGaussian(g)
		if err != nil {
			t.Fatal(err)
		}
		points := prod.Sample(10, rand.NewSource(uint64(i)))
		logRatioConstant(t, points, prod.LogProb, func(x []float64) float64 {
			return m.LogProb(x) + g.LogProb(x)
		})

		quot, err := m.DivGaussian(wide)
		if err != nil {
			t.Fatal(err)
		}
		points = quot.Sample(10, rand.NewSource(uint64(i)))
		logRatioConstant(t, points, quot.LogProb, func(x []float64) float64 {
			return m.LogProb(x) - wide.LogProb(x)
		})

		// Arguments are left untouched
		if !floats.EqualApprox(m.Weights(), []float64{0.2, 0.3, 0.5},
			tolerance) {
			t.Errorf("mixture weights were mutated: %v", m.Weights())
		}
	}
}

func TestMoGProjectToGaussian(t *testing.T) {
	a, _ := NewIsotropic([]float64{-1}, 1)
	b, _ := NewIsotropic([]float64{3}, 2)
	m, err := NewMoG([]float64{0.5, 0.5}, []*Gaussian{a, b})
	if err != nil {
		t.Fatal(err)
	}

	p, err := m.ProjectToGaussian()
	if err != nil {
		t.Fatal(err)
	}

	// mean = 1, E[x²] = 0.5(1 + 1) + 0.5(4 + 9) = 7.5, var = 6.5
	if math.Abs(p.Mean(nil)[0]-1) > tolerance {
		t.Errorf("expected mean 1 but got %v", p.Mean(nil)[0])
	}
	if math.Abs(p.Cov().At(0, 0)-6.5) > tolerance {
		t.Errorf("expected variance 6.5 but got %v", p.Cov().At(0, 0))
	}
	if math.Abs(m.Std(nil)[0]-math.Sqrt(6.5)) > tolerance {
		t.Errorf("expected std %v but got %v", math.Sqrt(6.5), m.Std(nil)[0])
	}
}

func TestMoGSingleComponentProjection(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := randomGaussian(t, rng, 3, 1)
	m, err := NewMoG([]float64{1}, []*Gaussian{g})
	if err != nil {
		t.Fatal(err)
	}

	p, err := m.ProjectToGaussian()
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(p.Cov(), g.Cov(), 1e-9) {
		t.Error("projection of a single component changed its covariance")
	}
}

func TestUniform(t *testing.T) {
	u, err := NewUniform([]float64{-1, 0}, []float64{1, 4})
	if err != nil {
		t.Fatal(err)
	}

	if lp := u.LogProb([]float64{0, 1}); math.Abs(lp-math.Log(1./8)) >
		tolerance {
		t.Errorf("expected log prob %v but got %v", math.Log(1./8), lp)
	}
	if lp := u.LogProb([]float64{2, 1}); !math.IsInf(lp, -1) {
		t.Errorf("expected -Inf outside the box but got %v", lp)
	}

	samples := u.Sample(100, rand.NewSource(8))
	for i := 0; i < 100; i++ {
		x := samples.RawRowView(i)
		if x[0] < -1 || x[0] > 1 || x[1] < 0 || x[1] > 4 {
			t.Errorf("sample %v outside of the box", x)
		}
	}

	if !floats.EqualApprox(u.Mean(nil), []float64{0, 2}, tolerance) {
		t.Errorf("expected mean [0 2] but got %v", u.Mean(nil))
	}

	bounds := u.Bounds()
	if len(bounds) != 2 || bounds[0].Min != -1 || bounds[0].Max != 1 ||
		bounds[1].Min != 0 || bounds[1].Max != 4 {
		t.Errorf("expected bounds [{-1 1} {0 4}] but got %v", bounds)
	}
	bounds[0].Min = 100
	if u.Bounds()[0].Min != -1 {
		t.Error("modifying the returned bounds changed the distribution")
	}

	if _, err := NewUniform([]float64{1}, []float64{1}); err == nil {
		t.Error("expected an error for an empty box")
	}
}

type studentsT struct{ Distribution }

func TestKindOf(t *testing.T) {
	g, _ := NewIsotropic([]float64{0}, 1)
	u, _ := NewUniform([]float64{0}, []float64{1})

	tests := []struct {
		dist Distribution
		want Kind
	}{
		{g, KindGaussian},
		{u, KindUniform},
		{studentsT{}, KindUnsupported},
	}

	for _, test := range tests {
		if got := KindOf(test.dist); got != test.want {
			t.Errorf("expected %v for %T but got %v", test.want, test.dist,
				got)
		}
	}
}
