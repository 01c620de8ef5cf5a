package generator

import (
	"context"
	"errors"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lfi/distribution"
	"github.com/samuelfneumann/lfi/simulator"
	"github.com/samuelfneumann/lfi/summarystats"
)

func newGauss(t *testing.T, opts ...Option) *Generator {
	t.Helper()

	sim, err := simulator.NewGauss(2, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	prior, err := distribution.NewUniform([]float64{-1, -1}, []float64{1, 1})
	if err != nil {
		t.Fatal(err)
	}

	g, err := New(sim, prior, summarystats.NewIdentity(2, nil), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestDrawFromPrior(t *testing.T) {
	const n int = 50
	g := newGauss(t, WithSeed(1))

	params, stats, err := g.Draw(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}

	r, c := params.Dims()
	if r != n || c != 2 {
		t.Fatalf("expected params of shape (%v, 2) but got (%v, %v)", n, r, c)
	}
	r, c = stats.Dims()
	if r != n || c != 2 {
		t.Fatalf("expected stats of shape (%v, 2) but got (%v, %v)", n, r, c)
	}

	for i := 0; i < n; i++ {
		p := params.RawRowView(i)
		if p[0] < -1 || p[0] > 1 || p[1] < -1 || p[1] > 1 {
			t.Errorf("parameter %v outside of the prior support", p)
		}
	}
}

func TestDrawReproducible(t *testing.T) {
	a := newGauss(t, WithSeed(9), WithWorkers(3))
	b := newGauss(t, WithSeed(9), WithWorkers(1))

	pa, sa, err := a.Draw(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	pb, sb, err := b.Draw(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}

	if !mat.Equal(pa, pb) || !mat.Equal(sa, sb) {
		t.Error("draws with equal seeds differ")
	}
}

func TestDrawFromProposal(t *testing.T) {
	const n int = 100
	g := newGauss(t, WithSeed(2))

	proposal, err := distribution.NewIsotropic([]float64{5, 5}, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetProposal(proposal); err != nil {
		t.Fatal(err)
	}

	params, _, err := g.Draw(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if !floats.EqualApprox(params.RawRowView(i), []float64{5, 5}, 0.1) {
			t.Errorf("parameter %v not drawn from the proposal",
				params.RawRowView(i))
		}
	}

	wrong, _ := distribution.NewIsotropic([]float64{0}, 1)
	if err := g.SetProposal(wrong); !errors.Is(err, distribution.ErrDimension) {
		t.Errorf("expected ErrDimension but got %v", err)
	}
}

func TestPriorSupportFeedback(t *testing.T) {
	const n int = 50
	g := newGauss(t, WithSeed(3))
	g.feedback = PriorSupport{Prior: g.Prior()}

	// Half of the proposal mass lies outside of the prior support
	proposal, _ := distribution.NewIsotropic([]float64{1, 0}, 0.5)
	if err := g.SetProposal(proposal); err != nil {
		t.Fatal(err)
	}

	params, _, err := g.Draw(context.Background(), n)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if lp := g.Prior().LogProb(params.RawRowView(i)); lp < -10 {
			t.Errorf("parameter %v outside of the prior support was kept",
				params.RawRowView(i))
		}
	}
}

type discardOdd struct {
	AcceptAll
	calls int
}

func (d *discardOdd) SummaryStats(*mat.Dense) Response {
	d.calls++
	if d.calls%2 == 0 {
		return Discard
	}
	return Accept
}

func TestFeedbackDiscard(t *testing.T) {
	g := newGauss(t, WithSeed(4), WithFeedback(&discardOdd{}))

	params, stats, err := g.Draw(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := params.Dims(); r != 5 {
		t.Errorf("expected 5 accepted parameters but got %v", r)
	}
	if r, _ := stats.Dims(); r != 5 {
		t.Errorf("expected 5 accepted statistics but got %v", r)
	}

	// Unchecked draws ignore the feedback
	params, _, err = g.DrawUnchecked(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := params.Dims(); r != 10 {
		t.Errorf("expected 10 unchecked parameters but got %v", r)
	}
}

type badResponse struct{ AcceptAll }

func (badResponse) ProposedParam([]float64) Response { return Discard }

func TestFeedbackBadResponse(t *testing.T) {
	g := newGauss(t, WithFeedback(badResponse{}))

	if _, _, err := g.Draw(context.Background(), 1); !errors.Is(err,
		ErrFeedbackResponse) {
		t.Errorf("expected ErrFeedbackResponse but got %v", err)
	}
}

type rejectAll struct{ AcceptAll }

func (rejectAll) ProposedParam([]float64) Response { return Resample }

func TestFeedbackExhausted(t *testing.T) {
	g := newGauss(t, WithFeedback(rejectAll{}), WithMaxRejections(2))

	if _, _, err := g.Draw(context.Background(), 3); !errors.Is(err,
		ErrExhausted) {
		t.Errorf("expected ErrExhausted but got %v", err)
	}
}
