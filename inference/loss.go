package inference

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/lfi/neuralnet"
)

// Names of the observables of the loss which may be monitored during
// training
const (
	// ObservableLProbs is the mean log density of a minibatch
	ObservableLProbs = "loss.lprobs"

	// ObservableKL is the KL divergence of the variational weight
	// posterior from the weight prior. It only exists if the loss is
	// built with svi enabled.
	ObservableKL = "loss.kl"
)

// BuildLoss builds the training loss of a network graph for a round
// with n training examples: the negative mean log density of the
// targets, plus, if svi is true,
//
//	(1/n) KL(q || 𝒩(0, 1/regLambda))
//
// where q is the variational posterior over the network weights. The
// returned observables hold the mean log density and, if svi is true,
// the KL divergence.
//
// If svi is true but the graph has no variational parameters,
// ErrMissingVariationalParameters is returned.
func BuildLoss(gr *neuralnet.Graph, n int, svi bool,
	regLambda float64) (*G.Node, map[string]*G.Node, error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("buildLoss: expected n >= 1 but got %v", n)
	}

	lprobs, err := G.Mean(gr.LProbs)
	if err != nil {
		return nil, nil, fmt.Errorf("buildLoss: %v", err)
	}
	loss, err := G.Neg(lprobs)
	if err != nil {
		return nil, nil, fmt.Errorf("buildLoss: %v", err)
	}

	observables := map[string]*G.Node{ObservableLProbs: lprobs}
	if !svi {
		return loss, observables, nil
	}

	if len(gr.VariationalMeans) == 0 ||
		len(gr.VariationalMeans) != len(gr.VariationalLogStds) {
		return nil, nil, fmt.Errorf("buildLoss: %v means and %v log "+
			"standard deviations: %w", len(gr.VariationalMeans),
			len(gr.VariationalLogStds), ErrMissingVariationalParameters)
	}
	if regLambda <= 0 {
		return nil, nil, fmt.Errorf("buildLoss: expected regLambda > 0 but "+
			"got %v", regLambda)
	}

	kl, err := klZero(gr.ExprGraph(), gr.VariationalMeans,
		gr.VariationalLogStds, regLambda)
	if err != nil {
		return nil, nil, fmt.Errorf("buildLoss: %v", err)
	}
	observables[ObservableKL] = kl

	scale := gr.ExprGraph().Constant(G.NewF64(1 / float64(n)))
	reg, err := G.Mul(scale, kl)
	if err != nil {
		return nil, nil, fmt.Errorf("buildLoss: %v", err)
	}
	if loss, err = G.Add(loss, reg); err != nil {
		return nil, nil, fmt.Errorf("buildLoss: %v", err)
	}

	return loss, observables, nil
}

// klZero returns the KL divergence of the factorized Gaussian
// 𝒩(m, exp(s)²) over P weights from the prior 𝒩(0, 1/λ):
//
//	½ (λ Σ(exp(2s) + m²) - P - 2 Σs - P log λ)
func klZero(g *G.ExprGraph, means, logStds G.Nodes,
	lambda float64) (*G.Node, error) {
	var sqSum, varSum, logStdSum *G.Node
	var size int

	for i := range means {
		m, s := means[i], logStds[i]
		if !m.Shape().Eq(s.Shape()) {
			return nil, fmt.Errorf("klZero: mean of shape %v and log std of "+
				"shape %v", m.Shape(), s.Shape())
		}
		size += m.Shape().TotalSize()

		sq := G.Must(G.Sum(G.Must(G.Square(m))))
		variance := G.Must(G.Sum(G.Must(G.Exp(G.Must(G.Add(s, s))))))
		sum := G.Must(G.Sum(s))

		if i == 0 {
			sqSum, varSum, logStdSum = sq, variance, sum
			continue
		}
		sqSum = G.Must(G.Add(sqSum, sq))
		varSum = G.Must(G.Add(varSum, variance))
		logStdSum = G.Must(G.Add(logStdSum, sum))
	}

	p := float64(size)
	l := g.Constant(G.NewF64(lambda))
	half := g.Constant(G.NewF64(0.5))
	two := g.Constant(G.NewF64(2))
	c := g.Constant(G.NewF64(p + p*math.Log(lambda)))

	kl := G.Must(G.Mul(l, G.Must(G.Add(varSum, sqSum))))
	kl = G.Must(G.Sub(kl, G.Must(G.Mul(two, logStdSum))))
	kl = G.Must(G.Sub(kl, c))
	return G.Mul(half, kl)
}
