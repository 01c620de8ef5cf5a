package neuralnet

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/lfi/distribution"
)

// MoG evaluates the network at the summary statistics x and returns the
// predicted mixture of Gaussians over parameters. Variational weights
// are replaced by their means.
func (n Network) MoG(x []float64) (*distribution.MoG, error) {
	if len(x) != n.spec.NInputs {
		return nil, fmt.Errorf("moG: expected %v inputs but got %v",
			n.spec.NInputs, len(x))
	}

	g := G.NewGraph()
	gr, err := n.Build(g, 1, Deterministic())
	if err != nil {
		return nil, fmt.Errorf("moG: %v", err)
	}

	nComp := n.spec.NComponents
	means := make([]G.Value, nComp)
	logPrecs := make([]G.Value, nComp)
	for k := 0; k < nComp; k++ {
		G.Read(gr.Means[k], &means[k])
		G.Read(gr.LogPrecisions[k], &logPrecs[k])
	}
	var logWeights G.Value
	G.Read(gr.LogWeights, &logWeights)

	// The target does not influence the mixture, but the graph computes
	// log densities and so needs a value for it
	input := tensor.New(
		tensor.WithShape(1, n.spec.NInputs),
		tensor.WithBacking(append([]float64(nil), x...)),
	)
	target := tensor.New(
		tensor.WithShape(1, n.spec.NOutputs),
		tensor.WithBacking(make([]float64, n.spec.NOutputs)),
	)
	if err := G.Let(gr.Input, input); err != nil {
		return nil, fmt.Errorf("moG: %v", err)
	}
	if err := G.Let(gr.Target, target); err != nil {
		return nil, fmt.Errorf("moG: %v", err)
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("moG: %v", err)
	}

	lw := values(logWeights)
	weights := make([]float64, nComp)
	comps := make([]*distribution.Gaussian, nComp)
	for k := 0; k < nComp; k++ {
		weights[k] = math.Exp(lw[k])

		lp := values(logPrecs[k])
		prec := make([]float64, len(lp))
		for i := range lp {
			prec[i] = math.Exp(lp[i])
		}

		comps[k], err = distribution.NewGaussianPrecision(values(means[k]),
			mat.NewDiagDense(len(prec), prec))
		if err != nil {
			return nil, fmt.Errorf("moG: component %v: %w", k, err)
		}
	}

	mog, err := distribution.NewMoG(weights, comps)
	if err != nil {
		return nil, fmt.Errorf("moG: %w", err)
	}
	return mog, nil
}

// LogProb returns the log density of each row of theta under the
// mixture predicted from the corresponding row of x. Variational
// weights are replaced by their means.
func (n Network) LogProb(x, theta *mat.Dense) ([]float64, error) {
	rows, cols := x.Dims()
	tRows, tCols := theta.Dims()
	if rows != tRows || cols != n.spec.NInputs || tCols != n.spec.NOutputs {
		return nil, fmt.Errorf("logProb: inputs of shape (%v, %v) and "+
			"targets of shape (%v, %v) for network with %v inputs and %v "+
			"outputs", rows, cols, tRows, tCols, n.spec.NInputs,
			n.spec.NOutputs)
	}

	g := G.NewGraph()
	gr, err := n.Build(g, rows, Deterministic())
	if err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}
	var lprobs G.Value
	G.Read(gr.LProbs, &lprobs)

	if err := G.Let(gr.Input, denseTensor(x)); err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}
	if err := G.Let(gr.Target, denseTensor(theta)); err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("logProb: %v", err)
	}

	return values(lprobs), nil
}

// values returns a copy of the data of a float64 value, which may be a
// scalar
func values(v G.Value) []float64 {
	switch d := v.Data().(type) {
	case []float64:
		return append([]float64(nil), d...)
	case float64:
		return []float64{d}
	default:
		panic(fmt.Sprintf("neuralnet: unexpected value data %T", d))
	}
}

// denseTensor copies a matrix into a tensor of the same shape
func denseTensor(m *mat.Dense) *tensor.Dense {
	r, c := m.Dims()
	backing := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		backing = append(backing, m.RawRowView(i)...)
	}
	return tensor.New(tensor.WithShape(r, c), tensor.WithBacking(backing))
}
