package neuralnet

import (
	"fmt"
	"hash"

	"github.com/chewxy/hm"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/lfi"
)

// normalSampleOp draws a fresh sample from 𝒩(mean, stddev) element-wise
// each time it is executed. It is not differentiable; it only
// provides the noise of the reparameterization trick.
type normalSampleOp struct {
	name   string // Distinguishes ops of equal shape in the graph hash
	dt     tensor.Dtype
	shape  tensor.Shape
	dist   distuv.Normal
	source rand.Source
}

func newNormalSampleOp(name string, dt tensor.Dtype, source rand.Source,
	shape ...int) (*normalSampleOp, error) {
	if dt != tensor.Float64 {
		return nil, fmt.Errorf("newNormalSampleOp: dtype %v not supported",
			dt)
	}

	return &normalSampleOp{
		name:   name,
		dt:     dt,
		shape:  tensor.Shape(shape).Clone(),
		source: source,
		dist: distuv.Normal{
			Mu:    0.0,
			Sigma: 1.0,
			Src:   source,
		},
	}, nil
}

// normalRand returns a node sampling from 𝒩(mean, stddev) each time the
// graph is run
func normalRand(name string, mean, stddev *G.Node,
	source rand.Source) (*G.Node, error) {
	if mean.Dtype() != stddev.Dtype() {
		return nil, fmt.Errorf("normalRand: mean and stddev should have "+
			"same dtype but got %v and %v", mean.Dtype(), stddev.Dtype())
	}

	if !mean.Shape().Eq(stddev.Shape()) {
		return nil, fmt.Errorf("normalRand: mean and stddev should have "+
			"same shape but got %v and %v", mean.Shape(), stddev.Shape())
	}

	n, err := newNormalSampleOp(name, mean.Dtype(), source,
		mean.Shape()...)
	if err != nil {
		return nil, fmt.Errorf("normalRand: %v", err)
	}

	return G.ApplyOp(n, mean, stddev)
}

func (n *normalSampleOp) Arity() int { return 2 }

func (n *normalSampleOp) Type() hm.Type {
	tt := G.TensorType{
		Dims: n.shape.Dims(),
		Of:   n.dt,
	}

	return hm.NewFnType(tt, tt, tt)
}

func (n *normalSampleOp) InferShape(...G.DimSizer) (tensor.Shape, error) {
	return n.shape.Clone(), nil
}

// DiffWRT marks no input as differentiable. Gradients flow through the
// reparameterization around the sample instead.
func (n *normalSampleOp) DiffWRT(inputs int) []bool {
	return make([]bool, inputs)
}

func (n *normalSampleOp) SymDiff(inputs G.Nodes, output, grad *G.Node) (
	G.Nodes, error) {
	return nil, fmt.Errorf("symDiff: %v is not differentiable", n)
}

func (n *normalSampleOp) ReturnsPtr() bool { return false }

func (n *normalSampleOp) CallsExtern() bool { return false }

func (n *normalSampleOp) OverwritesInput() int { return -1 }

func (n *normalSampleOp) String() string {
	return fmt.Sprintf("NormalSample{name=%v, shape=%v}()", n.name, n.shape)
}

func (n *normalSampleOp) WriteHash(h hash.Hash) {
	fmt.Fprint(h, n.String())
}

func (n *normalSampleOp) Hashcode() uint32 {
	return lfi.SimpleHash(n)
}

func (n *normalSampleOp) Do(inputs ...G.Value) (G.Value, error) {
	if err := n.checkInputs(inputs...); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	mean := inputs[0].(tensor.Tensor).Data().([]float64)
	std := inputs[1].(tensor.Tensor).Data().([]float64)

	out := make([]float64, len(mean))
	for i := range out {
		n.dist.Mu = mean[i]
		n.dist.Sigma = std[i]
		out[i] = n.dist.Rand()
	}

	return tensor.New(
		tensor.WithShape(n.shape.Clone()...),
		tensor.WithBacking(out),
	), nil
}

func (n *normalSampleOp) checkInputs(inputs ...G.Value) error {
	if err := lfi.CheckArity(n, len(inputs)); err != nil {
		return err
	}

	for i, name := range []string{"mean", "stddev"} {
		t, ok := inputs[i].(tensor.Tensor)
		if !ok || t == nil {
			return fmt.Errorf("cannot sample from nil %v", name)
		} else if t.Size() == 0 {
			return fmt.Errorf("cannot sample from empty %v tensor", name)
		} else if !t.Shape().Eq(n.shape) {
			return fmt.Errorf("expected %v to have shape %v but got %v",
				name, n.shape, t.Shape())
		} else if !t.Dtype().Eq(n.dt) {
			return fmt.Errorf("expected %v to have dtype %v but got %v",
				name, n.dt, t.Dtype())
		}
	}

	return nil
}
