package lfi

import (
	"fmt"
	"hash"

	"github.com/chewxy/hm"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type repeatOp struct {
	axis    int
	repeats int
}

func newRepeatOp(axis int, repeats int) (*repeatOp, error) {
	if repeats <= 0 {
		return nil, fmt.Errorf("newRepeatOp: expected repeats to be > 0, "+
			"got %v", repeats)
	}
	if axis < 0 {
		return nil, fmt.Errorf("newRepeatOp: expected axis to be >= 0, "+
			"got %v", axis)
	}

	return &repeatOp{
		axis:    axis,
		repeats: repeats,
	}, nil
}

func (r *repeatOp) Arity() int { return 1 }

// Type returns the type of the op. Repeating changes the size of one
// axis but never the number of dimensions or the dtype:
//
//		repeat :: a -> a
func (r *repeatOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	return hm.NewFnType(a, a)
}

func (r *repeatOp) OverwritesInput() int { return -1 }

func (r *repeatOp) ReturnsPtr() bool { return false }

func (r *repeatOp) CallsExtern() bool { return false }

func (r *repeatOp) String() string {
	return fmt.Sprintf("Repeat{axis=%v, repeats=%v}()", r.axis, r.repeats)
}

func (r *repeatOp) WriteHash(h hash.Hash) { fmt.Fprint(h, r.String()) }

func (r *repeatOp) Hashcode() uint32 { return SimpleHash(r) }

func (r *repeatOp) InferShape(in ...G.DimSizer) (tensor.Shape, error) {
	if err := CheckArity(r, len(in)); err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}

	shape, ok := in[0].(tensor.Shape)
	if !ok {
		return nil, fmt.Errorf("inferShape: expected a tensor.Shape but "+
			"got %T", in[0])
	} else if r.axis >= len(shape) {
		return nil, fmt.Errorf("inferShape: axis [%v] out of range for "+
			"shape %v", r.axis, shape)
	}

	shape = shape.Clone()
	shape[r.axis] *= r.repeats

	return shape, nil
}

func (r *repeatOp) Do(inputs ...G.Value) (G.Value, error) {
	if err := r.checkInputs(inputs...); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	input := inputs[0].(tensor.Tensor)

	return tensor.Repeat(input, r.axis, r.repeats)
}

func (r *repeatOp) DiffWRT(inputs int) []bool { return []bool{true} }

// SymDiff sums the incoming gradient over the copies of each element.
// Since each element is repeated contiguously, the gradient of shape
// (..., n*repeats, ...) is viewed as (..., n, repeats, ...) and
// reduced over the repeats axis.
func (r *repeatOp) SymDiff(inputs G.Nodes, output, grad *G.Node) (G.Nodes,
	error) {
	if err := CheckArity(r, len(inputs)); err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}

	inShape := inputs[0].Shape()
	split := make(tensor.Shape, 0, len(inShape)+1)
	split = append(split, inShape[:r.axis]...)
	split = append(split, inShape[r.axis], r.repeats)
	split = append(split, inShape[r.axis+1:]...)

	g, err := G.Reshape(grad, split)
	if err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}
	g, err = G.Sum(g, r.axis+1)
	if err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}

	// Reductions may collapse unit dimensions, so restore the input shape
	if !g.Shape().Eq(inShape) {
		g, err = G.Reshape(g, inShape.Clone())
		if err != nil {
			return nil, fmt.Errorf("symDiff: %v", err)
		}
	}

	return G.Nodes{g}, nil
}

func (r *repeatOp) checkInputs(inputs ...G.Value) error {
	if err := CheckArity(r, len(inputs)); err != nil {
		return err
	}

	t, ok := inputs[0].(tensor.Tensor)
	if !ok {
		return fmt.Errorf("expected tensor, received %T", inputs[0])
	} else if t == nil {
		return fmt.Errorf("cannot repeat nil tensor")
	} else if t.Size() == 0 {
		return fmt.Errorf("cannot repeat empty tensor")
	} else if r.axis >= len(t.Shape()) {
		return fmt.Errorf("axis [%v] out of range for tensor with shape %v",
			r.axis, t.Shape())
	}

	return nil
}
