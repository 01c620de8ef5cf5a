package lfi

import (
	"fmt"
	"hash"

	"github.com/chewxy/hm"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/top"
)

type clampOp struct {
	min, max     interface{}
	passGradient bool
}

func newClamp(min, max interface{}, passGradient bool) (*clampOp, error) {
	switch min.(type) {
	case float64, float32:
	default:
		return nil, fmt.Errorf("newClamp: min must be a float64 or "+
			"float32 but got %T", min)
	}
	if fmt.Sprintf("%T", min) != fmt.Sprintf("%T", max) {
		return nil, fmt.Errorf("newClamp: min and max should have the same "+
			"type but got %T and %T", min, max)
	}
	if !lessEq(min, max) {
		return nil, fmt.Errorf("newClamp: min %v greater than max %v", min,
			max)
	}

	op := &clampOp{
		min:          min,
		max:          max,
		passGradient: passGradient,
	}

	return op, nil
}

func (c *clampOp) DiffWRT(inputs int) []bool {
	return []bool{true}
}

// SymDiff returns the incoming gradient masked by the region in which
// the input was not clamped, or the incoming gradient unchanged if the
// receiver passes gradients.
func (c *clampOp) SymDiff(inputs G.Nodes, output, grad *G.Node) (G.Nodes,
	error) {
	err := CheckArity(c, len(inputs))
	if err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}

	if c.passGradient {
		return G.Nodes{grad}, nil
	}

	diffOp := &clampDiffOp{c}
	mask, err := G.ApplyOp(diffOp, inputs[0])
	if err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}

	nodes := make(G.Nodes, 1)
	nodes[0], err = G.HadamardProd(mask, grad)

	return nodes, err
}

func (c *clampOp) Arity() int { return 1 }

func (c *clampOp) Type() hm.Type {
	a := hm.TypeVariable('a')

	return hm.NewFnType(a, a)
}

func (c *clampOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	return inputs[0].(tensor.Shape), nil
}

func (c *clampOp) ReturnsPtr() bool { return true }

func (c *clampOp) CallsExtern() bool { return false }

func (c *clampOp) OverwritesInput() int { return -1 }

func (c *clampOp) String() string {
	return fmt.Sprintf("Clamp{min=%v, max=%v}()", c.min, c.max)
}

// WriteHash writes the hash of the receiver to a hash struct
func (c *clampOp) WriteHash(h hash.Hash) { fmt.Fprint(h, c.String()) }

// Hashcode returns the hash code of the receiver
func (c *clampOp) Hashcode() uint32 { return SimpleHash(c) }

func (c *clampOp) Do(inputs ...G.Value) (G.Value, error) {
	if err := checkClampInputs(c, inputs...); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	in := inputs[0].(tensor.Tensor)

	return tensor.Clamp(in, c.min, c.max)
}

// clampDiffOp computes the mask of elements that were not clamped
type clampDiffOp struct {
	op *clampOp
}

func (c *clampDiffOp) Arity() int { return 1 }

func (c *clampDiffOp) Type() hm.Type {
	a := hm.TypeVariable('a')

	return hm.NewFnType(a, a)
}

func (c *clampDiffOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	return inputs[0].(tensor.Shape), nil
}

func (c *clampDiffOp) ReturnsPtr() bool { return false }

func (c *clampDiffOp) CallsExtern() bool { return false }

func (c *clampDiffOp) OverwritesInput() int { return -1 }

// WriteHash writes the hash of the receiver to a hash struct
func (c *clampDiffOp) WriteHash(h hash.Hash) { fmt.Fprint(h, c.String()) }

// Hashcode returns the hash code of the receiver
func (c *clampDiffOp) Hashcode() uint32 { return SimpleHash(c) }

func (c *clampDiffOp) String() string {
	return fmt.Sprintf("ClampDiff{min=%v, max=%v}()", c.op.min, c.op.max)
}

func (c *clampDiffOp) Do(inputs ...G.Value) (G.Value, error) {
	if err := checkClampInputs(c, inputs...); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	in := inputs[0].(tensor.Tensor)

	return top.ClampB(in, c.op.min, c.op.max)
}

func checkClampInputs(op G.Op, inputs ...G.Value) error {
	err := CheckArity(op, len(inputs))
	if err != nil {
		return err
	}

	if inputs[0] == nil {
		return fmt.Errorf("cannot clamp nil tensor")
	}

	t, okTensor := inputs[0].(tensor.Tensor)
	if !okTensor {
		return fmt.Errorf("expected a tensor to clamp but got %T", inputs[0])
	} else if t.Size() == 0 {
		return fmt.Errorf("tensor must have more than 1 row per "+
			"dimension but got shape %v", t.Shape())
	}

	return nil
}

func lessEq(a, b interface{}) bool {
	switch a := a.(type) {
	case float64:
		return a <= b.(float64)
	case float32:
		return a <= b.(float32)
	}
	return false
}
