package lfi

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestRepeat(t *testing.T) {
	const numTests int = 15 // The number of random tests to run
	const maxRepeats int = 10
	const threshold float64 = 0.00001 // Threshold to determine floats equal

	// Randomly generated input has number of dimensions between dimMin
	// and dimMax. Each dimension of the randomly generated input has
	// between sizeMin and sizeMax elements.
	const sizeMin int = 1
	const sizeMax int = 5
	const dimMin int = 1
	const dimMax int = 4
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < numTests; i++ {
		size := randInt(rng, dimMin+rng.Intn(dimMax-dimMin), sizeMin, sizeMax)

		axis := rng.Intn(len(size))
		repeats := rng.Intn(maxRepeats) + 1

		numElems := tensor.ProdInts(size)
		inTensor := tensor.NewDense(
			tensor.Float64,
			size,
			tensor.WithBacking(randF64(rng, numElems, -1., 1.)),
		)

		repeatTarget, err := tensor.Repeat(inTensor, axis, repeats)
		if err != nil {
			t.Fatal(err)
		}

		// The mean over all copies gives each input element the
		// gradient repeats / (repeats * numElems)
		gradTarget := 1.0 / float64(numElems)

		g := G.NewGraph()
		in := G.NewTensor(
			g,
			tensor.Float64,
			len(inTensor.Shape()),
			G.WithValue(inTensor),
		)

		c, err := Repeat(in, axis, repeats)
		if err != nil {
			t.Fatal(err)
		}
		if !c.Shape().Eq(repeatTarget.Shape()) {
			t.Errorf("expected inferred shape %v but got %v",
				repeatTarget.Shape(), c.Shape())
		}
		var cVal G.Value
		G.Read(c, &cVal)

		loss := G.Must(G.Mean(c))
		grad, err := G.Grad(loss, in)
		if err != nil {
			t.Fatal(err)
		}
		if len(grad) != 1 {
			t.Errorf("expected 1 gradient node, received %v", len(grad))
		}
		var gradVal G.Value
		G.Read(grad[0], &gradVal)

		vm := G.NewTapeMachine(g)
		if err := vm.RunAll(); err != nil {
			t.Fatal(err)
		}

		if !cVal.(tensor.Tensor).Eq(repeatTarget) {
			t.Errorf("expected: \n%v \nreceived: \n%v\n", repeatTarget, cVal)
		}

		gradData, ok := gradVal.Data().([]float64)
		if !ok {
			// Gradient has a single value
			gradData = []float64{gradVal.Data().(float64)}
		}
		for j := range gradData {
			if math.Abs(gradData[j]-gradTarget) > threshold {
				t.Errorf("gradient at index %v: expected %v but got %v", j,
					gradTarget, gradData[j])
			}
		}
		vm.Close()
	}
}

func TestRepeatInvalid(t *testing.T) {
	g := G.NewGraph()
	in := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 3))

	if _, err := Repeat(in, 0, 0); err == nil {
		t.Error("expected an error for zero repeats")
	}
	if _, err := Repeat(in, -1, 2); err == nil {
		t.Error("expected an error for a negative axis")
	}
	if _, err := RepeatRows(in, 3); err == nil {
		t.Error("expected an error repeating a matrix with more than one row")
	}
}
