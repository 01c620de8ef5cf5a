package inference

import (
	"errors"
	"math"
	"strings"
	"testing"

	"golang.org/x/exp/rand"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/lfi/neuralnet"
)

// evalLoss builds a deterministic graph for net, builds its loss for n
// examples and evaluates the loss and observables on a fixed batch
func evalLoss(t *testing.T, net neuralnet.Network, n int, svi bool,
	lambda float64) (float64, map[string]float64, []float64) {
	t.Helper()
	const batch int = 5

	g := G.NewGraph()
	gr, err := net.Build(g, batch, neuralnet.Deterministic())
	if err != nil {
		t.Fatal(err)
	}
	loss, observables, err := BuildLoss(gr, n, svi, lambda)
	if err != nil {
		t.Fatal(err)
	}

	var lossVal, lprobsVal G.Value
	G.Read(loss, &lossVal)
	G.Read(gr.LProbs, &lprobsVal)
	obsVals := make(map[string]*G.Value, len(observables))
	for name, node := range observables {
		v := new(G.Value)
		G.Read(node, v)
		obsVals[name] = v
	}

	spec := net.Spec()
	rng := rand.New(rand.NewSource(9))
	x := make([]float64, batch*spec.NInputs)
	theta := make([]float64, batch*spec.NOutputs)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	for i := range theta {
		theta[i] = rng.NormFloat64()
	}
	G.Let(gr.Input, tensor.New(tensor.WithShape(batch, spec.NInputs),
		tensor.WithBacking(x)))
	G.Let(gr.Target, tensor.New(tensor.WithShape(batch, spec.NOutputs),
		tensor.WithBacking(theta)))

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	out := make(map[string]float64, len(obsVals))
	for name, v := range obsVals {
		out[name] = (*v).Data().(float64)
	}
	return lossVal.Data().(float64), out,
		append([]float64(nil), lprobsVal.Data().([]float64)...)
}

func lossNetwork(t *testing.T, svi bool) neuralnet.Network {
	t.Helper()
	net, err := neuralnet.New(neuralnet.Spec{
		NInputs:     3,
		NOutputs:    2,
		NHiddens:    []int{4},
		NComponents: 2,
		SVI:         svi,
		Seed:        8,
	})
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func mean(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func TestBuildLossWithoutSVI(t *testing.T) {
	net := lossNetwork(t, false)

	for _, n := range []int{1, 10, 1000} {
		loss, obs, lprobs := evalLoss(t, net, n, false, 100)
		if math.Abs(loss+mean(lprobs)) > 1e-10 {
			t.Errorf("n=%v: expected loss %v but got %v", n, -mean(lprobs),
				loss)
		}
		if math.Abs(obs[ObservableLProbs]-mean(lprobs)) > 1e-10 {
			t.Errorf("n=%v: expected %v to be %v but got %v", n,
				ObservableLProbs, mean(lprobs), obs[ObservableLProbs])
		}
		if _, ok := obs[ObservableKL]; ok {
			t.Errorf("n=%v: %v observable exists without svi", n,
				ObservableKL)
		}
	}
}

// klZeroReference computes the KL divergence of the variational weight
// posterior of net from 𝒩(0, 1/λ) directly from its parameters
func klZeroReference(net neuralnet.Network, lambda float64) float64 {
	params := net.Params()
	var kl float64
	for _, name := range params.Names() {
		dot := strings.LastIndex(name, ".")
		if name[dot+1] != 's' {
			continue
		}
		s, _ := params.Data(name)
		m, _ := params.Data(name[:dot+1] + "m" + name[dot+2:])
		for i := range s {
			variance := math.Exp(2 * s[i])
			kl += 0.5 * (lambda*(variance+m[i]*m[i]) - 1 - 2*s[i] -
				math.Log(lambda))
		}
	}
	return kl
}

func TestBuildLossSVI(t *testing.T) {
	const lambda float64 = 50
	net := lossNetwork(t, true)

	loss1, obs1, lprobs1 := evalLoss(t, net, 10, true, lambda)
	loss2, obs2, lprobs2 := evalLoss(t, net, 20, true, lambda)

	kl, ok := obs1[ObservableKL]
	if !ok {
		t.Fatalf("expected observable %v", ObservableKL)
	}
	if want := klZeroReference(net, lambda); math.Abs(kl-want) > 1e-6*
		math.Abs(want) {
		t.Errorf("expected KL %v but got %v", want, kl)
	}
	if math.Abs(obs2[ObservableKL]-kl) > 1e-9*math.Abs(kl) {
		t.Errorf("KL depends on n: %v and %v", kl, obs2[ObservableKL])
	}

	reg1 := loss1 + mean(lprobs1)
	reg2 := loss2 + mean(lprobs2)
	if math.Abs(reg1-kl/10) > 1e-8*math.Abs(kl) {
		t.Errorf("expected regularizer %v but got %v", kl/10, reg1)
	}
	if math.Abs(reg1-2*reg2) > 1e-8*math.Abs(reg1) {
		t.Errorf("doubling n did not halve the regularizer: %v and %v", reg1,
			reg2)
	}
}

func TestBuildLossSVIGradients(t *testing.T) {
	const batch int = 5
	net := lossNetwork(t, true)
	spec := net.Spec()

	g := G.NewGraph()
	gr, err := net.Build(g, batch, neuralnet.WithNoiseSeed(3))
	if err != nil {
		t.Fatal(err)
	}
	loss, _, err := BuildLoss(gr, 10, true, 50)
	if err != nil {
		t.Fatal(err)
	}
	grads, err := G.Grad(loss, gr.Learnables...)
	if err != nil {
		t.Fatal(err)
	}

	gradVals := make([]G.Value, len(grads))
	for i := range grads {
		G.Read(grads[i], &gradVals[i])
	}

	rng := rand.New(rand.NewSource(10))
	x := make([]float64, batch*spec.NInputs)
	theta := make([]float64, batch*spec.NOutputs)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	for i := range theta {
		theta[i] = rng.NormFloat64()
	}
	G.Let(gr.Input, tensor.New(tensor.WithShape(batch, spec.NInputs),
		tensor.WithBacking(x)))
	G.Let(gr.Target, tensor.New(tensor.WithShape(batch, spec.NOutputs),
		tensor.WithBacking(theta)))

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}

	var checked int
	for i, name := range gr.Names {
		dot := strings.LastIndex(name, ".")
		if name[dot+1] != 's' {
			continue
		}
		checked++

		var data []float64
		switch v := gradVals[i].Data().(type) {
		case []float64:
			data = v
		case float64:
			data = []float64{v}
		}

		var nonZero bool
		for _, d := range data {
			if math.IsNaN(d) || math.IsInf(d, 0) {
				t.Fatalf("non-finite gradient for %v: %v", name, data)
			}
			if d != 0 {
				nonZero = true
			}
		}
		if !nonZero {
			t.Errorf("gradient of %v is zero", name)
		}
	}
	if checked == 0 {
		t.Error("no log standard deviation parameters in the graph")
	}
}

func TestBuildLossMissingVariationalParameters(t *testing.T) {
	net := lossNetwork(t, false)
	gr, err := net.Build(G.NewGraph(), 4)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = BuildLoss(gr, 10, true, 100)
	if !errors.Is(err, ErrMissingVariationalParameters) {
		t.Errorf("expected ErrMissingVariationalParameters but got %v", err)
	}
}

func TestBuildLossInvalidN(t *testing.T) {
	net := lossNetwork(t, false)
	gr, err := net.Build(G.NewGraph(), 4)
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{0, -3} {
		if _, _, err := BuildLoss(gr, n, false, 100); err == nil {
			t.Errorf("expected an error for n = %v", n)
		}
	}
}
