// Package neuralnet implements mixture density networks: networks
// mapping summary statistics to a mixture of Gaussians over
// parameters.
//
// A Network is a value made of a structural Spec and an immutable
// Params snapshot. Computation graphs are built from a Network on
// demand, so training produces a new Network rather than mutating the
// old one.
//
// Parameters are named after the layer they belong to. Hidden layers
// are named h1, h2, ...; the mixing logits layer is named weights; the
// mean and log-precision layers of mixture component k are named
// means and precisions with the suffix k on each parameter, e.g.
// means.mW0 and precisions.mb0. Each layer has a weight matrix mW and
// a bias row mb and, under stochastic variational inference (SVI), the
// log standard deviations sW and sb of their variational posteriors.
package neuralnet

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

const (
	// initLogStd is the initial log standard deviation of variational
	// weight posteriors
	initLogStd float64 = -5

	// Bounds of the log precisions output by the network
	minLogPrecision float64 = -20
	maxLogPrecision float64 = 20
)

var (
	// ErrNotSingleComponent is returned when expanding a network with
	// more than one mixture component
	ErrNotSingleComponent = errors.New("network has more than one component")

	// ErrParams is returned when a parameter snapshot does not match
	// the layout of a Spec
	ErrParams = errors.New("parameters do not match network layout")
)

// Spec is the structure of a mixture density network
type Spec struct {
	NInputs     int    `json:"n_inputs"`
	NOutputs    int    `json:"n_outputs"`
	NHiddens    []int  `json:"n_hiddens"`
	NComponents int    `json:"n_components"`
	SVI         bool   `json:"svi"`
	Seed        uint64 `json:"seed"`
}

// Validate returns an error if the Spec describes an invalid network
func (s Spec) Validate() error {
	if s.NInputs < 1 {
		return fmt.Errorf("validate: expected NInputs >= 1 but got %v",
			s.NInputs)
	}
	if s.NOutputs < 1 {
		return fmt.Errorf("validate: expected NOutputs >= 1 but got %v",
			s.NOutputs)
	}
	if s.NComponents < 1 {
		return fmt.Errorf("validate: expected NComponents >= 1 but got %v",
			s.NComponents)
	}
	for i, h := range s.NHiddens {
		if h < 1 {
			return fmt.Errorf("validate: hidden layer %v has %v units", i+1,
				h)
		}
	}
	return nil
}

func (s Spec) clone() Spec {
	s.NHiddens = append([]int(nil), s.NHiddens...)
	return s
}

// Network is a mixture density network
type Network struct {
	spec   Spec
	params Params
}

// New returns a Network with freshly initialized parameters. Weight
// matrices are drawn from 𝒩(0, 1/fan_in) using the Spec's seed, biases
// start at zero and variational log standard deviations at a small
// constant.
func New(spec Spec) (Network, error) {
	if err := spec.Validate(); err != nil {
		return Network{}, fmt.Errorf("new: %v", err)
	}

	src := rand.NewSource(spec.Seed)
	values := make(map[string]*tensor.Dense)
	for _, p := range layout(spec) {
		size := tensor.Shape(p.shape).TotalSize()
		backing := make([]float64, size)

		switch p.kind {
		case kindWeightMean:
			init := distuv.Normal{Mu: 0, Sigma: 1 / sqrt(p.shape[0]), Src: src}
			for i := range backing {
				backing[i] = init.Rand()
			}
		case kindLogStd:
			for i := range backing {
				backing[i] = initLogStd
			}
		}

		values[p.name] = tensor.New(
			tensor.WithShape(p.shape...),
			tensor.WithBacking(backing),
		)
	}

	return Network{spec: spec.clone(), params: Params{values: values}}, nil
}

// FromParams returns a Network with the given structure and parameter
// values. The snapshot must hold exactly the parameters of the Spec's
// layout, with matching shapes.
func FromParams(spec Spec, params Params) (Network, error) {
	if err := spec.Validate(); err != nil {
		return Network{}, fmt.Errorf("fromParams: %v", err)
	}

	lay := layout(spec)
	if len(lay) != params.Len() {
		return Network{}, fmt.Errorf("fromParams: expected %v parameters "+
			"but got %v: %w", len(lay), params.Len(), ErrParams)
	}
	for _, p := range lay {
		shape, ok := params.Shape(p.name)
		if !ok {
			return Network{}, fmt.Errorf("fromParams: missing parameter "+
				"%v: %w", p.name, ErrParams)
		}
		if !shape.Eq(tensor.Shape(p.shape)) {
			return Network{}, fmt.Errorf("fromParams: parameter %v has "+
				"shape %v, expected %v: %w", p.name, shape, p.shape, ErrParams)
		}
	}

	return Network{spec: spec.clone(), params: params}, nil
}

// Spec returns the structure of the network
func (n Network) Spec() Spec { return n.spec.clone() }

// Params returns the parameter snapshot of the network
func (n Network) Params() Params { return n.params }

// NComponents returns the number of mixture components
func (n Network) NComponents() int { return n.spec.NComponents }

// SVI returns whether the network has variational weights
func (n Network) SVI() bool { return n.spec.SVI }
