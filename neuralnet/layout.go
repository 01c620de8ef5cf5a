package neuralnet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	hiddenPrefix     = "h"
	weightsLayer     = "weights"
	meansLayer       = "means"
	precisionsLayer  = "precisions"
	weightMeanSuffix = "mW"
	biasMeanSuffix   = "mb"
	weightStdSuffix  = "sW"
	biasStdSuffix    = "sb"
)

type paramKind int

const (
	kindWeightMean paramKind = iota
	kindBiasMean
	kindLogStd
)

type paramSpec struct {
	name  string
	shape []int
	kind  paramKind
}

// layer is a dense layer of a Spec's layout
type layer struct {
	name     string
	suffix   string // component index of component layers
	in, out  int
	svi      bool
	paramsOf []paramSpec
}

func newLayer(name, suffix string, in, out int, svi bool) layer {
	l := layer{name: name, suffix: suffix, in: in, out: out, svi: svi}
	l.paramsOf = []paramSpec{
		{l.weightMean(), []int{in, out}, kindWeightMean},
		{l.biasMean(), []int{1, out}, kindBiasMean},
	}
	if svi {
		l.paramsOf = append(l.paramsOf,
			paramSpec{l.weightStd(), []int{in, out}, kindLogStd},
			paramSpec{l.biasStd(), []int{1, out}, kindLogStd},
		)
	}
	return l
}

func (l layer) param(suffix string) string {
	return l.name + "." + suffix + l.suffix
}

func (l layer) weightMean() string { return l.param(weightMeanSuffix) }
func (l layer) biasMean() string   { return l.param(biasMeanSuffix) }
func (l layer) weightStd() string  { return l.param(weightStdSuffix) }
func (l layer) biasStd() string    { return l.param(biasStdSuffix) }

// architecture is the ordered list of layers of a Spec
type architecture struct {
	hidden     []layer
	weights    layer
	means      []layer
	precisions []layer
}

func newArchitecture(s Spec) architecture {
	var a architecture

	in := s.NInputs
	for i, h := range s.NHiddens {
		name := fmt.Sprintf("%v%v", hiddenPrefix, i+1)
		a.hidden = append(a.hidden, newLayer(name, "", in, h, s.SVI))
		in = h
	}

	a.weights = newLayer(weightsLayer, "", in, s.NComponents, s.SVI)
	for k := 0; k < s.NComponents; k++ {
		suffix := strconv.Itoa(k)
		a.means = append(a.means,
			newLayer(meansLayer, suffix, in, s.NOutputs, s.SVI))
		a.precisions = append(a.precisions,
			newLayer(precisionsLayer, suffix, in, s.NOutputs, s.SVI))
	}

	return a
}

func (a architecture) layers() []layer {
	out := append([]layer(nil), a.hidden...)
	out = append(out, a.weights)
	for k := range a.means {
		out = append(out, a.means[k], a.precisions[k])
	}
	return out
}

// layout returns every parameter of a Spec in a deterministic order
func layout(s Spec) []paramSpec {
	var out []paramSpec
	for _, l := range newArchitecture(s).layers() {
		out = append(out, l.paramsOf...)
	}
	return out
}

// componentParam splits the name of a parameter of a mixture
// component's mean or precision block into its stem and component
// index, e.g. means.mW3 into means.mW and 3
func componentParam(name string) (stem string, index int, ok bool) {
	if !strings.HasPrefix(name, meansLayer+".") &&
		!strings.HasPrefix(name, precisionsLayer+".") {
		return "", 0, false
	}

	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return "", 0, false
	}

	index, err := strconv.Atoi(name[i:])
	if err != nil {
		return "", 0, false
	}
	return name[:i], index, true
}

func sqrt(n int) float64 {
	return math.Sqrt(float64(n))
}
