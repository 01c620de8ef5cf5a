package generator

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lfi/distribution"
	"github.com/samuelfneumann/lfi/simulator"
)

// Response is the answer of a feedback hook
type Response int

const (
	Accept Response = iota
	Resample
	Discard
)

func (r Response) String() string {
	switch r {
	case Accept:
		return "accept"
	case Resample:
		return "resample"
	case Discard:
		return "discard"
	default:
		return "unknown"
	}
}

// Feedback checks samples at each stage of drawing. ProposedParam may
// respond with Accept or Resample; ForwardModel and SummaryStats with
// Accept or Discard.
type Feedback interface {
	ProposedParam(params []float64) Response
	ForwardModel(reps []simulator.Repetition) Response
	SummaryStats(stats *mat.Dense) Response
}

// AcceptAll accepts everything
type AcceptAll struct{}

func (AcceptAll) ProposedParam([]float64) Response { return Accept }

func (AcceptAll) ForwardModel([]simulator.Repetition) Response {
	return Accept
}

func (AcceptAll) SummaryStats(*mat.Dense) Response { return Accept }

// PriorSupport resamples proposed parameters outside the support of
// the prior and discards non-finite summary statistics. Proposals are
// usually Gaussian and so can propose parameters the prior rules out.
type PriorSupport struct {
	Prior distribution.Distribution
}

// ProposedParam resamples parameters with zero prior density
func (p PriorSupport) ProposedParam(params []float64) Response {
	if math.IsInf(p.Prior.LogProb(params), -1) {
		return Resample
	}
	return Accept
}

// ForwardModel accepts every simulation
func (PriorSupport) ForwardModel([]simulator.Repetition) Response {
	return Accept
}

// SummaryStats discards statistics containing NaN or Inf
func (PriorSupport) SummaryStats(stats *mat.Dense) Response {
	r, c := stats.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := stats.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Discard
			}
		}
	}
	return Accept
}
