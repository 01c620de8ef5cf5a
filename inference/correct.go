package inference

import (
	"fmt"

	"github.com/samuelfneumann/lfi/distribution"
)

// Correct turns the network's proxy posterior, which approximates the
// posterior under the proposal the training data was drawn from, into
// the posterior under the prior:
//
//	posterior = proxy / proposal            for a uniform prior
//	posterior = (proxy * prior) / proposal  for a Gaussian prior
//
// If proposal is nil the data was drawn from the prior and proxy is
// returned as is. The proposal must be a Gaussian. Other prior
// families result in ErrUnsupportedPriorKind. A division which leaves
// a component with a precision that is not positive definite results
// in distribution.ErrImproper.
//
// None of the arguments are modified.
func Correct(proxy *distribution.MoG, prior,
	proposal distribution.Distribution) (*distribution.MoG, error) {
	if proposal == nil {
		return proxy, nil
	}

	switch distribution.KindOf(prior) {
	case distribution.KindUniform:
		gaussian, err := gaussianProposal(proposal)
		if err != nil {
			return nil, err
		}
		posterior, err := proxy.DivGaussian(gaussian)
		if err != nil {
			return nil, fmt.Errorf("correct: %w", err)
		}
		return posterior, nil

	case distribution.KindGaussian:
		gaussian, err := gaussianProposal(proposal)
		if err != nil {
			return nil, err
		}
		prod, err := proxy.MulGaussian(prior.(*distribution.Gaussian))
		if err != nil {
			return nil, fmt.Errorf("correct: %w", err)
		}
		posterior, err := prod.DivGaussian(gaussian)
		if err != nil {
			return nil, fmt.Errorf("correct: %w", err)
		}
		return posterior, nil

	default:
		return nil, fmt.Errorf("correct: prior of type %T: %w", prior,
			ErrUnsupportedPriorKind)
	}
}

func gaussianProposal(proposal distribution.Distribution) (
	*distribution.Gaussian, error) {
	gaussian, ok := proposal.(*distribution.Gaussian)
	if !ok {
		return nil, fmt.Errorf("correct: proposal of type %T: %w", proposal,
			ErrUnsupportedProposal)
	}
	return gaussian, nil
}
