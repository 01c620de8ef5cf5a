package inference

import (
	"errors"

	"github.com/samuelfneumann/lfi/trainer"
)

var (
	// ErrUnsupportedPriorKind is returned when correcting a proxy
	// posterior under a prior which is neither uniform nor Gaussian
	ErrUnsupportedPriorKind = errors.New("unsupported prior kind")

	// ErrUnsupportedProposal is returned when correcting a proxy
	// posterior under a proposal which is not Gaussian
	ErrUnsupportedProposal = errors.New("unsupported proposal")

	// ErrMissingVariationalParameters is returned when building a
	// variational loss for a network without variational weights
	ErrMissingVariationalParameters = errors.New("network has no " +
		"variational parameters")

	// ErrUnknownObservable is returned when monitoring an observable the
	// loss does not provide, such as ObservableKL without svi
	ErrUnknownObservable = trainer.ErrUnknownObservable
)
