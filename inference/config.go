package inference

import "fmt"

// Config configures a CDELFI driver
type Config struct {
	// NHiddens holds the number of units of each hidden layer
	NHiddens []int `json:"n_hiddens"`

	// SVI enables variational weights
	SVI bool `json:"svi"`

	// NComponents is the number of mixture components of the final
	// round. Earlier rounds use a single component.
	NComponents int `json:"n_components"`

	// RegLambda is the precision of the Gaussian weight prior used by
	// the variational regularizer
	RegLambda float64 `json:"reg_lambda"`

	// PriorNorm z-transforms parameters with the prior's mean and
	// standard deviation
	PriorNorm bool `json:"prior_norm"`

	// PilotSamples is the number of draws used to estimate the mean
	// and standard deviation of summary statistics for their
	// z-transform. Statistics are not transformed if zero.
	PilotSamples int `json:"pilot_samples"`

	// Seed seeds the network and every round's training. Unseeded
	// drivers are not reproducible.
	Seed *uint64 `json:"seed,omitempty"`
}

// DefaultConfig returns the default driver configuration
func DefaultConfig() Config {
	return Config{
		NHiddens:     []int{10, 10},
		NComponents:  1,
		RegLambda:    100,
		PriorNorm:    true,
		PilotSamples: 100,
	}
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	if c.NComponents < 1 {
		return fmt.Errorf("validate: expected NComponents >= 1 but got %v",
			c.NComponents)
	}
	if c.SVI && c.RegLambda <= 0 {
		return fmt.Errorf("validate: expected RegLambda > 0 but got %v",
			c.RegLambda)
	}
	if c.PilotSamples < 0 {
		return fmt.Errorf("validate: expected PilotSamples >= 0 but got %v",
			c.PilotSamples)
	}
	for i, h := range c.NHiddens {
		if h < 1 {
			return fmt.Errorf("validate: hidden layer %v has %v units", i+1,
				h)
		}
	}
	return nil
}

// RunConfig configures a run of a CDELFI driver
type RunConfig struct {
	// NTrain is the number of parameters drawn each round
	NTrain int `json:"n_train"`

	NRounds       int     `json:"n_rounds"`
	Epochs        int     `json:"epochs"`
	MinibatchSize int     `json:"minibatch_size"`
	LearningRate  float64 `json:"learning_rate"`

	// Monitor names the loss observables recorded in each round's log,
	// e.g. ObservableLProbs or, with svi, ObservableKL
	Monitor []string `json:"monitor"`
}

// DefaultRunConfig returns the default run configuration
func DefaultRunConfig() RunConfig {
	return RunConfig{
		NTrain:        100,
		NRounds:       2,
		Epochs:        1000,
		MinibatchSize: 50,
		LearningRate:  1e-3,
	}
}

// Validate returns an error if the RunConfig is invalid
func (c RunConfig) Validate() error {
	if c.NTrain < 1 {
		return fmt.Errorf("validate: expected NTrain >= 1 but got %v",
			c.NTrain)
	}
	if c.NRounds < 1 {
		return fmt.Errorf("validate: expected NRounds >= 1 but got %v",
			c.NRounds)
	}
	return nil
}
