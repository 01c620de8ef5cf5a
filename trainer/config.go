package trainer

import "fmt"

// Config configures training
type Config struct {
	Epochs        int     `json:"epochs"`
	MinibatchSize int     `json:"minibatch_size"`
	LearningRate  float64 `json:"learning_rate"`

	// Monitor names the observables of the loss which are recorded in
	// the Log in addition to the loss itself
	Monitor []string `json:"monitor"`

	// Seed seeds minibatch shuffling and the noise of variational
	// weights
	Seed uint64 `json:"seed"`
}

// DefaultConfig returns the default training configuration
func DefaultConfig() Config {
	return Config{
		Epochs:        100,
		MinibatchSize: 50,
		LearningRate:  1e-3,
	}
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("validate: expected Epochs >= 1 but got %v",
			c.Epochs)
	}
	if c.MinibatchSize < 1 {
		return fmt.Errorf("validate: expected MinibatchSize >= 1 but got %v",
			c.MinibatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: expected LearningRate > 0 but got %v",
			c.LearningRate)
	}
	return nil
}
