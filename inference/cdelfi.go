// Package inference implements conditional density estimation
// likelihood-free inference (CDE-LFI), algorithms 1 and 2 of
// Papamakarios and Murray (2016).
//
// A mixture density network is trained over several rounds on
// parameters drawn from a proposal and their simulated summary
// statistics. After each round, the network's output at the observed
// statistics is corrected into a posterior under the prior, and the
// Gaussian projection of that posterior becomes the next round's
// proposal. All rounds but the last use a single mixture component;
// the network may be expanded to more components for the last round.
package inference

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/lfi/distribution"
	"github.com/samuelfneumann/lfi/neuralnet"
	"github.com/samuelfneumann/lfi/rng"
	"github.com/samuelfneumann/lfi/trainer"
)

// Generator draws parameters and their summary statistics under a
// proposal, or under the prior if no proposal is set
type Generator interface {
	Prior() distribution.Distribution
	Proposal() distribution.Distribution
	SetProposal(distribution.Distribution) error

	// Draw draws parameters and summary statistics as aligned rows
	Draw(ctx context.Context, n int) (params, stats *mat.Dense, err error)

	// DrawUnchecked draws without applying any feedback
	DrawUnchecked(ctx context.Context, n int) (params, stats *mat.Dense,
		err error)
}

// CDELFI is a conditional density estimation likelihood-free inference
// driver
type CDELFI struct {
	gen Generator
	obs []float64
	cfg Config

	net   neuralnet.Network
	seeds rng.Stream

	params zTransform
	stats  zTransform

	logger logrus.FieldLogger
}

// Option configures a CDELFI driver
type Option func(*CDELFI)

// WithLogger sets the logger of the driver
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *CDELFI) { c.logger = l }
}

// New returns a driver inferring the posterior over the parameters of
// gen's simulator given the observed summary statistics obs.
//
// The proposal of gen is reset, so the first round draws from the
// prior. A single unchecked draw determines the dimensions of the
// network, and, if cfg.PilotSamples > 0, a pilot run determines the
// z-transform of summary statistics.
func New(ctx context.Context, gen Generator, obs []float64, cfg Config,
	opts ...Option) (*CDELFI, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	c := &CDELFI{
		gen:    gen,
		obs:    append([]float64(nil), obs...),
		cfg:    cfg,
		seeds:  rng.Unseeded(),
		logger: logrus.StandardLogger(),
	}
	c.cfg.NHiddens = append([]int(nil), cfg.NHiddens...)
	if cfg.Seed != nil {
		c.seeds = rng.NewStream(*cfg.Seed)
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := gen.SetProposal(nil); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	params, stats, err := gen.DrawUnchecked(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("new: could not determine dimensions: %w", err)
	}
	_, nParams := params.Dims()
	_, nStats := stats.Dims()
	if len(obs) != nStats {
		return nil, fmt.Errorf("new: observation with %v statistics for "+
			"generator with %v: %w", len(obs), nStats,
			distribution.ErrDimension)
	}

	// Algorithm 1 uses a single component
	c.net, err = neuralnet.New(neuralnet.Spec{
		NInputs:     nStats,
		NOutputs:    nParams,
		NHiddens:    c.cfg.NHiddens,
		NComponents: 1,
		SVI:         cfg.SVI,
		Seed:        c.newSeed(),
	})
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	if cfg.PriorNorm {
		c.params = zTransform{
			mean: gen.Prior().Mean(nil),
			std:  gen.Prior().Std(nil),
		}
	} else {
		c.params = identityTransform(nParams)
	}

	if cfg.PilotSamples > 0 {
		_, pilot, err := gen.Draw(ctx, cfg.PilotSamples)
		if err != nil {
			return nil, fmt.Errorf("new: pilot run: %w", err)
		}
		c.stats = fitTransform(pilot)
	} else {
		c.stats = identityTransform(nStats)
	}

	return c, nil
}

// Network returns the current network of the driver
func (c *CDELFI) Network() neuralnet.Network { return c.net }

// Seeds returns the seed stream the next round will draw from
func (c *CDELFI) Seeds() rng.Stream { return c.seeds }

// newSeed draws the next seed from the driver's stream. Unseeded
// drivers draw a random seed.
func (c *CDELFI) newSeed() uint64 {
	var seed uint64
	var ok bool
	seed, ok, c.seeds = c.seeds.Next()
	if !ok {
		seed = rand.Uint64() % rng.MaxSeed
	}
	return seed
}

// Predict returns the posterior over parameters given the summary
// statistics x. If the generator has a proposal, the network output is
// corrected for it.
func (c *CDELFI) Predict(x []float64) (*distribution.MoG, error) {
	if len(x) != len(c.stats.mean) {
		return nil, fmt.Errorf("predict: expected %v statistics but got %v",
			len(c.stats.mean), len(x))
	}

	mog, err := c.net.MoG(c.stats.applyVec(x))
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	mog, err = mog.ZTransInv(c.params.mean, c.params.std)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	posterior, err := Correct(mog, c.gen.Prior(), c.gen.Proposal())
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return posterior, nil
}

// Run runs cfg.NRounds rounds of inference and returns the training
// log and dataset of each round. If a round fails, the logs and
// datasets of the rounds completed before it are returned together
// with the error.
func (c *CDELFI) Run(ctx context.Context, cfg RunConfig) ([]trainer.Log,
	[]Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}

	logger := c.logger.WithField("run", uuid.New().String())

	var logs []trainer.Log
	var datasets []Dataset
	for r := 1; r <= cfg.NRounds; r++ {
		if err := ctx.Err(); err != nil {
			return logs, datasets, fmt.Errorf("run: round %v: %w", r, err)
		}

		log, data, err := c.round(ctx, cfg, r, logger.WithField("round", r))
		if err != nil {
			return logs, datasets, fmt.Errorf("run: round %v: %w", r, err)
		}

		logs = append(logs, log)
		datasets = append(datasets, data)
	}

	return logs, datasets, nil
}

func (c *CDELFI) round(ctx context.Context, cfg RunConfig, r int,
	logger logrus.FieldLogger) (trainer.Log, Dataset, error) {
	data, err := c.draw(ctx, cfg.NTrain)
	if err != nil {
		return trainer.Log{}, Dataset{}, err
	}

	// Algorithm 2 expands the network for the final round
	if r == cfg.NRounds && c.cfg.NComponents > 1 {
		c.net, err = neuralnet.Expand(c.net, c.cfg.NComponents)
		if err != nil {
			return trainer.Log{}, Dataset{}, err
		}
		logger.WithField("components", c.cfg.NComponents).Debug(
			"network expanded")
	}

	n := data.Len()
	svi := c.net.SVI()
	lossFn := func(gr *neuralnet.Graph) (*G.Node, map[string]*G.Node,
		error) {
		return BuildLoss(gr, n, svi, c.cfg.RegLambda)
	}

	tcfg := trainer.Config{
		Epochs:        cfg.Epochs,
		MinibatchSize: cfg.MinibatchSize,
		LearningRate:  cfg.LearningRate,
		Monitor:       cfg.Monitor,
		Seed:          c.newSeed(),
	}
	net, log, err := trainer.Train(ctx, c.net, lossFn, data.Stats,
		data.Params, tcfg, trainer.WithLogger(logger))
	if err != nil {
		return trainer.Log{}, Dataset{}, err
	}
	c.net = net

	posterior, err := c.Predict(c.obs)
	if err != nil {
		return trainer.Log{}, Dataset{}, err
	}
	proposal, err := posterior.ProjectToGaussian()
	if err != nil {
		return trainer.Log{}, Dataset{}, err
	}
	if err := c.gen.SetProposal(proposal); err != nil {
		return trainer.Log{}, Dataset{}, err
	}
	logger.WithField("proposal_mean", proposal.Mean(nil)).Debug(
		"proposal updated")

	loss, _ := log.Last(trainer.LossName)
	logger.WithFields(logrus.Fields{
		"n_train":    n,
		"components": c.net.NComponents(),
		"loss":       loss,
	}).Info("round finished")

	return log, data, nil
}

// draw draws n training examples and z-transforms them
func (c *CDELFI) draw(ctx context.Context, n int) (Dataset, error) {
	params, stats, err := c.gen.Draw(ctx, n)
	if err != nil {
		return Dataset{}, err
	}

	return Dataset{
		Params: c.params.apply(params),
		Stats:  c.stats.apply(stats),
	}, nil
}
