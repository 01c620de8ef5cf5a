// Package generator draws (parameter, summary statistic) pairs from a
// simulator under a prior or proposal distribution.
package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/lfi/distribution"
	"github.com/samuelfneumann/lfi/rng"
	"github.com/samuelfneumann/lfi/simulator"
	"github.com/samuelfneumann/lfi/summarystats"
)

var (
	// ErrFeedbackResponse is returned when a feedback hook responds
	// with a response which is not valid at its stage
	ErrFeedbackResponse = errors.New("response not supported")

	// ErrExhausted is returned when too many proposed parameters are
	// rejected
	ErrExhausted = errors.New("too many rejected parameters")
)

// Generator draws parameters from its proposal, or from its prior if
// no proposal is set, simulates data for them and summarizes it.
//
// A Generator is not safe for concurrent use.
type Generator struct {
	model    simulator.Simulator
	prior    distribution.Distribution
	summary  summarystats.SummaryStats
	proposal distribution.Distribution
	feedback Feedback

	src     rand.Source
	seeds   rng.Stream
	workers int

	// maxRejections bounds the number of rejected proposals per
	// accepted parameter vector
	maxRejections int

	logger logrus.FieldLogger
}

// Option configures a Generator
type Option func(*Generator)

// WithFeedback sets the feedback hooks of the Generator
func WithFeedback(f Feedback) Option {
	return func(g *Generator) { g.feedback = f }
}

// WithSeed seeds parameter sampling and the simulator
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		var simSeed uint64
		var paramSeed uint64
		s := rng.NewStream(seed)
		paramSeed, _, s = s.Next()
		simSeed, _, _ = s.Next()

		g.src = rand.NewSource(paramSeed)
		g.seeds = rng.NewStream(simSeed)
	}
}

// WithWorkers bounds the number of goroutines running the simulator
func WithWorkers(n int) Option {
	return func(g *Generator) { g.workers = n }
}

// WithMaxRejections sets how many proposals may be rejected for each
// accepted parameter vector before drawing fails
func WithMaxRejections(n int) Option {
	return func(g *Generator) { g.maxRejections = n }
}

// WithLogger sets the logger of the Generator
func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Generator) { g.logger = l }
}

// New returns a new Generator with no proposal
func New(model simulator.Simulator, prior distribution.Distribution,
	summary summarystats.SummaryStats, opts ...Option) (*Generator, error) {
	if prior.Dim() != model.DimParam() {
		return nil, fmt.Errorf("new: prior of dimension %v for simulator "+
			"with %v parameters: %w", prior.Dim(), model.DimParam(),
			distribution.ErrDimension)
	}

	g := &Generator{
		model:         model,
		prior:         prior,
		summary:       summary,
		feedback:      AcceptAll{},
		src:           rand.NewSource(rand.Uint64()),
		seeds:         rng.Unseeded(),
		maxRejections: 1000,
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Prior returns the prior of the Generator
func (g *Generator) Prior() distribution.Distribution { return g.prior }

// Proposal returns the proposal of the Generator, or nil if unset
func (g *Generator) Proposal() distribution.Distribution { return g.proposal }

// SetProposal replaces the proposal. A nil proposal makes the Generator
// draw from the prior.
func (g *Generator) SetProposal(d distribution.Distribution) error {
	if d != nil && d.Dim() != g.prior.Dim() {
		return fmt.Errorf("setProposal: proposal of dimension %v for prior "+
			"of dimension %v: %w", d.Dim(), g.prior.Dim(),
			distribution.ErrDimension)
	}
	g.proposal = d
	return nil
}

// Draw draws n parameter vectors and simulates them, returning the
// accepted parameters and their summary statistics as aligned rows.
// Simulations discarded by the feedback hooks are not replaced, so
// fewer than n rows may be returned.
func (g *Generator) Draw(ctx context.Context, n int) (params,
	stats *mat.Dense, err error) {
	params, stats, err = g.draw(ctx, n, false)
	if err != nil {
		return nil, nil, fmt.Errorf("draw: %w", err)
	}
	return params, stats, nil
}

// DrawUnchecked is like Draw but skips the feedback hooks
func (g *Generator) DrawUnchecked(ctx context.Context, n int) (params,
	stats *mat.Dense, err error) {
	params, stats, err = g.draw(ctx, n, true)
	if err != nil {
		return nil, nil, fmt.Errorf("drawUnchecked: %w", err)
	}
	return params, stats, nil
}

func (g *Generator) draw(ctx context.Context, n int,
	skipFeedback bool) (*mat.Dense, *mat.Dense, error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("expected n >= 1 but got %v", n)
	}

	dist := g.prior
	if g.proposal != nil {
		dist = g.proposal
	}

	// Collect valid parameter vectors
	proposed := make([][]float64, 0, n)
	rejected := 0
	for len(proposed) < n {
		p := dist.Sample(1, g.src).RawRowView(0)

		resp := Accept
		if !skipFeedback {
			resp = g.feedback.ProposedParam(p)
		}
		switch resp {
		case Accept:
			proposed = append(proposed, p)
		case Resample:
			rejected++
			if rejected > g.maxRejections*n {
				return nil, nil, fmt.Errorf("%v rejections for %v accepted "+
					"parameters: %w", rejected, len(proposed), ErrExhausted)
			}
		default:
			return nil, nil, fmt.Errorf("proposed parameter: %v: %w", resp,
				ErrFeedbackResponse)
		}
	}

	// Run the forward model
	var data [][]simulator.Repetition
	var err error
	data, g.seeds, err = simulator.Gen(ctx, g.model, proposed, 1, g.seeds,
		g.workers)
	if err != nil {
		return nil, nil, err
	}

	// Check the simulations and summarize them
	params := make([]float64, 0, n*g.model.DimParam())
	stats := make([]float64, 0, n*g.summary.NSummary())
	accepted := 0
	for i, reps := range data {
		if !skipFeedback {
			ok, err := g.check(g.feedback.ForwardModel(reps), "forward model")
			if err != nil {
				return nil, nil, err
			} else if !ok {
				continue
			}
		}

		sum, err := g.summary.Calc(reps)
		if err != nil {
			return nil, nil, fmt.Errorf("summary statistics: %w", err)
		}

		if !skipFeedback {
			ok, err := g.check(g.feedback.SummaryStats(sum), "summary stats")
			if err != nil {
				return nil, nil, err
			} else if !ok {
				continue
			}
		}

		params = append(params, proposed[i]...)
		stats = append(stats, sum.RawRowView(0)...)
		accepted++
	}

	if accepted < n {
		g.logger.WithFields(logrus.Fields{
			"requested": n,
			"accepted":  accepted,
		}).Debug("feedback discarded simulations")
	}
	if accepted == 0 {
		return nil, nil, fmt.Errorf("all %v simulations discarded: %w", n,
			ErrExhausted)
	}

	return mat.NewDense(accepted, g.model.DimParam(), params),
		mat.NewDense(accepted, g.summary.NSummary(), stats), nil
}

func (g *Generator) check(resp Response, stage string) (bool, error) {
	switch resp {
	case Accept:
		return true, nil
	case Discard:
		return false, nil
	default:
		return false, fmt.Errorf("%v: %v: %w", stage, resp,
			ErrFeedbackResponse)
	}
}
