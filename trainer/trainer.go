// Package trainer fits mixture density networks by minibatch gradient
// descent with Adam.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/lfi/neuralnet"
	"github.com/samuelfneumann/lfi/rng"
)

var (
	// ErrDiverged is returned when the loss becomes NaN or infinite
	ErrDiverged = errors.New("training diverged")

	// ErrUnknownObservable is returned when a monitored observable is
	// not provided by the loss
	ErrUnknownObservable = errors.New("unknown observable")
)

// LossFunc builds the loss of a network graph together with named
// observables which may be monitored
type LossFunc func(gr *neuralnet.Graph) (loss *G.Node,
	observables map[string]*G.Node, err error)

// Option configures a call to Train
type Option func(*options)

type options struct {
	logger logrus.FieldLogger
}

// WithLogger sets the logger used during training
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.logger = l }
}

// Train fits net to the aligned rows of x (network inputs) and theta
// (targets) by minimizing the loss built by lossFn. It returns a new
// network holding the trained parameters together with the log of the
// loss and monitored observables at each iteration. net is not
// modified.
//
// Each epoch visits the rows in a fresh random order, in minibatches of
// cfg.MinibatchSize rows; rows which do not fill a final minibatch are
// skipped for that epoch. If there are fewer rows than the minibatch
// size, all rows form a single minibatch.
func Train(ctx context.Context, net neuralnet.Network, lossFn LossFunc,
	x, theta *mat.Dense, cfg Config, opts ...Option) (neuralnet.Network,
	Log, error) {
	o := options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return neuralnet.Network{}, Log{}, fmt.Errorf("train: %v", err)
	}

	n, cols := x.Dims()
	tRows, tCols := theta.Dims()
	spec := net.Spec()
	if n != tRows {
		return neuralnet.Network{}, Log{}, fmt.Errorf("train: %v inputs "+
			"for %v targets", n, tRows)
	}
	if n == 0 {
		return neuralnet.Network{}, Log{}, fmt.Errorf("train: no data")
	}
	if cols != spec.NInputs || tCols != spec.NOutputs {
		return neuralnet.Network{}, Log{}, fmt.Errorf("train: data with %v "+
			"inputs and %v targets for network with %v inputs and %v "+
			"outputs", cols, tCols, spec.NInputs, spec.NOutputs)
	}

	batch := cfg.MinibatchSize
	if batch > n {
		batch = n
	}

	var shuffleSeed, noiseSeed uint64
	seeds := rng.NewStream(cfg.Seed)
	shuffleSeed, _, seeds = seeds.Next()
	noiseSeed, _, _ = seeds.Next()

	g := G.NewGraph()
	gr, err := net.Build(g, batch, neuralnet.WithNoiseSeed(noiseSeed))
	if err != nil {
		return neuralnet.Network{}, Log{}, fmt.Errorf("train: %v", err)
	}

	loss, observables, err := lossFn(gr)
	if err != nil {
		return neuralnet.Network{}, Log{}, fmt.Errorf("train: could not "+
			"build loss: %w", err)
	}

	var lossVal G.Value
	G.Read(loss, &lossVal)

	monitored := make([]G.Value, len(cfg.Monitor))
	for i, name := range cfg.Monitor {
		node, ok := observables[name]
		if !ok {
			return neuralnet.Network{}, Log{}, fmt.Errorf("train: %v: %w",
				name, ErrUnknownObservable)
		}
		G.Read(node, &monitored[i])
	}

	if _, err := G.Grad(loss, gr.Learnables...); err != nil {
		return neuralnet.Network{}, Log{}, fmt.Errorf("train: could not "+
			"compute gradient: %v", err)
	}

	vm := G.NewTapeMachine(g, G.BindDualValues(gr.Learnables...))
	defer vm.Close()
	solver := G.NewAdamSolver(G.WithLearnRate(cfg.LearningRate))

	xBatch := tensor.New(tensor.WithShape(batch, cols),
		tensor.WithBacking(make([]float64, batch*cols)))
	thetaBatch := tensor.New(tensor.WithShape(batch, tCols),
		tensor.WithBacking(make([]float64, batch*tCols)))

	shuffler := rand.New(rand.NewSource(shuffleSeed))
	log := newLog()
	iter := 0
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return neuralnet.Network{}, log, fmt.Errorf("train: %w", err)
		}

		perm := shuffler.Perm(n)
		for start := 0; start+batch <= n; start += batch {
			fill(xBatch, x, perm[start:start+batch])
			fill(thetaBatch, theta, perm[start:start+batch])

			if err := G.Let(gr.Input, xBatch); err != nil {
				return neuralnet.Network{}, log, fmt.Errorf("train: %v", err)
			}
			if err := G.Let(gr.Target, thetaBatch); err != nil {
				return neuralnet.Network{}, log, fmt.Errorf("train: %v", err)
			}

			if err := vm.RunAll(); err != nil {
				return neuralnet.Network{}, log, fmt.Errorf("train: epoch "+
					"%v: %v", epoch, err)
			}

			l := scalar(lossVal)
			if math.IsNaN(l) || math.IsInf(l, 0) {
				return neuralnet.Network{}, log, fmt.Errorf("train: loss %v "+
					"at iteration %v: %w", l, iter, ErrDiverged)
			}
			log.record(LossName, l)
			for i, name := range cfg.Monitor {
				log.record(name, scalar(monitored[i]))
			}

			err := solver.Step(G.NodesToValueGrads(gr.Learnables))
			if err != nil {
				return neuralnet.Network{}, log, fmt.Errorf("train: could "+
					"not step solver: %v", err)
			}
			vm.Reset()
			iter++
		}

		if mean, ok := log.MeanWindow(LossName, iter-n/batch, iter); ok {
			o.logger.WithFields(logrus.Fields{
				"epoch": epoch,
				"loss":  mean,
			}).Debug("epoch finished")
		}
	}

	values := make(map[string]*tensor.Dense, len(gr.Learnables))
	for i, node := range gr.Learnables {
		values[gr.Names[i]] = node.Value().(*tensor.Dense)
	}
	trained, err := neuralnet.FromParams(spec, neuralnet.NewParams(values))
	if err != nil {
		return neuralnet.Network{}, log, fmt.Errorf("train: %v", err)
	}

	return trained, log, nil
}

// fill copies the given rows of src into dst
func fill(dst *tensor.Dense, src *mat.Dense, rows []int) {
	data := dst.Data().([]float64)
	_, cols := src.Dims()
	for i, r := range rows {
		copy(data[i*cols:(i+1)*cols], src.RawRowView(r))
	}
}

func scalar(v G.Value) float64 {
	switch d := v.Data().(type) {
	case float64:
		return d
	case []float64:
		return d[0]
	default:
		panic(fmt.Sprintf("trainer: unexpected value data %T", d))
	}
}
