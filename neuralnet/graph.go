package neuralnet

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/lfi"
	"github.com/samuelfneumann/lfi/rng"
)

// Graph is a Network unrolled into a Gorgonia expression graph for a
// fixed batch size
type Graph struct {
	g     *G.ExprGraph
	batch int

	// Input holds a batch of summary statistics, (batch, NInputs)
	Input *G.Node

	// Target holds a batch of parameters, (batch, NOutputs)
	Target *G.Node

	// Learnables holds the parameter nodes, in the order of Names
	Learnables G.Nodes
	Names      []string

	// Means and LogPrecisions hold the mean and diagonal log precision
	// of each component for each example, (batch, NOutputs)
	Means         []*G.Node
	LogPrecisions []*G.Node

	// LogWeights holds the log mixing weights, (batch, NComponents)
	LogWeights *G.Node

	// LProbs holds the log density of each Target under the mixture
	// predicted from the corresponding Input, (batch)
	LProbs *G.Node

	// VariationalMeans and VariationalLogStds hold the aligned
	// (mean, log standard deviation) pairs of the variational weight
	// posteriors. Both are empty if the network is not variational.
	VariationalMeans   G.Nodes
	VariationalLogStds G.Nodes
}

// ExprGraph returns the underlying Gorgonia graph
func (gr *Graph) ExprGraph() *G.ExprGraph { return gr.g }

// Batch returns the batch size the graph was built for
func (gr *Graph) Batch() int { return gr.batch }

type buildConfig struct {
	deterministic bool
	noise         rng.Stream
}

// BuildOption configures how a Network is unrolled into a Graph
type BuildOption func(*buildConfig)

// Deterministic uses the means of variational weight posteriors
// instead of samples
func Deterministic() BuildOption {
	return func(c *buildConfig) { c.deterministic = true }
}

// WithNoiseSeed seeds the noise of variational weights
func WithNoiseSeed(seed uint64) BuildOption {
	return func(c *buildConfig) { c.noise = rng.NewStream(seed) }
}

// Build unrolls the network into g for batches of the given size
func (n Network) Build(g *G.ExprGraph, batch int,
	opts ...BuildOption) (*Graph, error) {
	if batch < 1 {
		return nil, fmt.Errorf("build: expected batch >= 1 but got %v", batch)
	}

	cfg := buildConfig{noise: rng.Unseeded()}
	for _, opt := range opts {
		opt(&cfg)
	}

	gr := &Graph{
		g:     g,
		batch: batch,
		Input: G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, n.spec.NInputs), G.WithName("x")),
		Target: G.NewMatrix(g, tensor.Float64,
			G.WithShape(batch, n.spec.NOutputs), G.WithName("theta")),
	}

	b := builder{net: n, gr: gr, cfg: cfg}
	if err := b.learnables(); err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	if err := b.forward(); err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}

	return gr, nil
}

type builder struct {
	net Network
	gr  *Graph
	cfg buildConfig

	nodes map[string]*G.Node
}

// learnables creates one node per parameter, holding a copy of the
// parameter's value
func (b *builder) learnables() error {
	b.nodes = make(map[string]*G.Node)
	for _, p := range layout(b.net.spec) {
		value, ok := b.net.params.Get(p.name)
		if !ok {
			return fmt.Errorf("missing parameter %v", p.name)
		}

		node := G.NewMatrix(
			b.gr.g,
			tensor.Float64,
			G.WithShape(p.shape...),
			G.WithName(p.name),
			G.WithValue(value),
		)
		b.nodes[p.name] = node
		b.gr.Learnables = append(b.gr.Learnables, node)
		b.gr.Names = append(b.gr.Names, p.name)
	}

	if b.net.spec.SVI {
		for _, l := range newArchitecture(b.net.spec).layers() {
			b.gr.VariationalMeans = append(b.gr.VariationalMeans,
				b.nodes[l.weightMean()], b.nodes[l.biasMean()])
			b.gr.VariationalLogStds = append(b.gr.VariationalLogStds,
				b.nodes[l.weightStd()], b.nodes[l.biasStd()])
		}
	}

	return nil
}

// param returns the value of a parameter used in the forward pass. For
// variational networks this is a reparameterized sample
// m + exp(s) ⊙ ε unless the graph is deterministic.
func (b *builder) param(mean, logStd string) (*G.Node, error) {
	m := b.nodes[mean]
	if !b.net.spec.SVI || b.cfg.deterministic {
		return m, nil
	}

	shape := m.Shape().Clone()
	size := shape.TotalSize()
	zeros := tensor.New(tensor.WithShape(shape...),
		tensor.WithBacking(make([]float64, size)))
	ones := tensor.New(tensor.WithShape(shape...),
		tensor.WithBacking(ones64(size)))

	zeroNode := G.NewMatrix(b.gr.g, tensor.Float64, G.WithShape(shape...),
		G.WithName("eps.mean."+mean), G.WithValue(zeros))
	oneNode := G.NewMatrix(b.gr.g, tensor.Float64, G.WithShape(shape...),
		G.WithName("eps.std."+mean), G.WithValue(ones))

	var seed uint64
	var ok bool
	seed, ok, b.cfg.noise = b.cfg.noise.Next()

	eps, err := normalRand(mean, zeroNode, oneNode, rng.Source(seed, ok))
	if err != nil {
		return nil, fmt.Errorf("param %v: %v", mean, err)
	}

	std, err := G.Exp(b.nodes[logStd])
	if err != nil {
		return nil, err
	}
	noise, err := G.HadamardProd(std, eps)
	if err != nil {
		return nil, err
	}
	return G.Add(m, noise)
}

// dense computes x W + b for a layer
func (b *builder) dense(x *G.Node, l layer) (*G.Node, error) {
	w, err := b.param(l.weightMean(), l.weightStd())
	if err != nil {
		return nil, err
	}
	bias, err := b.param(l.biasMean(), l.biasStd())
	if err != nil {
		return nil, err
	}

	out, err := G.Mul(x, w)
	if err != nil {
		return nil, fmt.Errorf("layer %v: %v", l.name, err)
	}
	bias, err = lfi.RepeatRows(bias, b.gr.batch)
	if err != nil {
		return nil, fmt.Errorf("layer %v: %v", l.name, err)
	}
	return G.Add(out, bias)
}

func (b *builder) forward() error {
	arch := newArchitecture(b.net.spec)
	batch := b.gr.batch
	nOut := b.net.spec.NOutputs
	nComp := b.net.spec.NComponents

	h := b.gr.Input
	var err error
	for _, l := range arch.hidden {
		if h, err = b.dense(h, l); err != nil {
			return err
		}
		if h, err = G.Tanh(h); err != nil {
			return err
		}
	}

	// Log mixing weights: logits - logsumexp(logits)
	logits, err := b.dense(h, arch.weights)
	if err != nil {
		return err
	}
	lse, err := lfi.LogSumExp(logits, 1)
	if err != nil {
		return err
	}
	lse, err = column(lse, batch)
	if err != nil {
		return err
	}
	if nComp > 1 {
		if lse, err = lfi.Repeat(lse, 1, nComp); err != nil {
			return err
		}
	}
	if b.gr.LogWeights, err = G.Sub(logits, lse); err != nil {
		return err
	}

	half := b.gr.g.Constant(G.NewF64(0.5))
	normalizer := b.gr.g.Constant(G.NewF64(
		0.5 * float64(nOut) * math.Log(2*math.Pi)))

	// Log density of each component:
	// ½ Σ log p - ½ Σ p (θ - m)² - D/2 log 2π
	logNormals := make(G.Nodes, nComp)
	for k := 0; k < nComp; k++ {
		mean, err := b.dense(h, arch.means[k])
		if err != nil {
			return err
		}
		logPrec, err := b.dense(h, arch.precisions[k])
		if err != nil {
			return err
		}
		logPrec, err = lfi.Clamp(logPrec, minLogPrecision, maxLogPrecision,
			false)
		if err != nil {
			return err
		}
		b.gr.Means = append(b.gr.Means, mean)
		b.gr.LogPrecisions = append(b.gr.LogPrecisions, logPrec)

		diff := G.Must(G.Sub(b.gr.Target, mean))
		sq := G.Must(G.Square(diff))
		quad := G.Must(G.HadamardProd(G.Must(G.Exp(logPrec)), sq))
		quad = G.Must(G.Sum(quad, 1))
		logDet := G.Must(G.Sum(logPrec, 1))

		lp := G.Must(G.Sub(logDet, quad))
		lp = G.Must(G.HadamardProd(half, lp))
		lp = G.Must(G.Sub(lp, normalizer))

		if logNormals[k], err = column(lp, batch); err != nil {
			return err
		}
	}

	joint := logNormals[0]
	if nComp > 1 {
		if joint, err = G.Concat(1, logNormals...); err != nil {
			return err
		}
	}
	if joint, err = G.Add(joint, b.gr.LogWeights); err != nil {
		return err
	}

	lprobs, err := lfi.LogSumExp(joint, 1)
	if err != nil {
		return err
	}
	b.gr.LProbs, err = G.Reshape(lprobs, tensor.Shape{batch})
	return err
}

// column reshapes the result of a reduction over a (batch, n) matrix
// into a (batch, 1) column. Reductions of a single row may yield a
// scalar, so the input's shape is not relied on.
func column(x *G.Node, batch int) (*G.Node, error) {
	if x.Shape().TotalSize() != batch {
		return nil, fmt.Errorf("column: cannot reshape %v into (%v, 1)",
			x.Shape(), batch)
	}
	return G.Reshape(x, tensor.Shape{batch, 1})
}

func ones64(size int) []float64 {
	slice := make([]float64, size)
	for i := range slice {
		slice[i] = 1.0
	}

	return slice
}
