package neuralnet

import (
	"sort"

	"gorgonia.org/tensor"
)

// Params is an immutable snapshot of named parameter values. Values
// are copied on the way in and on the way out, so no two snapshots
// share backing memory.
type Params struct {
	values map[string]*tensor.Dense
}

// NewParams returns a snapshot holding copies of values
func NewParams(values map[string]*tensor.Dense) Params {
	p := Params{values: make(map[string]*tensor.Dense, len(values))}
	for name, v := range values {
		p.values[name] = v.Clone().(*tensor.Dense)
	}
	return p
}

// Len returns the number of parameters
func (p Params) Len() int { return len(p.values) }

// Names returns the sorted parameter names
func (p Params) Names() []string {
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of the named parameter
func (p Params) Get(name string) (*tensor.Dense, bool) {
	v, ok := p.values[name]
	if !ok {
		return nil, false
	}
	return v.Clone().(*tensor.Dense), true
}

// Shape returns the shape of the named parameter
func (p Params) Shape(name string) (tensor.Shape, bool) {
	v, ok := p.values[name]
	if !ok {
		return nil, false
	}
	return v.Shape().Clone(), true
}

// Data returns a copy of the backing data of the named parameter
func (p Params) Data(name string) ([]float64, bool) {
	v, ok := p.values[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), v.Data().([]float64)...), true
}
