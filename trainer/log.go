package trainer

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// LossName is the name under which the training loss is recorded
const LossName = "loss"

// Log holds the series recorded during training, one value per
// iteration
type Log struct {
	series map[string][]float64
}

func newLog() Log {
	return Log{series: make(map[string][]float64)}
}

func (l Log) record(name string, v float64) {
	l.series[name] = append(l.series[name], v)
}

// Names returns the sorted names of the recorded series
func (l Log) Names() []string {
	names := make([]string, 0, len(l.series))
	for name := range l.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series returns a copy of the named series
func (l Log) Series(name string) ([]float64, bool) {
	s, ok := l.series[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), s...), true
}

// Loss returns a copy of the recorded loss
func (l Log) Loss() []float64 {
	s, _ := l.Series(LossName)
	return s
}

// Last returns the final value of the named series
func (l Log) Last(name string) (float64, bool) {
	s, ok := l.series[name]
	if !ok || len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

// MeanWindow returns the mean of the named series over iterations
// [start, end). Indices are clipped to the series.
func (l Log) MeanWindow(name string, start, end int) (float64, bool) {
	s, ok := l.series[name]
	if !ok {
		return 0, false
	}
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return 0, false
	}
	return floats.Sum(s[start:end]) / float64(end-start), true
}
