package inference

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Dataset is the training data of one round: aligned rows of
// z-transformed parameters and summary statistics
type Dataset struct {
	Params *mat.Dense
	Stats  *mat.Dense
}

// Len returns the number of examples in the Dataset
func (d Dataset) Len() int {
	r, _ := d.Params.Dims()
	return r
}

// zTransform maps each row x to (x - mean) / std
type zTransform struct {
	mean []float64
	std  []float64
}

func identityTransform(dim int) zTransform {
	z := zTransform{mean: make([]float64, dim), std: make([]float64, dim)}
	for i := range z.std {
		z.std[i] = 1
	}
	return z
}

// fitTransform returns the z-transform standardizing the columns of
// data. Constant columns are only centred.
func fitTransform(data *mat.Dense) zTransform {
	rows, cols := data.Dims()
	z := zTransform{mean: make([]float64, cols), std: make([]float64, cols)}

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		mean, variance := stat.MeanVariance(col, nil)

		// Population standard deviation
		std := math.Sqrt(variance * float64(rows-1) / float64(rows))
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		z.mean[j], z.std[j] = mean, std
	}
	return z
}

func (z zTransform) apply(data *mat.Dense) *mat.Dense {
	rows, cols := data.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - z.mean[j]) / z.std[j]
	}, data)
	return out
}

func (z zTransform) applyVec(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - z.mean[i]) / z.std[i]
	}
	return out
}
