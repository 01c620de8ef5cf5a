package lfi

import "golang.org/x/exp/rand"

// randInt returns size random ints in [min, max)
func randInt(rng *rand.Rand, size int, min, max int) []int {
	out := make([]int, size)
	for i := range out {
		out[i] = min + rng.Intn(max-min)
	}
	return out
}

// randF64 returns size random float64s in [min, max)
func randF64(rng *rand.Rand, size int, min, max float64) []float64 {
	out := make([]float64, size)
	for i := range out {
		out[i] = min + rng.Float64()*(max-min)
	}
	return out
}
