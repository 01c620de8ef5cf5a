// Package rng implements explicit, derivable random seed streams.
//
// A Stream is a value: drawing a seed returns the seed together with
// the Stream to use for the next draw, so the sequence of seeds handed
// out depends only on the top-level seed and on the number of draws
// made before, never on hidden global state.
package rng

import "golang.org/x/exp/rand"

// MaxSeed is the exclusive upper bound of seeds drawn from a Stream.
const MaxSeed = 1 << 31

// Stream is a deterministic stream of seeds. The zero Stream is
// unseeded and never produces seeds.
type Stream struct {
	seeded bool
	state  uint64
}

// NewStream returns a seeded Stream.
func NewStream(seed uint64) Stream {
	return Stream{seeded: true, state: seed}
}

// Unseeded returns a Stream which never produces seeds.
func Unseeded() Stream {
	return Stream{}
}

// Seeded returns whether the receiver produces seeds.
func (s Stream) Seeded() bool {
	return s.seeded
}

// Next draws a seed in [0, MaxSeed) and returns it together with the
// advanced Stream. If the receiver is unseeded, ok is false and the
// receiver is returned unchanged.
func (s Stream) Next() (seed uint64, ok bool, next Stream) {
	if !s.seeded {
		return 0, false, s
	}

	src := rand.NewSource(s.state)
	seed = src.Uint64() % MaxSeed
	next = Stream{seeded: true, state: src.Uint64()}

	return seed, true, next
}

// Source returns a random source for a drawn seed. Unseeded draws get a
// source seeded from the global generator.
func Source(seed uint64, ok bool) rand.Source {
	if !ok {
		seed = rand.Uint64()
	}
	return rand.NewSource(seed)
}
