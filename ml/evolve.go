package ml

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"
)

// Mutate replaces each weight and bias, with probability rate, by a sample
// from U(-1, 1).
func Mutate(nw *NeuralNetwork, rate float64, src rand.Source) {
	hit := distuv.Bernoulli{P: rate, Src: src}
	value := distuv.Uniform{Min: -1, Max: 1, Src: src}

	mutate := func(params []float64) {
		for i := range params {
			if hit.Rand() == 1 {
				params[i] = value.Rand()
			}
		}
	}
	for _, w := range nw.Weights() {
		mutate(w.Data())
	}
	for _, b := range nw.Biases() {
		mutate(b)
	}
	nw.ClearCache()
}

// Crossover returns a child of a and b that takes every parameter from b with
// probability 0.5 and from a otherwise.
func Crossover(a, b *NeuralNetwork, src rand.Source) *NeuralNetwork {
	if !slices.Equal(a.Shape(), b.Shape()) {
		panic(fmt.Sprintf("Crossover shape mismatch: %v vs %v", a.Shape(), b.Shape()))
	}
	coin := distuv.Bernoulli{P: 0.5, Src: src}
	child := a.Clone()

	pick := func(dst, other []float64) {
		for i := range dst {
			if coin.Rand() == 1 {
				dst[i] = other[i]
			}
		}
	}
	otherWeights, otherBiases := b.Weights(), b.Biases()
	for i, w := range child.Weights() {
		pick(w.Data(), otherWeights[i].Data())
	}
	for i, bias := range child.Biases() {
		pick(bias, otherBiases[i])
	}
	return child
}
