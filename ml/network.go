package ml

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// NeuralNetwork is an ordered, non-empty sequence of layers. Each layer's input
// size equals the previous layer's output size.
type NeuralNetwork struct {
	Layers []*Layer
}

// NewNetwork panics if layers is empty or adjacent sizes disagree.
func NewNetwork(layers ...*Layer) *NeuralNetwork {
	if len(layers) == 0 {
		panic("Network must have at least one layer")
	}
	for i, l := range layers {
		if l == nil {
			panic(fmt.Sprintf("Layer %d is nil", i))
		}
		if l.Weights.rows != l.OutputSize || l.Weights.cols != l.InputSize || len(l.Biases) != l.OutputSize {
			panic(fmt.Sprintf("Layer %d parameter shape mismatch: weights [%d, %d], biases %d, declared %d -> %d",
				i, l.Weights.rows, l.Weights.cols, len(l.Biases), l.InputSize, l.OutputSize))
		}
		if i > 0 && layers[i-1].OutputSize != l.InputSize {
			panic(fmt.Sprintf("Layer %d Input %d does not match previous Output %d", i, l.InputSize, layers[i-1].OutputSize))
		}
	}
	return &NeuralNetwork{Layers: layers}
}

// Build creates a network from layer configs. The first config must be Input().
func Build(src rand.Source, configs ...LayerConfig) *NeuralNetwork {
	if len(configs) < 2 {
		panic("Network must have at least Input and one Output layer")
	}
	if !configs[0].IsInput {
		panic("First layer must be Input()")
	}

	layers := make([]*Layer, 0, len(configs)-1)
	prevOutputSize := configs[0].Neurons
	for i := 1; i < len(configs); i++ {
		cfg := configs[i]
		if cfg.IsInput {
			panic(fmt.Sprintf("Layer %d: Input() is only valid as the first layer", i))
		}
		layers = append(layers, NewLayer(cfg.Neurons, prevOutputSize, cfg.transfer(), cfg.Activation, src))
		prevOutputSize = cfg.Neurons
	}
	return NewNetwork(layers...)
}

// -------- NEURAL NETWORK METHODS -------- //

// Shape returns [in₀, out₀, out₁, …].
func (nw *NeuralNetwork) Shape() []int {
	shape := []int{nw.Layers[0].InputSize}
	for _, l := range nw.Layers {
		shape = append(shape, l.OutputSize)
	}
	return shape
}

func (nw *NeuralNetwork) InputSize() int  { return nw.Layers[0].InputSize }
func (nw *NeuralNetwork) OutputSize() int { return nw.Layers[len(nw.Layers)-1].OutputSize }

// Predict folds input through every layer without caching.
func (nw *NeuralNetwork) Predict(input []float64) []float64 {
	activation := input
	for _, layer := range nw.Layers {
		activation = layer.Forward(activation)
	}
	return activation
}

// PredictCached is Predict in training mode; every layer's cache is populated
// for the gradient computation that follows.
func (nw *NeuralNetwork) PredictCached(input []float64, src rand.Source) []float64 {
	activation := input
	for _, layer := range nw.Layers {
		activation = layer.ForwardCached(activation, src)
	}
	return activation
}

// Weights returns the per-layer weight matrices. They share storage with the
// network, so writing through them mutates it.
func (nw *NeuralNetwork) Weights() []*Matrix {
	out := make([]*Matrix, len(nw.Layers))
	for i, l := range nw.Layers {
		out[i] = l.Weights
	}
	return out
}

// Biases returns the per-layer bias vectors, sharing storage with the network.
func (nw *NeuralNetwork) Biases() [][]float64 {
	out := make([][]float64, len(nw.Layers))
	for i, l := range nw.Layers {
		out[i] = l.Biases
	}
	return out
}

// Cached reports whether every layer holds a forward cache.
func (nw *NeuralNetwork) Cached() bool {
	for _, l := range nw.Layers {
		if !l.Cached() {
			return false
		}
	}
	return true
}

func (nw *NeuralNetwork) ClearCache() {
	for _, l := range nw.Layers {
		l.ClearCache()
	}
}

// Clone deep copies every layer's parameters.
func (nw *NeuralNetwork) Clone() *NeuralNetwork {
	layers := make([]*Layer, len(nw.Layers))
	for i, l := range nw.Layers {
		layers[i] = l.Clone()
	}
	return &NeuralNetwork{Layers: layers}
}

// Evaluate returns the mean loss over the examples and the fraction whose
// prediction argmax matches the target argmax.
func (nw *NeuralNetwork) Evaluate(inputs, targets [][]float64, loss Loss) (float64, float64) {
	if len(inputs) != len(targets) {
		panic(fmt.Sprintf("Evaluate: %d inputs, %d targets", len(inputs), len(targets)))
	}
	if len(inputs) == 0 {
		return 0, 0
	}

	totalLoss := 0.0
	correctCount := 0
	for i, x := range inputs {
		prediction := nw.Predict(x)
		totalLoss += loss.Total(prediction, targets[i])
		if floats.MaxIdx(prediction) == floats.MaxIdx(targets[i]) {
			correctCount++
		}
	}
	n := float64(len(inputs))
	return totalLoss / n, float64(correctCount) / n
}

// Classify returns the argmax class and its softmax probability.
func (nw *NeuralNetwork) Classify(input []float64) (int, float64) {
	output := nw.Predict(input)
	probabilities := output
	if nw.Layers[len(nw.Layers)-1].Activation != ActSoftmax {
		probabilities = cloneVec(output)
		Softmax(probabilities)
	}
	bestClass := floats.MaxIdx(probabilities)
	return bestClass, probabilities[bestClass]
}
