package ml

import (
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
)

// InitRange bounds the uniform distribution new weights and biases are drawn from.
const InitRange = 0.01

// -------- TYPE DEFINITIONS -------- //
type LayerOption func(*LayerConfig)

// LayerConfig holds the blueprint for a layer
type LayerConfig struct {
	Neurons    int
	IsInput    bool
	Activation Activation
	DropRate   float64
}

// Layer owns a weight matrix [out, in] and a bias vector [out], and composes a
// Transfer with an Activation.
//
// The cache holds the input, transfer and activation of the last ForwardCached
// call. It is either fully populated or empty.
type Layer struct {
	Weights *Matrix
	Biases  []float64

	InputSize  int
	OutputSize int

	Activation Activation
	Transfer   Transfer

	// Forward State
	lastInput      []float64 // effective input, after the dropout mask
	lastMask       []float64 // nil unless the transfer is dropout
	lastTransfer   []float64
	lastActivation []float64
}

// GradientSet holds the calculated gradients for one layer
type GradientSet struct {
	DW *Matrix
	DB []float64
}

// ------- LAYER CONFIG HELPERS ------- //
// Input defines the entry point dimensions
func Input(size int) LayerConfig {
	return LayerConfig{
		Neurons:    size,
		IsInput:    true,
		Activation: ActLinear,
	}
}

// Dense defines a fully connected layer.
func Dense(size int, opts ...LayerOption) LayerConfig {
	d := LayerConfig{
		Neurons:    size,
		IsInput:    false,
		Activation: ActRelu, // Default for hidden layers
	}

	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func ActivationName(activation string) LayerOption {
	return func(lc *LayerConfig) {
		act, err := ParseActivation(activation)
		if err != nil {
			panic("Unknown activation: " + activation)
		}
		lc.Activation = act
	}
}

func WithActivation(act Activation) LayerOption {
	return func(lc *LayerConfig) {
		lc.Activation = act
	}
}

// DropRate turns the layer's transfer into dropout over its inputs.
func DropRate(rate float64) LayerOption {
	return func(lc *LayerConfig) {
		lc.DropRate = rate
	}
}

func (lc LayerConfig) transfer() Transfer {
	if lc.DropRate > 0 {
		return Dropout(lc.DropRate)
	}
	return DenseTransfer()
}

// ------- LAYER ------- //

// NewLayer creates a layer with weights and biases drawn from U(-InitRange, InitRange).
func NewLayer(outputs, inputs int, transfer Transfer, activation Activation, src rand.Source) *Layer {
	if outputs <= 0 || inputs <= 0 {
		panic(fmt.Sprintf("Invalid layer size: %d outputs, %d inputs", outputs, inputs))
	}
	l := &Layer{
		Weights:    NewMatrix(outputs, inputs),
		Biases:     make([]float64, outputs),
		InputSize:  inputs,
		OutputSize: outputs,
		Activation: activation,
		Transfer:   transfer,
	}
	l.Weights.RandomizeUniform(src, -InitRange, InitRange)
	fillUniform(l.Biases, src, -InitRange, InitRange)
	return l
}

// NewLayerFromParams wraps existing parameters. The sizes are taken from the
// weight matrix and the biases must agree with it.
func NewLayerFromParams(weights *Matrix, biases []float64, transfer Transfer, activation Activation) (*Layer, error) {
	if weights == nil {
		return nil, errors.New("nil weights")
	}
	if weights.rows <= 0 || weights.cols <= 0 {
		return nil, errors.Errorf("invalid weight shape [%d, %d]", weights.rows, weights.cols)
	}
	if len(biases) != weights.rows {
		return nil, errors.Errorf("bias length %d does not match %d outputs", len(biases), weights.rows)
	}
	return &Layer{
		Weights:    weights,
		Biases:     biases,
		InputSize:  weights.cols,
		OutputSize: weights.rows,
		Activation: activation,
		Transfer:   transfer,
	}, nil
}

func (l *Layer) checkInput(input []float64) {
	if len(input) != l.InputSize {
		panic(fmt.Sprintf("Input size mismatch. Expected %d, got %d", l.InputSize, len(input)))
	}
}

// Forward is the inference pass. It never touches the cache.
func (l *Layer) Forward(input []float64) []float64 {
	l.checkInput(input)
	return l.Activation.Activate(l.Transfer.Test(l.Weights, l.Biases, input))
}

// ForwardCached is the training pass: it stores input, transfer and activation
// for the backward pass that follows.
func (l *Layer) ForwardCached(input []float64, src rand.Source) []float64 {
	l.checkInput(input)
	transfer, mask := l.Transfer.Train(l.Weights, l.Biases, input, src)
	activation := l.Activation.Activate(transfer)

	effective := cloneVec(input)
	if mask != nil {
		effective = Hadamard(mask, input)
	}
	l.lastInput = effective
	l.lastMask = mask
	l.lastTransfer = transfer
	l.lastActivation = cloneVec(activation)

	return activation
}

func (l *Layer) Cached() bool {
	return l.lastInput != nil && l.lastTransfer != nil && l.lastActivation != nil
}

func (l *Layer) LastInput() []float64      { return l.lastInput }
func (l *Layer) LastTransfer() []float64   { return l.lastTransfer }
func (l *Layer) LastActivation() []float64 { return l.lastActivation }
func (l *Layer) LastMask() []float64       { return l.lastMask }

func (l *Layer) ClearCache() {
	l.lastInput = nil
	l.lastMask = nil
	l.lastTransfer = nil
	l.lastActivation = nil
}

// Clone deep copies parameters. The cache is not copied.
func (l *Layer) Clone() *Layer {
	return &Layer{
		Weights:    l.Weights.Clone(),
		Biases:     cloneVec(l.Biases),
		InputSize:  l.InputSize,
		OutputSize: l.OutputSize,
		Activation: l.Activation,
		Transfer:   l.Transfer,
	}
}

func newGradientSet(l *Layer) GradientSet {
	return GradientSet{
		DW: NewMatrix(l.OutputSize, l.InputSize),
		DB: make([]float64, l.OutputSize),
	}
}
