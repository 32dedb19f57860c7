package ml

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

type Optimizer interface {
	OptimizeOnce(nw *NeuralNetwork, input, target []float64) float64
	OptimizeBatch(nw *NeuralNetwork, inputs, targets [][]float64) float64
}

var _ Optimizer = (*SGD)(nil)

// SGD is plain stochastic gradient descent:
//
//	W = W - lr * dL/dW
//	b = b - lr * dL/db
//
// Src drives dropout masks during the cached forward pass. A nil Src uses the
// global generator.
type SGD struct {
	LearningRate float64
	Loss         Loss
	Src          rand.Source
}

func NewSGD(learningRate float64, loss Loss, src rand.Source) *SGD {
	return &SGD{
		LearningRate: learningRate,
		Loss:         loss,
		Src:          src,
	}
}

// Backward derives weight and bias gradients for every layer from the caches of
// the preceding PredictCached call. The result is aligned with nw.Layers.
//
// It panics if any layer has no cache: gradients from a stale network would be
// silently wrong.
func (opt *SGD) Backward(nw *NeuralNetwork, prediction, target []float64) []GradientSet {
	if len(prediction) != nw.OutputSize() {
		panic(fmt.Sprintf("Prediction size mismatch. Expected %d, got %d", nw.OutputSize(), len(prediction)))
	}
	grads := make([]GradientSet, len(nw.Layers))

	// dL/da of the last layer
	dLda := opt.Loss.Derivative(prediction, target)

	for i := len(nw.Layers) - 1; i >= 0; i-- {
		layer := nw.Layers[i]
		if !layer.Cached() {
			panic(fmt.Sprintf("Layer %d has no forward cache: call PredictCached before computing gradients", i))
		}

		// da/dt at the cached transfer
		daDt := layer.Activation.Derive(layer.lastTransfer)

		// dt/db is 1, so dL/db = dL/da ⊙ da/dt
		delta := Hadamard(dLda, daDt)

		// dt/dW[j,k] is input[k]
		grads[i] = GradientSet{
			DW: Outer(delta, layer.lastInput),
			DB: delta,
		}

		if i == 0 {
			break
		}

		// Each previous unit feeds every unit of this layer: sum over j of delta[j]*W[j,k].
		dLda = VecMul(delta, layer.Weights)
		if layer.lastMask != nil {
			floats.Mul(dLda, layer.lastMask)
		}
	}

	return grads
}

// Gradients runs its own cached forward pass on input and returns the gradients
// along with the prediction they were derived from.
func (opt *SGD) Gradients(nw *NeuralNetwork, input, target []float64) ([]GradientSet, []float64) {
	prediction := nw.PredictCached(input, opt.Src)
	return opt.Backward(nw, prediction, target), prediction
}

// BatchGradients averages per-example gradients over the batch: summed in
// example order, then divided by the batch length. An empty batch returns nil.
func (opt *SGD) BatchGradients(nw *NeuralNetwork, inputs, targets [][]float64) ([]GradientSet, float64) {
	if len(inputs) != len(targets) {
		panic(fmt.Sprintf("Batch size mismatch: %d inputs, %d targets", len(inputs), len(targets)))
	}
	if len(inputs) == 0 {
		return nil, 0
	}

	sum := make([]GradientSet, len(nw.Layers))
	for i, l := range nw.Layers {
		sum[i] = newGradientSet(l)
	}

	totalLoss := 0.0
	for n, input := range inputs {
		grads, prediction := opt.Gradients(nw, input, targets[n])
		totalLoss += opt.Loss.Total(prediction, targets[n])
		for i := range grads {
			sum[i].DW.Add(grads[i].DW)
			floats.Add(sum[i].DB, grads[i].DB)
		}
	}

	scale := 1.0 / float64(len(inputs))
	for i := range sum {
		sum[i].DW.Scale(scale)
		floats.Scale(scale, sum[i].DB)
	}
	return sum, totalLoss * scale
}

// Update applies W -= lr*dW and b -= lr*db to every layer, then clears the
// caches since they no longer describe the network.
func (opt *SGD) Update(nw *NeuralNetwork, grads []GradientSet) {
	if len(grads) != len(nw.Layers) {
		panic(fmt.Sprintf("Gradient count mismatch: %d layers, %d gradient sets", len(nw.Layers), len(grads)))
	}
	for i, layer := range nw.Layers {
		// Simple update: W = W - (lr * gradient)
		layer.Weights.AddScaled(-opt.LearningRate, grads[i].DW)
		floats.AddScaled(layer.Biases, -opt.LearningRate, grads[i].DB)
	}
	nw.ClearCache()
}

// OptimizeOnce performs one cached forward pass, one backward pass and one
// update. It returns the loss of the prediction before the update.
func (opt *SGD) OptimizeOnce(nw *NeuralNetwork, input, target []float64) float64 {
	grads, prediction := opt.Gradients(nw, input, target)
	loss := opt.Loss.Total(prediction, target)
	opt.Update(nw, grads)
	return loss
}

// OptimizeBatch applies one update with gradients averaged over the batch and
// returns the mean loss before the update. An empty batch is a no-op.
func (opt *SGD) OptimizeBatch(nw *NeuralNetwork, inputs, targets [][]float64) float64 {
	grads, loss := opt.BatchGradients(nw, inputs, targets)
	if grads == nil {
		return 0
	}
	opt.Update(nw, grads)
	return loss
}
