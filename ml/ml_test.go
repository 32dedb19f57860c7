package ml

import (
	"testing"
)

// --- Global Variables to prevent compiler optimizations ---
var resultVec []float64
var resultLoss float64
var resultGrads []GradientSet

// --- 1. Benchmarks: Matrix-Vector Products ---

func benchmarkMulVec(b *testing.B, size int) {
	rng := testRand(1)
	m := NewMatrix(size, size)
	m.RandomizeUniform(rng, -1, 1)
	x := make([]float64, size)
	fillUniform(x, rng, -1, 1)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		resultVec = MulVec(m, x)
	}
}

func BenchmarkMulVec_64(b *testing.B)   { benchmarkMulVec(b, 64) }
func BenchmarkMulVec_256(b *testing.B)  { benchmarkMulVec(b, 256) }
func BenchmarkMulVec_1024(b *testing.B) { benchmarkMulVec(b, 1024) }

// --- 2. Benchmarks: Activation Overhead ---

func BenchmarkActivation_Switch(b *testing.B) {
	// 1 Million elements
	x := make([]float64, 1000*1000)
	fillUniform(x, testRand(2), -1, 1)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		resultVec = ActRelu.Activate(x)
	}
}

func BenchmarkActivation_FuncPtr(b *testing.B) {
	m := NewMatrix(1000, 1000)
	m.RandomizeUniform(testRand(2), -1, 1)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		m.ApplyFunc(Relu)
	}
}

// --- 3. Benchmarks: Neural Network Operations ---

// setupNetwork prepares a standard MNIST network and one random example.
func setupNetwork() (*NeuralNetwork, []float64, []float64) {
	rng := testRand(3)
	nn := Build(rng,
		Input(784),
		Dense(64),
		Dense(32),
		Dense(16),
		Dense(10, WithActivation(ActLinear)),
	)

	input := make([]float64, 784)
	fillUniform(input, rng, 0, 1)

	target := make([]float64, 10)
	target[rng.IntN(10)] = 1
	return nn, input, target
}

// Benchmark: Forward Pass Only (Inference Speed)
func BenchmarkForward(b *testing.B) {
	nn, input, _ := setupNetwork()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		resultVec = nn.Predict(input)
	}
}

func BenchmarkForwardCached(b *testing.B) {
	nn, input, _ := setupNetwork()
	rng := testRand(4)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		resultVec = nn.PredictCached(input, rng)
	}
}

// Benchmark: Backward Pass Only (Gradient Calculation Cost)
func BenchmarkBackprop(b *testing.B) {
	nn, input, target := setupNetwork()
	opt := NewSGD(0.01, LossCCE, testRand(5))

	// Pre-warm the caches with one forward pass
	prediction := nn.PredictCached(input, opt.Src)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		resultGrads = opt.Backward(nn, prediction, target)
	}
}

// --- 4. Benchmarks: Full Training Step ---

func benchmarkOptimizeBatch(b *testing.B, batchSize int) {
	nn, _, _ := setupNetwork()
	rng := testRand(6)
	inputs := make([][]float64, batchSize)
	targets := make([][]float64, batchSize)
	for i := range inputs {
		inputs[i] = make([]float64, 784)
		fillUniform(inputs[i], rng, 0, 1)
		targets[i] = make([]float64, 10)
		targets[i][rng.IntN(10)] = 1
	}
	opt := NewSGD(0.01, LossCCE, rng)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		resultLoss = opt.OptimizeBatch(nn, inputs, targets)
	}
}

func BenchmarkTrainStep_SGD_1(b *testing.B)  { benchmarkOptimizeBatch(b, 1) }
func BenchmarkTrainStep_SGD_64(b *testing.B) { benchmarkOptimizeBatch(b, 64) }
