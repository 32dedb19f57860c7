package ml

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerSizes(t *testing.T) {
	layer := NewLayer(3, 2, DenseTransfer(), ActLinear, testRand(1))
	assert.Equal(t, 2, layer.InputSize)
	assert.Equal(t, 3, layer.OutputSize)
	assert.Equal(t, 3, layer.Weights.Rows())
	assert.Equal(t, 2, layer.Weights.Cols())
	assert.Len(t, layer.Biases, 3)

	for _, v := range layer.Weights.Data() {
		assert.LessOrEqual(t, v, InitRange)
		assert.GreaterOrEqual(t, v, -InitRange)
	}
	for _, v := range layer.Biases {
		assert.LessOrEqual(t, v, InitRange)
		assert.GreaterOrEqual(t, v, -InitRange)
	}
}

func TestLayerForwardShape(t *testing.T) {
	rng := testRand(2)
	for _, size := range [][2]int{{1, 1}, {3, 2}, {10, 4}, {2, 7}} {
		out, in := size[0], size[1]
		layer := NewLayer(out, in, DenseTransfer(), ActSigmoid, rng)
		x := make([]float64, in)
		assert.Len(t, layer.Forward(x), out)
		assert.Len(t, layer.ForwardCached(x, rng), out)

		assert.Panics(t, func() { layer.Forward(make([]float64, in+1)) })
		assert.Panics(t, func() { layer.ForwardCached(make([]float64, in+1), rng) })
	}
}

func TestLayerCache(t *testing.T) {
	rng := testRand(3)
	layer := NewLayer(2, 3, DenseTransfer(), ActRelu, rng)
	x := []float64{1, -2, 3}

	assert.False(t, layer.Cached())
	layer.Forward(x)
	assert.False(t, layer.Cached(), "Forward must not populate the cache")

	a := layer.ForwardCached(x, rng)
	require.True(t, layer.Cached())
	assert.Equal(t, x, layer.LastInput())
	assert.Equal(t, mulVecAdd(layer.Weights, x, layer.Biases), layer.LastTransfer())
	assert.Equal(t, a, layer.LastActivation())
	assert.Nil(t, layer.LastMask())

	// The cache is a copy, not an alias of the caller's slices.
	x[0] = 100
	a[0] = 100
	assert.Equal(t, 1.0, layer.LastInput()[0])
	assert.NotEqual(t, 100.0, layer.LastActivation()[0])

	layer.ClearCache()
	assert.False(t, layer.Cached())
	assert.Nil(t, layer.LastInput())
	assert.Nil(t, layer.LastTransfer())
	assert.Nil(t, layer.LastActivation())
}

func TestLayerDropoutCachesMaskedInput(t *testing.T) {
	rng := testRand(4)
	layer := NewLayer(2, 8, Dropout(0.5), ActLinear, rng)
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	layer.ForwardCached(x, rng)
	mask := layer.LastMask()
	require.Len(t, mask, len(x))
	assert.Equal(t, Hadamard(mask, x), layer.LastInput())
}

func TestNewLayerFromParams(t *testing.T) {
	w := NewMatrix(2, 3)
	l, err := NewLayerFromParams(w, []float64{0, 0}, DenseTransfer(), ActTanh)
	require.NoError(t, err)
	assert.Equal(t, 3, l.InputSize)
	assert.Equal(t, 2, l.OutputSize)

	_, err = NewLayerFromParams(w, []float64{0, 0, 0}, DenseTransfer(), ActTanh)
	assert.Error(t, err)
	_, err = NewLayerFromParams(nil, nil, DenseTransfer(), ActTanh)
	assert.Error(t, err)
}

func TestNewNetworkValidation(t *testing.T) {
	rng := testRand(5)
	assert.Panics(t, func() { NewNetwork() })
	assert.Panics(t, func() {
		NewNetwork(
			NewLayer(3, 2, DenseTransfer(), ActRelu, rng),
			NewLayer(1, 4, DenseTransfer(), ActLinear, rng),
		)
	})

	bad := NewLayer(3, 2, DenseTransfer(), ActRelu, rng)
	bad.Biases = bad.Biases[:2]
	assert.Panics(t, func() { NewNetwork(bad) })

	assert.NotPanics(t, func() {
		NewNetwork(
			NewLayer(3, 2, DenseTransfer(), ActRelu, rng),
			NewLayer(1, 3, DenseTransfer(), ActLinear, rng),
		)
	})
}

func TestBuild(t *testing.T) {
	nw := Build(testRand(6),
		Input(4),
		Dense(8),
		Dense(5, ActivationName("sigmoid"), DropRate(0.2)),
		Dense(2, WithActivation(ActLinear)),
	)
	assert.Equal(t, []int{4, 8, 5, 2}, nw.Shape())
	assert.Equal(t, ActRelu, nw.Layers[0].Activation)
	assert.Equal(t, ActSigmoid, nw.Layers[1].Activation)
	assert.Equal(t, TransferDropout, nw.Layers[1].Transfer.Kind)
	assert.InDelta(t, 0.8, nw.Layers[1].Transfer.KeepRate, 1e-12)
	assert.Equal(t, TransferDense, nw.Layers[2].Transfer.Kind)

	assert.Panics(t, func() { Build(nil, Dense(3), Dense(2)) })
	assert.Panics(t, func() { Build(nil, Input(3)) })
	assert.Panics(t, func() { Build(nil, Input(3), Dense(2, ActivationName("nope"))) })
}

func TestPredictMatchesPredictCached(t *testing.T) {
	rng := testRand(8)
	nw := NewNetwork(
		NewLayer(5, 3, DenseTransfer(), ActSoftplus, rng),
		NewLayer(4, 5, DenseTransfer(), ActSigmoid, rng),
		NewLayer(2, 4, DenseTransfer(), ActLeakyRelu, rng),
	)
	x := []float64{0.3, -0.7, 1.2}

	assert.False(t, nw.Cached())
	predicted := nw.Predict(x)
	assert.False(t, nw.Cached())

	cached := nw.PredictCached(x, rng)
	assert.Equal(t, predicted, cached)
	require.True(t, nw.Cached())
	for i, l := range nw.Layers {
		assert.NotEmpty(t, l.LastInput(), "layer %d", i)
		assert.NotEmpty(t, l.LastTransfer(), "layer %d", i)
		assert.NotEmpty(t, l.LastActivation(), "layer %d", i)
	}
	assert.Equal(t, x, nw.Layers[0].LastInput())
	assert.Equal(t, nw.Layers[0].LastActivation(), nw.Layers[1].LastInput())
	assert.Equal(t, cached, nw.Layers[2].LastActivation())
}

func TestParameterHandlesShareStorage(t *testing.T) {
	rng := testRand(9)
	nw := NewNetwork(
		NewLayer(2, 2, DenseTransfer(), ActLinear, rng),
		NewLayer(1, 2, DenseTransfer(), ActLinear, rng),
	)
	weights := nw.Weights()
	biases := nw.Biases()
	require.Len(t, weights, 2)
	require.Len(t, biases, 2)

	weights[1].Set(0, 1, 42)
	biases[0][1] = -7
	assert.Equal(t, 42.0, nw.Layers[1].Weights.At(0, 1))
	assert.Equal(t, -7.0, nw.Layers[0].Biases[1])
}

func TestCloneIsDeep(t *testing.T) {
	rng := testRand(10)
	nw := Build(rng, Input(3), Dense(4), Dense(2, WithActivation(ActLinear)))
	x := []float64{1, 2, 3}
	nw.PredictCached(x, rng)

	clone := nw.Clone()
	assert.False(t, clone.Cached())
	assert.Equal(t, nw.Predict(x), clone.Predict(x))

	clone.Weights()[0].Set(0, 0, 5)
	clone.Biases()[1][0] = 5
	assert.NotEqual(t, 5.0, nw.Layers[0].Weights.At(0, 0))
	assert.NotEqual(t, 5.0, nw.Layers[1].Biases[0])
}

func TestEvaluateAndClassify(t *testing.T) {
	w := NewMatrixFromSlice(2, 2, []float64{
		1, 0,
		0, 1,
	})
	l, err := NewLayerFromParams(w, []float64{0, 0}, DenseTransfer(), ActLinear)
	require.NoError(t, err)
	nw := NewNetwork(l)

	xs := [][]float64{{2, 0}, {0, 3}, {1, 0}}
	ys := [][]float64{{1, 0}, {0, 1}, {0, 1}}
	loss, acc := nw.Evaluate(xs, ys, LossSSE)
	assert.InDelta(t, (1.0+4.0+2.0)/3, loss, 1e-12)
	assert.InDelta(t, 2.0/3, acc, 1e-12)

	class, confidence := nw.Classify([]float64{0, 5})
	assert.Equal(t, 1, class)
	assert.Greater(t, confidence, 0.99)
	assert.Less(t, confidence, 1.0)
}

func TestSaveAndLoad(t *testing.T) {
	rng := testRand(11)
	nw := Build(rng,
		Input(3),
		Dense(4, WithActivation(ActTanh), DropRate(0.25)),
		Dense(2, WithActivation(ActLinear)),
	)
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, nw.SaveToFile(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	x := []float64{0.5, -1, 2}
	assert.Equal(t, nw.Shape(), loaded.Shape())
	assert.Equal(t, nw.Predict(x), loaded.Predict(x))
	assert.Equal(t, nw.Layers[0].Transfer, loaded.Layers[0].Transfer)

	fresh := Build(testRand(12),
		Input(3),
		Dense(4, WithActivation(ActTanh), DropRate(0.25)),
		Dense(2, WithActivation(ActLinear)),
	)
	require.NoError(t, fresh.LoadFromFile(path))
	assert.Equal(t, nw.Predict(x), fresh.Predict(x))

	other := Build(testRand(13), Input(3), Dense(5), Dense(2))
	before := other.Predict(x)
	assert.Error(t, other.LoadFromFile(path))
	assert.Equal(t, before, other.Predict(x), "a rejected load must not modify the network")

	_, err = Load(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewBufferString("not a model"))
	assert.Error(t, err)

	tests := []struct {
		name       string
		rows, cols int
		data       []float64
	}{
		{"negative shape", -1, -1, []float64{0.5}},
		{"zero rows", 0, 1, []float64{}},
		{"zero cols", 1, 0, []float64{}},
		{"short data", 2, 2, []float64{1, 2, 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nw := Build(testRand(14), Input(1), Dense(1, WithActivation(ActLinear)))
			w := nw.Layers[0].Weights
			w.rows, w.cols, w.data = tc.rows, tc.cols, tc.data

			var buf bytes.Buffer
			require.NoError(t, nw.Encode(&buf))
			var err error
			assert.NotPanics(t, func() {
				_, err = Decode(&buf)
			})
			assert.Error(t, err)
		})
	}
}

func TestMatrixHelpers(t *testing.T) {
	m := NewMatrixFromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	if diff := cmp.Diff([]float64{14, 32}, MulVec(m, []float64{1, 2, 3})); diff != "" {
		t.Errorf("MulVec (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{9, 12, 15}, VecMul([]float64{1, 2}, m)); diff != "" {
		t.Errorf("VecMul (-want +got):\n%s", diff)
	}
	outer := Outer([]float64{1, 2}, []float64{3, 4, 5})
	if diff := cmp.Diff([]float64{3, 4, 5, 6, 8, 10}, outer.Data()); diff != "" {
		t.Errorf("Outer (-want +got):\n%s", diff)
	}
	assert.Panics(t, func() { MulVec(m, []float64{1, 2}) })
	assert.Panics(t, func() { VecMul([]float64{1, 2, 3}, m) })
	assert.Panics(t, func() { NewMatrixFromSlice(2, 2, []float64{1}) })
}

// mulVecAdd is W·x + b, the dense transfer.
func mulVecAdd(w *Matrix, x, b []float64) []float64 {
	out := MulVec(w, x)
	for i := range out {
		out[i] += b[i]
	}
	return out
}
