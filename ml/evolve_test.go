package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutate(t *testing.T) {
	rng := testRand(1)
	nw := Build(rng, Input(3), Dense(4), Dense(2, WithActivation(ActLinear)))
	before := flattenParams(nw)

	Mutate(nw, 0, rng)
	assert.Equal(t, before, flattenParams(nw))

	Mutate(nw, 1, rng)
	after := flattenParams(nw)
	changed := 0
	for i, v := range after {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
		if v != before[i] {
			changed++
		}
	}
	assert.Equal(t, len(after), changed)
}

func TestMutateClearsCache(t *testing.T) {
	rng := testRand(2)
	nw := Build(rng, Input(2), Dense(2, WithActivation(ActLinear)))
	nw.PredictCached([]float64{1, 2}, rng)
	require.True(t, nw.Cached())
	Mutate(nw, 0.5, rng)
	assert.False(t, nw.Cached())
}

func TestCrossover(t *testing.T) {
	rng := testRand(3)
	a := Build(rng, Input(3), Dense(5), Dense(2, WithActivation(ActLinear)))
	b := Build(rng, Input(3), Dense(5), Dense(2, WithActivation(ActLinear)))
	pa, pb := flattenParams(a), flattenParams(b)

	child := Crossover(a, b, rng)
	assert.Equal(t, a.Shape(), child.Shape())
	fromA, fromB := 0, 0
	for i, v := range flattenParams(child) {
		switch v {
		case pa[i]:
			fromA++
		case pb[i]:
			fromB++
		default:
			t.Errorf("param %d = %v comes from neither parent", i, v)
		}
	}
	assert.Positive(t, fromA)
	assert.Positive(t, fromB)

	// Parents are untouched.
	assert.Equal(t, pa, flattenParams(a))
	assert.Equal(t, pb, flattenParams(b))

	other := Build(rng, Input(3), Dense(4), Dense(2))
	assert.Panics(t, func() { Crossover(a, other, rng) })
}
