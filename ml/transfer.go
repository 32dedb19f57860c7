package ml

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	TransferDense TransferKind = iota
	TransferDropout
)

type TransferKind int

func (k TransferKind) String() string {
	switch k {
	case TransferDense:
		return "dense"
	case TransferDropout:
		return "dropout"
	default:
		return fmt.Sprintf("TransferKind(%d)", int(k))
	}
}

// Transfer maps (weights, biases, input) to the pre-activation vector.
//
// A dropout transfer behaves differently while training and while testing:
// Train zeroes a Bernoulli(KeepRate) sample of the inputs on every call,
// Test keeps every input and scales the weights by KeepRate instead.
type Transfer struct {
	Kind     TransferKind
	KeepRate float64
}

// DenseTransfer is the fully connected transfer W·x + b.
func DenseTransfer() Transfer {
	return Transfer{Kind: TransferDense, KeepRate: 1}
}

// Dropout returns a dense transfer that drops each input with probability dropRate
// during training.
func Dropout(dropRate float64) Transfer {
	keep := 1 - dropRate
	if !(keep > 0 && keep <= 1) {
		panic(fmt.Sprintf("Dropout: keep rate %v outside (0, 1]", keep))
	}
	return Transfer{Kind: TransferDropout, KeepRate: keep}
}

// Test is the deterministic inference transfer.
func (t Transfer) Test(weights *Matrix, biases, input []float64) []float64 {
	out := MulVec(weights, input)
	if t.Kind == TransferDropout {
		// (keep·W)·x == keep·(W·x)
		floats.Scale(t.KeepRate, out)
	}
	floats.Add(out, biases)
	return out
}

// Train is the training transfer. For dropout it returns the mask applied to the
// input; for a dense transfer the mask is nil.
func (t Transfer) Train(weights *Matrix, biases, input []float64, src rand.Source) (out, mask []float64) {
	if t.Kind != TransferDropout {
		return t.Test(weights, biases, input), nil
	}

	mask = DropoutMask(len(input), t.KeepRate, src)
	out = MulVec(weights, Hadamard(mask, input))
	floats.Add(out, biases)
	return out, mask
}

// DropoutMask samples n independent Bernoulli(keep) values as 0/1 floats.
func DropoutMask(n int, keep float64, src rand.Source) []float64 {
	dist := distuv.Bernoulli{P: keep, Src: src}
	mask := make([]float64, n)
	for i := range mask {
		mask[i] = dist.Rand()
	}
	return mask
}
