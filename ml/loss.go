package ml

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const (
	LossSSE Loss = iota
	LossMSE
	LossCCE
)

var lossMap = map[string]Loss{
	"sse": LossSSE,
	"mse": LossMSE,
	"cce": LossCCE,
}

// Loss compares a prediction against a target.
//
// LossCCE embeds a stable softmax: the prediction is treated as logits, so it
// must be paired with a linear output layer rather than an explicit softmax.
type Loss int

func ParseLoss(name string) (Loss, error) {
	l, exists := lossMap[name]
	if !exists {
		return 0, errors.Errorf("unknown loss %q", name)
	}
	return l, nil
}

func (l Loss) String() string {
	switch l {
	case LossSSE:
		return "sse"
	case LossMSE:
		return "mse"
	case LossCCE:
		return "cce"
	default:
		return fmt.Sprintf("Loss(%d)", int(l))
	}
}

// Loss returns the elementwise loss.
func (l Loss) Loss(prediction, target []float64) []float64 {
	checkLossShapes(prediction, target)
	out := make([]float64, len(prediction))
	switch l {
	case LossSSE, LossMSE:
		floats.SubTo(out, prediction, target)
		floats.Mul(out, out)
		if l == LossMSE {
			floats.Scale(1/float64(len(out)), out)
		}
	case LossCCE:
		out = LogSoftmax(prediction)
		floats.Mul(out, target)
		floats.Scale(-1, out)
	default:
		panic("Unknown loss type")
	}
	return out
}

// Total returns the summed loss.
func (l Loss) Total(prediction, target []float64) float64 {
	return floats.Sum(l.Loss(prediction, target))
}

// Derivative returns dL/dprediction.
func (l Loss) Derivative(prediction, target []float64) []float64 {
	checkLossShapes(prediction, target)
	out := make([]float64, len(prediction))
	switch l {
	case LossSSE:
		floats.SubTo(out, prediction, target)
		floats.Scale(2, out)
	case LossMSE:
		floats.SubTo(out, prediction, target)
		floats.Scale(1/float64(len(out)), out)
	case LossCCE:
		copy(out, prediction)
		Softmax(out)
		floats.Sub(out, target)
	default:
		panic("Unknown loss type")
	}
	return out
}

func checkLossShapes(prediction, target []float64) {
	if len(prediction) != len(target) {
		panic(fmt.Sprintf("Loss shape mismatch: prediction %d, target %d", len(prediction), len(target)))
	}
}
