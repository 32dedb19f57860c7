package ml

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const (
	ActLinear Activation = iota
	ActRelu
	ActLeakyRelu
	ActSigmoid
	ActSoftmax
	ActSoftplus
	ActTanh
)

// LeakySlope is the slope of Leaky ReLU for negative inputs.
const LeakySlope = 0.01

var activationMap = map[string]Activation{
	"linear":    ActLinear,
	"relu":      ActRelu,
	"leakyrelu": ActLeakyRelu,
	"sigmoid":   ActSigmoid,
	"softmax":   ActSoftmax,
	"softplus":  ActSoftplus,
	"tanh":      ActTanh,
}

// Activation is a scalar-wise nonlinearity applied to a layer's transfer.
type Activation int

func ParseActivation(name string) (Activation, error) {
	act, exists := activationMap[name]
	if !exists {
		return 0, errors.Errorf("unknown activation %q", name)
	}
	return act, nil
}

func (a Activation) String() string {
	switch a {
	case ActLinear:
		return "linear"
	case ActRelu:
		return "relu"
	case ActLeakyRelu:
		return "leakyrelu"
	case ActSigmoid:
		return "sigmoid"
	case ActSoftmax:
		return "softmax"
	case ActSoftplus:
		return "softplus"
	case ActTanh:
		return "tanh"
	default:
		return fmt.Sprintf("Activation(%d)", int(a))
	}
}

// Activate applies the activation to a transfer vector and returns a new vector.
func (a Activation) Activate(transfer []float64) []float64 {
	out := make([]float64, len(transfer))
	switch a {
	case ActLinear:
		copy(out, transfer)
	case ActRelu:
		for i, x := range transfer {
			out[i] = Relu(x)
		}
	case ActLeakyRelu:
		for i, x := range transfer {
			out[i] = LeakyRelu(x)
		}
	case ActSigmoid:
		for i, x := range transfer {
			out[i] = Sigmoid(x)
		}
	case ActSoftmax:
		copy(out, transfer)
		Softmax(out)
	case ActSoftplus:
		for i, x := range transfer {
			out[i] = Softplus(x)
		}
	case ActTanh:
		for i, x := range transfer {
			out[i] = math.Tanh(x)
		}
	default:
		panic("Unknown activation type")
	}
	return out
}

// Derive returns da/dt evaluated at the transfer (pre-activation) values.
// Softmax returns the diagonal of its Jacobian, s(1-s).
func (a Activation) Derive(transfer []float64) []float64 {
	out := make([]float64, len(transfer))
	switch a {
	case ActLinear:
		for i := range out {
			out[i] = 1
		}
	case ActRelu:
		for i, x := range transfer {
			out[i] = ReluDerivative(x)
		}
	case ActLeakyRelu:
		for i, x := range transfer {
			if x > 0 {
				out[i] = 1
			} else {
				out[i] = LeakySlope
			}
		}
	case ActSigmoid:
		for i, x := range transfer {
			s := Sigmoid(x)
			out[i] = s * (1 - s)
		}
	case ActSoftmax:
		copy(out, transfer)
		Softmax(out)
		for i, s := range out {
			out[i] = s * (1 - s)
		}
	case ActSoftplus:
		for i, x := range transfer {
			out[i] = Sigmoid(x)
		}
	case ActTanh:
		for i, x := range transfer {
			t := math.Tanh(x)
			out[i] = 1 - t*t
		}
	default:
		panic("Unknown activation type")
	}
	return out
}

func Relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func ReluDerivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func LeakyRelu(x float64) float64 {
	if x > 0 {
		return x
	}
	return LeakySlope * x
}

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Softplus computes ln(1+e^x) without overflowing for large x.
func Softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// Softmax normalizes v in place. The max is subtracted before exponentiating.
func Softmax(v []float64) {
	if len(v) == 0 {
		return
	}
	maxVal := floats.Max(v)
	sum := 0.0
	for i, x := range v {
		e := math.Exp(x - maxVal)
		v[i] = e
		sum += e
	}
	floats.Scale(1/sum, v)
}

// LogSoftmax returns ln(softmax(v)) computed as x - max - ln Σexp(x-max).
func LogSoftmax(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	maxVal := floats.Max(v)
	sum := 0.0
	for _, x := range v {
		sum += math.Exp(x - maxVal)
	}
	logSum := math.Log(sum)
	for i, x := range v {
		out[i] = x - maxVal - logSum
	}
	return out
}
