package ml

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/pkg/errors"
)

type layerData struct {
	Weights    *Matrix
	Biases     []float64
	Activation Activation
	Transfer   Transfer
}

type networkData struct {
	Layers []layerData
}

// SaveToFile writes the network's parameters and layer kinds with encoding/gob.
func (nw *NeuralNetwork) SaveToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "creating %s", filename)
	}
	if err := nw.Encode(file); err != nil {
		file.Close()
		return errors.Wrapf(err, "writing %s", filename)
	}
	return errors.Wrapf(file.Close(), "closing %s", filename)
}

func (nw *NeuralNetwork) Encode(w io.Writer) error {
	ld := make([]layerData, len(nw.Layers))
	for i, l := range nw.Layers {
		ld[i] = layerData{
			Weights:    l.Weights,
			Biases:     l.Biases,
			Activation: l.Activation,
			Transfer:   l.Transfer,
		}
	}
	return gob.NewEncoder(w).Encode(networkData{Layers: ld})
}

func decodeNetwork(r io.Reader) (networkData, error) {
	var loaded networkData
	if err := gob.NewDecoder(r).Decode(&loaded); err != nil {
		return networkData{}, errors.Wrap(err, "failed to decode gob data")
	}
	return loaded, nil
}

// LoadFromFile overwrites the parameters of an existing network. Nothing is
// written unless the file matches the network's architecture exactly.
func (nw *NeuralNetwork) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "opening %s", filename)
	}
	defer file.Close()

	loaded, err := decodeNetwork(file)
	if err != nil {
		return err
	}

	// --- VALIDATION STEP ---
	if len(nw.Layers) != len(loaded.Layers) {
		return errors.Errorf("architecture mismatch: current network has %d layers, model file has %d",
			len(nw.Layers), len(loaded.Layers))
	}
	for i, curr := range nw.Layers {
		ll := loaded.Layers[i]
		if curr.Activation != ll.Activation {
			return errors.Errorf("layer %d mismatch: expected activation %v, got %v", i, curr.Activation, ll.Activation)
		}
		if curr.Transfer != ll.Transfer {
			return errors.Errorf("layer %d mismatch: expected transfer %v, got %v", i, curr.Transfer.Kind, ll.Transfer.Kind)
		}
		if ll.Weights == nil || !curr.Weights.SameShape(ll.Weights) {
			return errors.Errorf("layer %d weights shape mismatch", i)
		}
		if len(curr.Biases) != len(ll.Biases) {
			return errors.Errorf("layer %d biases mismatch: expected %d, got %d", i, len(curr.Biases), len(ll.Biases))
		}
	}

	// --- APPLICATION STEP ---
	for i, curr := range nw.Layers {
		copy(curr.Weights.data, loaded.Layers[i].Weights.data)
		copy(curr.Biases, loaded.Layers[i].Biases)
		curr.ClearCache()
	}
	return nil
}

// Load builds a new network from a file written by SaveToFile.
func Load(filename string) (*NeuralNetwork, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	defer file.Close()
	return Decode(file)
}

func Decode(r io.Reader) (*NeuralNetwork, error) {
	loaded, err := decodeNetwork(r)
	if err != nil {
		return nil, err
	}
	if len(loaded.Layers) == 0 {
		return nil, errors.New("model has no layers")
	}

	layers := make([]*Layer, len(loaded.Layers))
	for i, ll := range loaded.Layers {
		l, err := NewLayerFromParams(ll.Weights, ll.Biases, ll.Transfer, ll.Activation)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if i > 0 && layers[i-1].OutputSize != l.InputSize {
			return nil, errors.Errorf("layer %d input %d does not match previous output %d", i, l.InputSize, layers[i-1].OutputSize)
		}
		layers[i] = l
	}
	return NewNetwork(layers...), nil
}
