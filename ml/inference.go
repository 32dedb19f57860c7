package ml

import (
	"math"

	"github.com/pkg/errors"
)

// ImageLoader turns an image file into width*height pixel features.
type ImageLoader func(path string, width, height int) ([]float64, error)

// InferenceImg classifies a square image whose side is derived from the
// network's input size.
func InferenceImg(nw *NeuralNetwork, imagePath string, load ImageLoader) (int, float64, error) {
	side := int(math.Sqrt(float64(nw.InputSize())))
	if side*side != nw.InputSize() {
		return 0, 0, errors.Errorf("network input size %d is not a square image", nw.InputSize())
	}

	pixelData, err := load(imagePath, side, side)
	if err != nil {
		return 0, 0, errors.Wrap(err, "loading image")
	}

	class, confidence := nw.Classify(pixelData)
	return class, confidence, nil
}
