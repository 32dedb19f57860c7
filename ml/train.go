package ml

import (
	"log"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
)

type TrainingConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Decay        float64 // learning rate multiplier applied after every epoch, ignored if 0
	Loss         Loss
	Seed         uint64
	ModelPath    string // saved after training when set
	VerboseEvery int    // How often to log progress (in epochs), 0 disables logging
	Logger       *log.Logger
}

// History records the mean training loss of every epoch.
type History struct {
	Losses []float64
}

func (h History) Last() float64 {
	if len(h.Losses) == 0 {
		return 0
	}
	return h.Losses[len(h.Losses)-1]
}

// Train runs mini-batch SGD over (xs, ys) for cfg.Epochs epochs, reshuffling the
// examples every epoch. The trailing partial batch is trained on as well.
func Train(nw *NeuralNetwork, xs, ys [][]float64, cfg TrainingConfig) (History, error) {
	if err := validateConfig(nw, xs, ys, cfg); err != nil {
		return History{}, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	optimizer := NewSGD(cfg.LearningRate, cfg.Loss, rng)
	indices := NewIndexList(len(xs))
	batchX := make([][]float64, 0, cfg.BatchSize)
	batchY := make([][]float64, 0, cfg.BatchSize)

	history := History{Losses: make([]float64, 0, cfg.Epochs)}
	start := time.Now()
	if cfg.VerboseEvery > 0 {
		logger.Printf("Training %v on %d samples: %+v", nw.Shape(), len(xs), cfg)
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		ShuffleIndices(rng, indices)

		var totalLoss float64
		for batchStart := 0; batchStart < len(indices); batchStart += cfg.BatchSize {
			batchEnd := min(batchStart+cfg.BatchSize, len(indices))
			batchX, batchY = Gather(indices[batchStart:batchEnd], xs, ys, batchX[:0], batchY[:0])

			loss := optimizer.OptimizeBatch(nw, batchX, batchY)
			totalLoss += loss * float64(len(batchX))
		}

		avgLoss := totalLoss / float64(len(xs))
		history.Losses = append(history.Losses, avgLoss)

		if cfg.VerboseEvery > 0 && (epoch%cfg.VerboseEvery == 0 || epoch == 1) {
			logger.Printf("Epoch %d | Loss: %.6f | LR: %.6f | Time: %v", epoch, avgLoss, optimizer.LearningRate, time.Since(start))
		}

		if cfg.Decay > 0 {
			optimizer.LearningRate *= cfg.Decay
		}
	}

	if cfg.ModelPath != "" {
		if err := nw.SaveToFile(cfg.ModelPath); err != nil {
			return history, errors.Wrap(err, "saving trained model")
		}
		if cfg.VerboseEvery > 0 {
			logger.Printf("Saved model to %s", cfg.ModelPath)
		}
	}
	return history, nil
}

func validateConfig(nw *NeuralNetwork, xs, ys [][]float64, cfg TrainingConfig) error {
	if cfg.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Epochs < 0 {
		return errors.Errorf("epochs must not be negative, got %d", cfg.Epochs)
	}
	if len(xs) != len(ys) {
		return errors.Errorf("%d inputs but %d targets", len(xs), len(ys))
	}
	if len(xs) == 0 {
		return errors.New("empty training set")
	}
	for i := range xs {
		if len(xs[i]) != nw.InputSize() {
			return errors.Errorf("sample %d has %d features, network expects %d", i, len(xs[i]), nw.InputSize())
		}
		if len(ys[i]) != nw.OutputSize() {
			return errors.Errorf("target %d has %d values, network outputs %d", i, len(ys[i]), nw.OutputSize())
		}
	}
	return nil
}

// ------ DATA HANDLING HELPERS ------
func NewIndexList(size int) []int {
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

func ShuffleIndices(rng *rand.Rand, indices []int) {
	rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
}

// Gather appends the examples selected by batchIndices to destX and destY
// without copying the vectors themselves.
func Gather(batchIndices []int, xs, ys [][]float64, destX, destY [][]float64) ([][]float64, [][]float64) {
	for _, idx := range batchIndices {
		destX = append(destX, xs[idx])
		destY = append(destY, ys[idx])
	}
	return destX, destY
}
