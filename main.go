// Command neuron trains and runs small feed-forward networks.
//
// Fit sin(x):       `go run . sine --epochs=2000`
//
// Train on MNIST:   `go run . train --csv=assets/mnist_train.csv --model=assets/model.gob`
//
// Classify a digit: `go run . infer --model=assets/model.gob --image=assets/5.jpg`
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"math/rand/v2"
	"os"

	"github.com/b0tShaman/neuron/data"
	"github.com/b0tShaman/neuron/ml"
	"github.com/google/subcommands"
	"github.com/pkg/errors"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&SineCommand{}, "")
	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&InferCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// -------- SINE -------- //

type SineCommand struct {
	points       int
	epochs       int
	batchSize    int
	learningRate float64
	seed         uint64
}

var _ subcommands.Command = (*SineCommand)(nil)

func (*SineCommand) Name() string     { return "sine" }
func (*SineCommand) Synopsis() string { return "Fit sin(x) on [-π, π] with a small regression network" }
func (*SineCommand) Usage() string    { return "sine [flags]\n" }

func (c *SineCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.points, "points", 100, "Number of sample points")
	f.IntVar(&c.epochs, "epochs", 2000, "Training epochs")
	f.IntVar(&c.batchSize, "batch-size", 10, "Mini-batch size")
	f.Float64Var(&c.learningRate, "lr", 0.05, "Learning rate")
	f.Uint64Var(&c.seed, "seed", 1, "Random seed")
}

func (c *SineCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *SineCommand) executeErr(ctx context.Context) error {
	xs, ys := data.Sine(c.points, -math.Pi, math.Pi)

	rng := rand.New(rand.NewPCG(c.seed, c.seed))
	nw := ml.Build(rng,
		ml.Input(1),
		ml.Dense(16, ml.WithActivation(ml.ActTanh)),
		ml.Dense(16, ml.WithActivation(ml.ActTanh)),
		ml.Dense(1, ml.WithActivation(ml.ActLinear)),
	)

	history, err := ml.Train(nw, xs, ys, ml.TrainingConfig{
		Epochs:       c.epochs,
		BatchSize:    c.batchSize,
		LearningRate: c.learningRate,
		Loss:         ml.LossMSE,
		Seed:         c.seed,
		VerboseEvery: max(c.epochs/10, 1),
	})
	if err != nil {
		return errors.Wrap(err, "training")
	}

	loss, _ := nw.Evaluate(xs, ys, ml.LossMSE)
	log.Printf("Final training loss %.6f, evaluation loss %.6f", history.Last(), loss)
	return nil
}

// -------- TRAIN -------- //

type TrainCommand struct {
	csvFile      string
	npzFile      string
	testCSVFile  string
	modelFile    string
	classes      int
	hidden       int
	dropRate     float64
	epochs       int
	batchSize    int
	learningRate float64
	decay        float64
	seed         uint64
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string     { return "train" }
func (*TrainCommand) Synopsis() string { return "Train a classifier on a label-first CSV or an npz archive" }
func (*TrainCommand) Usage() string    { return "train (--csv=FILE | --npz=FILE) [flags]\n" }

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.csvFile, "csv", "", "Training CSV, label in the first column")
	f.StringVar(&c.npzFile, "npz", "", "Training npz archive with x_train.npy and y_train.npy")
	f.StringVar(&c.testCSVFile, "test-csv", "", "Optional test CSV for accuracy reporting")
	f.StringVar(&c.modelFile, "model", "assets/model.gob", "Where to save the trained model")
	f.IntVar(&c.classes, "classes", 10, "Number of classes")
	f.IntVar(&c.hidden, "hidden", 128, "Hidden layer width")
	f.Float64Var(&c.dropRate, "drop-rate", 0, "Dropout rate on the output layer's inputs")
	f.IntVar(&c.epochs, "epochs", 10, "Training epochs")
	f.IntVar(&c.batchSize, "batch-size", 50, "Mini-batch size")
	f.Float64Var(&c.learningRate, "lr", 0.05, "Learning rate")
	f.Float64Var(&c.decay, "decay", 0, "Per-epoch learning rate multiplier (0 disables)")
	f.Uint64Var(&c.seed, "seed", 12345, "Random seed")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	var xs, ys [][]float64
	var err error
	switch {
	case c.csvFile != "":
		xs, ys, err = data.LoadCSV(c.csvFile, c.classes, 255)
	case c.npzFile != "":
		xs, ys, err = data.LoadNPZ(c.npzFile, "x_train.npy", "y_train.npy", c.classes)
	default:
		return errors.New("one of --csv or --npz is required")
	}
	if err != nil {
		return errors.Wrap(err, "loading training data")
	}
	if len(xs) == 0 {
		return errors.New("training set is empty")
	}
	log.Printf("Loaded %d samples with %d features", len(xs), len(xs[0]))

	rng := rand.New(rand.NewPCG(c.seed, c.seed))
	nw := ml.Build(rng,
		ml.Input(len(xs[0])),
		ml.Dense(c.hidden, ml.WithActivation(ml.ActLeakyRelu)),
		ml.Dense(c.classes, ml.WithActivation(ml.ActLinear), ml.DropRate(c.dropRate)),
	)

	if _, err := ml.Train(nw, xs, ys, ml.TrainingConfig{
		Epochs:       c.epochs,
		BatchSize:    c.batchSize,
		LearningRate: c.learningRate,
		Decay:        c.decay,
		Loss:         ml.LossCCE,
		Seed:         c.seed,
		ModelPath:    c.modelFile,
		VerboseEvery: 1,
	}); err != nil {
		return errors.Wrap(err, "training")
	}

	if c.testCSVFile != "" {
		testX, testY, err := data.LoadCSV(c.testCSVFile, c.classes, 255)
		if err != nil {
			return errors.Wrap(err, "loading test data")
		}
		loss, acc := nw.Evaluate(testX, testY, ml.LossCCE)
		log.Printf("Test loss %.4f, accuracy %.2f%%", loss, acc*100)
	}
	return nil
}

// -------- INFER -------- //

type InferCommand struct {
	modelFile string
	imageFile string
}

var _ subcommands.Command = (*InferCommand)(nil)

func (*InferCommand) Name() string     { return "infer" }
func (*InferCommand) Synopsis() string { return "Classify an image with a saved model" }
func (*InferCommand) Usage() string    { return "infer --model=FILE --image=FILE\n" }

func (c *InferCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.modelFile, "model", "assets/model.gob", "Saved model")
	f.StringVar(&c.imageFile, "image", "", "Image to classify (jpeg or png)")
}

func (c *InferCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *InferCommand) executeErr(ctx context.Context) error {
	nw, err := ml.Load(c.modelFile)
	if err != nil {
		return errors.Wrap(err, "loading model")
	}
	log.Printf("Running Inference on: %s", c.imageFile)
	class, confidence, err := ml.InferenceImg(nw, c.imageFile, data.ConvertImage1D)
	if err != nil {
		return err
	}
	log.Printf("Predicted class: %d (confidence %.2f%%)", class, confidence*100)
	return nil
}
