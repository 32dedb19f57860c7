// Package data loads training sets for the ml package: label-first CSV files,
// numpy npz archives, generated regression curves and single images.
package data

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio/npz"
)

// OneHot returns a vector of length classes with a 1 at label.
func OneHot(label, classes int) ([]float64, error) {
	if label < 0 || label >= classes {
		return nil, errors.Errorf("label %d outside [0, %d)", label, classes)
	}
	v := make([]float64, classes)
	v[label] = 1
	return v, nil
}

// LoadCSV reads rows of the form "label,f1,f2,...". Labels become one-hot
// targets of length classes and every feature is divided by scale. A first
// row whose label is not a number is treated as a header and skipped.
func LoadCSV(path string, classes int, scale float64) (xs, ys [][]float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return ReadCSV(f, classes, scale)
}

func ReadCSV(r io.Reader, classes int, scale float64) (xs, ys [][]float64, err error) {
	if scale == 0 {
		scale = 1
	}
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", line)
		}
		if len(record) < 2 {
			return nil, nil, errors.Errorf("line %d: need a label and at least one feature", line)
		}

		label, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, nil, errors.Wrapf(err, "line %d: label", line)
		}
		target, err := OneHot(label, classes)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", line)
		}

		row := make([]float64, len(record)-1)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "line %d column %d", line, i+2)
			}
			row[i] = v / scale
		}
		if len(xs) > 0 && len(row) != len(xs[0]) {
			return nil, nil, errors.Errorf("line %d has %d features, expected %d", line, len(row), len(xs[0]))
		}

		xs = append(xs, row)
		ys = append(ys, target)
	}
	return xs, ys, nil
}

// LoadNPZ reads uint8 images and labels from a numpy npz archive. Every image
// is flattened and scaled to [0, 1]; labels become one-hot targets.
func LoadNPZ(path, xName, yName string, classes int) (xs, ys [][]float64, err error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", path)
	}
	defer r.Close()

	// numpy writes C-order arrays, so each image is contiguous.
	header := r.Header(xName)
	if header == nil {
		return nil, nil, errors.Errorf("%s: no array %q", path, xName)
	}
	shape := header.Descr.Shape
	if len(shape) < 2 {
		return nil, nil, errors.Errorf("%s: %q has shape %v, want at least 2 dimensions", path, xName, shape)
	}
	features := 1
	for _, s := range shape[1:] {
		features *= s
	}

	var rawX []uint8
	if err := r.Read(xName, &rawX); err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", xName)
	}
	var rawY []uint8
	if err := r.Read(yName, &rawY); err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", yName)
	}
	if len(rawX) != shape[0]*features || len(rawY) != shape[0] {
		return nil, nil, errors.Errorf("%s: %d images of %d features but %d values and %d labels",
			path, shape[0], features, len(rawX), len(rawY))
	}

	xs = make([][]float64, shape[0])
	ys = make([][]float64, shape[0])
	for i := range xs {
		row := make([]float64, features)
		for j := range row {
			row[j] = float64(rawX[i*features+j]) / 255
		}
		xs[i] = row
		if ys[i], err = OneHot(int(rawY[i]), classes); err != nil {
			return nil, nil, errors.Wrapf(err, "sample %d", i)
		}
	}
	return xs, ys, nil
}

// MinMaxNormalize rescales every column to [0, 1] in place. Constant columns
// become 0.
func MinMaxNormalize(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	for j := range rows[0] {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, row := range rows {
			lo = math.Min(lo, row[j])
			hi = math.Max(hi, row[j])
		}
		span := hi - lo
		for _, row := range rows {
			if span == 0 {
				row[j] = 0
			} else {
				row[j] = (row[j] - lo) / span
			}
		}
	}
}

// Sine samples n evenly spaced points of sin(x) over [lo, hi].
func Sine(n int, lo, hi float64) (xs, ys [][]float64) {
	xs = make([][]float64, n)
	ys = make([][]float64, n)
	step := 0.0
	if n > 1 {
		step = (hi - lo) / float64(n-1)
	}
	for i := range xs {
		x := lo + float64(i)*step
		xs[i] = []float64{x}
		ys[i] = []float64{math.Sin(x)}
	}
	return xs, ys
}
