package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Matrix represents a dense matrix with a flat data slice for performance.
type Matrix struct {
	rows, cols int
	data       []float64
	dense      *mat.Dense
}

// -------- CONSTRUCTORS ------- //
func NewMatrix(rows, cols int) *Matrix {
	data := make([]float64, rows*cols)
	return &Matrix{
		rows:  rows,
		cols:  cols,
		data:  data,
		dense: mat.NewDense(rows, cols, data),
	}
}

func NewMatrixFromSlice(rows, cols int, data []float64) *Matrix {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("Slice length mismatch: got %d, want %d x %d", len(data), rows, cols))
	}

	return &Matrix{
		rows:  rows,
		cols:  cols,
		data:  data,
		dense: mat.NewDense(rows, cols, data),
	}
}

// NewMatrixFromRows copies a row-major [][]float64 into a new Matrix.
func NewMatrixFromRows(rows [][]float64) *Matrix {
	if len(rows) == 0 {
		panic("NewMatrixFromRows: no rows")
	}
	return NewMatrixFromSlice(len(rows), len(rows[0]), Flatten(rows))
}

// ------- MATRIX METHODS ------ //
func (m *Matrix) Rows() int         { return m.rows }
func (m *Matrix) Cols() int         { return m.cols }
func (m *Matrix) Data() []float64   { return m.data }
func (m *Matrix) Dense() *mat.Dense { return m.dense }

func (m *Matrix) At(i, j int) float64 {
	return m.data[i*m.cols+j]
}

func (m *Matrix) Set(i, j int, v float64) {
	m.data[i*m.cols+j] = v
}

// Row returns row i as a slice sharing storage with the matrix.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

func (m *Matrix) Clone() *Matrix {
	data := make([]float64, len(m.data))
	copy(data, m.data)
	return NewMatrixFromSlice(m.rows, m.cols, data)
}

func (m *Matrix) SameShape(o *Matrix) bool {
	return m.rows == o.rows && m.cols == o.cols
}

func (m *Matrix) GobEncode() ([]byte, error) {
	w := new(bytes.Buffer)
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(m.rows); err != nil {
		return nil, err
	}
	if err := encoder.Encode(m.cols); err != nil {
		return nil, err
	}
	if err := encoder.Encode(m.data); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (m *Matrix) GobDecode(buf []byte) error {
	r := bytes.NewBuffer(buf)
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(&m.rows); err != nil {
		return err
	}
	if err := decoder.Decode(&m.cols); err != nil {
		return err
	}
	if err := decoder.Decode(&m.data); err != nil {
		return err
	}
	if m.rows <= 0 || m.cols <= 0 {
		return errors.Errorf("invalid matrix shape [%d, %d]", m.rows, m.cols)
	}
	if len(m.data) != m.rows*m.cols {
		return errors.Errorf("matrix data length %d does not match shape [%d, %d]", len(m.data), m.rows, m.cols)
	}

	// Re-create the wrapper after loading data
	m.dense = mat.NewDense(m.rows, m.cols, m.data)

	return nil
}

// RandomizeUniform fills the matrix with samples from U(lo, hi).
// A nil src falls back to the global generator.
func (m *Matrix) RandomizeUniform(src rand.Source, lo, hi float64) {
	fillUniform(m.data, src, lo, hi)
}

func (m *Matrix) Reset() {
	for i := range m.data {
		m.data[i] = 0.0
	}
}

func (m *Matrix) Scale(f float64) {
	floats.Scale(f, m.data)
}

func (m *Matrix) Add(b *Matrix) {
	m.dense.Add(m.dense, b.dense)
}

func (m *Matrix) Subtract(b *Matrix) {
	m.dense.Sub(m.dense, b.dense)
}

// AddScaled performs m += alpha * b.
func (m *Matrix) AddScaled(alpha float64, b *Matrix) {
	floats.AddScaled(m.data, alpha, b.data)
}

func (m *Matrix) ApplyFunc(fn func(float64) float64) {
	for i := range m.data {
		m.data[i] = fn(m.data[i])
	}
}

// ------ VECTOR HELPERS ------
// Vectors are plain []float64; gonum views are created over them without copying.

// MulVec returns m·x.
func MulVec(m *Matrix, x []float64) []float64 {
	if len(x) != m.cols {
		panic(fmt.Sprintf("MulVec shape mismatch: matrix [%d, %d], vector %d", m.rows, m.cols, len(x)))
	}
	out := mat.NewVecDense(m.rows, nil)
	out.MulVec(m.dense, mat.NewVecDense(len(x), x))
	return out.RawVector().Data
}

// VecMul returns vᵀ·m as a vector of length m.Cols().
func VecMul(v []float64, m *Matrix) []float64 {
	if len(v) != m.rows {
		panic(fmt.Sprintf("VecMul shape mismatch: vector %d, matrix [%d, %d]", len(v), m.rows, m.cols))
	}
	out := mat.NewVecDense(m.cols, nil)
	out.MulVec(m.dense.T(), mat.NewVecDense(len(v), v))
	return out.RawVector().Data
}

// Outer returns the outer product u·vᵀ.
func Outer(u, v []float64) *Matrix {
	out := NewMatrix(len(u), len(v))
	out.dense.Outer(1, mat.NewVecDense(len(u), u), mat.NewVecDense(len(v), v))
	return out
}

// Hadamard returns the elementwise product of a and b.
func Hadamard(a, b []float64) []float64 {
	out := make([]float64, len(a))
	copy(out, a)
	floats.Mul(out, b)
	return out
}

func fillUniform(dst []float64, src rand.Source, lo, hi float64) {
	dist := distuv.Uniform{Min: lo, Max: hi, Src: src}
	for i := range dst {
		dst[i] = dist.Rand()
	}
}

func cloneVec(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func Flatten(input [][]float64) []float64 {
	if len(input) == 0 {
		return nil
	}
	rows, cols := len(input), len(input[0])
	flat := make([]float64, rows*cols)
	for i, row := range input {
		if len(row) != cols {
			panic(fmt.Sprintf("Flatten: row %d has %d columns, want %d", i, len(row), cols))
		}
		copy(flat[i*cols:], row)
	}
	return flat
}
