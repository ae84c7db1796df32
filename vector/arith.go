package vector

import (
	"math"

	"github.com/vecindex/vecindex/vecerrors"
)

// Add returns the element-wise sum of a and b.
func Add(a, b Vector) (Vector, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out := make(Vector, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, checkOverflow(out, "add")
}

// Sub returns the element-wise difference a-b.
func Sub(a, b Vector) (Vector, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out := make(Vector, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out, checkOverflow(out, "sub")
}

// Mul returns the element-wise product of a and b.
func Mul(a, b Vector) (Vector, error) {
	if err := checkDims(a, b); err != nil {
		return nil, err
	}
	out := make(Vector, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out, checkOverflow(out, "mul")
}

func checkOverflow(v Vector, op string) error {
	for _, x := range v {
		if math.IsInf(float64(x), 0) {
			return vecerrors.NewOverflow(op)
		}
	}
	return nil
}

// Accumulator maintains a running per-element float32 sum plus an
// integer count, backing the avg/sum aggregates. Add must only be
// called with vectors of the accumulator's fixed dimension.
type Accumulator struct {
	sums  []float32
	count int64
	dim   int
}

// NewAccumulator creates an accumulator for vectors of the given dimension.
func NewAccumulator(dim int) *Accumulator {
	return &Accumulator{sums: make([]float32, dim), dim: dim}
}

// Add folds v into the running sums.
func (a *Accumulator) Add(v Vector) error {
	if err := v.ValidateDims(a.dim); err != nil {
		return err
	}
	for i, x := range v {
		a.sums[i] += x
	}
	a.count++
	return nil
}

// Count returns the number of vectors folded in so far.
func (a *Accumulator) Count() int64 { return a.count }

// Sum returns the element-wise sum aggregate.
func (a *Accumulator) Sum() (Vector, error) {
	out := make(Vector, a.dim)
	copy(out, a.sums)
	return out, checkOverflow(out, "sum")
}

// Avg returns the element-wise mean aggregate. It fails with Overflow if
// any running sum is non-finite.
func (a *Accumulator) Avg() (Vector, error) {
	if a.count == 0 {
		return make(Vector, a.dim), nil
	}
	out := make(Vector, a.dim)
	scale := 1.0 / float32(a.count)
	for i, s := range a.sums {
		out[i] = s * scale
	}
	return out, checkOverflow(out, "avg")
}
