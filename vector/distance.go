package vector

import (
	"math"

	"github.com/vecindex/vecindex/vecerrors"
)

// Distance names one of the four supported distance kinds. It is stored
// as an enum in index metadata so kernel dispatch is by enum switch, not
// by a polymorphic interface call — this keeps the hot loops monomorphic.
type Distance int

const (
	L2 Distance = iota
	Inner
	Cosine
	L1
)

func (d Distance) String() string {
	switch d {
	case L2:
		return "l2"
	case Inner:
		return "inner"
	case Cosine:
		return "cosine"
	case L1:
		return "l1"
	default:
		return "unknown"
	}
}

// SupportsIndex reports whether an index engine may be built over this
// distance kind. L1 has no index support in this core.
func (d Distance) SupportsIndex() bool {
	return d == L2 || d == Inner || d == Cosine
}

// Kernel returns the function used to rank candidates for d: ascending
// order under Kernel(d) must equal "most similar first". For Inner this
// is the negated dot product, for Cosine it is 1-cos(theta), for L2 it
// is the squared Euclidean distance (monotone-equivalent to the true
// distance, and cheaper because it avoids a sqrt in the hot path).
func (d Distance) Kernel() func(a, b Vector) (float32, error) {
	switch d {
	case L2:
		return SquaredL2
	case Inner:
		return NegativeInnerProduct
	case Cosine:
		return CosineDistance
	case L1:
		return L1Distance
	default:
		return nil
	}
}

// dotGeneric computes the dot product with no branch inside the loop so
// the compiler or an explicit SIMD backend can fuse it into multiply-adds.
func dotGeneric(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func squaredL2Generic(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func l1Generic(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

func checkDims(a, b Vector) error {
	if len(a) != len(b) {
		return vecerrors.NewDimensionMismatch(len(a), len(b))
	}
	return nil
}

// SquaredL2 returns the squared Euclidean distance between a and b. This
// is the form used internally by index comparisons; L2Distance takes the
// sqrt for the externally-visible operator.
func SquaredL2(a, b Vector) (float32, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return squaredL2Generic(a, b), nil
}

// L2Distance returns sqrt(sum((a_i-b_i)^2)).
func L2Distance(a, b Vector) (float32, error) {
	sq, err := SquaredL2(a, b)
	if err != nil {
		return 0, err
	}
	return float32(math.Sqrt(float64(sq))), nil
}

// InnerProduct returns sum(a_i*b_i).
func InnerProduct(a, b Vector) (float32, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return dotGeneric(a, b), nil
}

// NegativeInnerProduct returns -InnerProduct(a,b), so ascending order over
// this kernel equals most-similar-first, matching the `<#>` operator.
func NegativeInnerProduct(a, b Vector) (float32, error) {
	ip, err := InnerProduct(a, b)
	if err != nil {
		return 0, err
	}
	return -ip, nil
}

// Norm returns the Euclidean (L2) norm of v.
func Norm(v Vector) float32 {
	return float32(math.Sqrt(float64(dotGeneric(v, v))))
}

// CosineDistance returns 1 - cos(theta) between a and b. If either vector
// has zero norm the result is NaN: the host must treat such rows as an
// unordered tail rather than assume a total order.
func CosineDistance(a, b Vector) (float32, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}

	normA := Norm(a)
	normB := Norm(b)
	if normA == 0 || normB == 0 {
		return float32(math.NaN()), nil
	}

	cos := dotGeneric(a, b) / (normA * normB)
	return 1 - cos, nil
}

// L1Distance returns sum(|a_i-b_i|). It has no index support.
func L1Distance(a, b Vector) (float32, error) {
	if err := checkDims(a, b); err != nil {
		return 0, err
	}
	return l1Generic(a, b), nil
}
