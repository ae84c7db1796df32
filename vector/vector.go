// Package vector implements the fixed-element-type vector value and its
// distance kernels: a finite-length sequence of IEEE-754 single-precision
// floats with element-wise arithmetic, aggregates and text/binary codecs.
package vector

import (
	"math"
	"strconv"
	"strings"

	"github.com/vecindex/vecindex/vecerrors"
)

// MaxDimension is the largest dimension a vector may have for storage.
// Columns declared with an indexed operator class cap search at
// MaxIndexedDimension instead (see Vector.ValidateForIndex).
const MaxDimension = 16000

// MaxIndexedDimension is the largest dimension a vector may have to be
// eligible for HNSW or IVFFlat indexing.
const MaxIndexedDimension = 2000

// Vector is a finite-length sequence of float32 elements.
type Vector []float32

// Parse decodes the external text form "[x1,x2,...,xd]" into a Vector.
// Every element must be finite; the round trip Parse(Format(v)) == v is
// bit-exact for all finite float32 components.
func Parse(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, vecerrors.NewBadInput("vector literal must be bracketed: " + s)
	}

	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil, vecerrors.NewBadInput("vector literal has no elements")
	}

	parts := strings.Split(inner, ",")
	if len(parts) > MaxDimension {
		return nil, vecerrors.NewBadInput("vector dimension exceeds maximum")
	}

	v := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, vecerrors.NewBadInput("malformed vector element: " + p)
		}
		if !isFinite(f) {
			return nil, vecerrors.NewBadInput("vector element is not finite: " + p)
		}
		v[i] = float32(f)
	}

	return v, nil
}

// Format encodes v into its external text form "[x1,x2,...,xd]".
func (v Vector) Format() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Validate checks that v has a legal dimension and every element is
// finite, returning BadInput otherwise.
func (v Vector) Validate() error {
	if len(v) == 0 {
		return vecerrors.NewBadInput("vector must have at least one dimension")
	}
	if len(v) > MaxDimension {
		return vecerrors.NewBadInput("vector dimension exceeds maximum")
	}
	for _, x := range v {
		if !isFinite(float64(x)) {
			return vecerrors.NewBadInput("vector contains a non-finite element")
		}
	}
	return nil
}

// ValidateDims returns DimensionMismatch if v's length doesn't equal want.
func (v Vector) ValidateDims(want int) error {
	if len(v) != want {
		return vecerrors.NewDimensionMismatch(want, len(v))
	}
	return nil
}

// ValidateForIndex additionally enforces the indexed-search dimension cap.
func (v Vector) ValidateForIndex() error {
	if err := v.Validate(); err != nil {
		return err
	}
	if len(v) > MaxIndexedDimension {
		return vecerrors.NewUnsupported("vector dimension exceeds indexed-search maximum")
	}
	return nil
}

// Clone returns a copy of v, so later mutation of the caller's slice
// cannot affect a stored element.
func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

// Dims returns the number of elements in v.
func (v Vector) Dims() int { return len(v) }

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
