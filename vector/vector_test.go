package vector

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	v := Vector{1, -2.5, 0, 3.25}
	s := v.Format()
	got, err := Parse(s)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{"", "[]", "[1,2", "1,2]", "[1,,2]", "[1,abc]"}
	for _, c := range cases {
		_, err := Parse(c)
		assert.Error(t, err, "expected error for %q", c)
	}
}

func TestValidateRejectsNonFinite(t *testing.T) {
	v := Vector{1, float32(math.Inf(1)), 2}
	assert.Error(t, v.Validate())

	v = Vector{1, float32(math.NaN())}
	assert.Error(t, v.Validate())
}

func TestValidateRejectsEmpty(t *testing.T) {
	assert.Error(t, Vector{}.Validate())
}

func TestValidateDims(t *testing.T) {
	v := Vector{1, 2, 3}
	assert.NoError(t, v.ValidateDims(3))
	assert.Error(t, v.ValidateDims(4))
}

func TestValidateForIndexRejectsOversizedDimension(t *testing.T) {
	v := make(Vector, MaxIndexedDimension+1)
	for i := range v {
		v[i] = 1
	}
	assert.Error(t, v.ValidateForIndex())
}

func TestCloneIsIndependent(t *testing.T) {
	v := Vector{1, 2, 3}
	c := v.Clone()
	c[0] = 99
	assert.Equal(t, float32(1), v[0])
}

func TestSquaredL2Symmetric(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	a := randVector(r, 16)
	b := randVector(r, 16)

	d1, err := SquaredL2(a, b)
	require.NoError(t, err)
	d2, err := SquaredL2(b, a)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestL2DistanceTriangleInequality(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		a := randVector(r, 8)
		b := randVector(r, 8)
		c := randVector(r, 8)

		ab, err := L2Distance(a, b)
		require.NoError(t, err)
		bc, err := L2Distance(b, c)
		require.NoError(t, err)
		ac, err := L2Distance(a, c)
		require.NoError(t, err)

		assert.LessOrEqual(t, float64(ac), float64(ab)+float64(bc)+1e-4)
	}
}

func TestCosineDistanceBounds(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		a := randVector(r, 12)
		b := randVector(r, 12)

		d, err := CosineDistance(a, b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d, float32(0))
		assert.LessOrEqual(t, d, float32(2))
	}
}

func TestCosineDistanceZeroVectorIsNaN(t *testing.T) {
	zero := Vector{0, 0, 0}
	other := Vector{1, 2, 3}
	d, err := CosineDistance(zero, other)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(d)))
}

func TestCosineDistanceIdenticalVectorIsZero(t *testing.T) {
	v := Vector{1, 2, 3}
	d, err := CosineDistance(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-6)
}

func TestNegativeInnerProductOrdersMostSimilarFirst(t *testing.T) {
	q := Vector{1, 0}
	near := Vector{2, 0}
	far := Vector{0.1, 0}

	dNear, err := NegativeInnerProduct(q, near)
	require.NoError(t, err)
	dFar, err := NegativeInnerProduct(q, far)
	require.NoError(t, err)
	assert.Less(t, dNear, dFar)
}

func TestKernelDispatch(t *testing.T) {
	a := Vector{1, 2}
	b := Vector{3, 4}

	for _, d := range []Distance{L2, Inner, Cosine, L1} {
		kf := d.Kernel()
		require.NotNil(t, kf)
		_, err := kf(a, b)
		require.NoError(t, err)
	}
}

func TestDistanceSupportsIndex(t *testing.T) {
	assert.True(t, L2.SupportsIndex())
	assert.True(t, Inner.SupportsIndex())
	assert.True(t, Cosine.SupportsIndex())
	assert.False(t, L1.SupportsIndex())
}

func TestDimensionMismatchError(t *testing.T) {
	_, err := SquaredL2(Vector{1, 2}, Vector{1, 2, 3})
	assert.Error(t, err)
}

func randVector(r *rand.Rand, dim int) Vector {
	v := make(Vector, dim)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}
