package hostif

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoaringVisibilityMapDefaultsAllVisible(t *testing.T) {
	m := NewRoaringVisibilityMap()
	assert.True(t, m.Visible(1))
	assert.True(t, m.Visible(1000000))
}

func TestRoaringVisibilityMapMarkDeleted(t *testing.T) {
	m := NewRoaringVisibilityMap()
	m.MarkDeleted(42)

	assert.False(t, m.Visible(42))
	assert.True(t, m.Visible(43))
	assert.Equal(t, uint64(1), m.Cardinality())
}

func TestRoaringVisibilityMapMarkDeletedIsIdempotent(t *testing.T) {
	m := NewRoaringVisibilityMap()
	m.MarkDeleted(7)
	m.MarkDeleted(7)
	assert.Equal(t, uint64(1), m.Cardinality())
}
