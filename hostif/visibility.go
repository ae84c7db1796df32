package hostif

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// VisibilityMap reports whether a tuple id is currently visible to the
// scanning transaction. The index never stores this itself: deletes mark
// tuple-ids invalid through the host's own map, and a dropped HNSW
// element is not physically removed from the graph — the index stream
// yields the tuple-id and the host filters via this interface.
type VisibilityMap interface {
	Visible(id TupleID) bool
}

// RoaringVisibilityMap is a bitmap-backed VisibilityMap: a reference
// implementation for tests and for hosts without their own MVCC snapshot
// representation. It tracks dead tuple ids; everything not marked dead is
// visible.
type RoaringVisibilityMap struct {
	dead *roaring.Bitmap
}

// NewRoaringVisibilityMap returns a map where every id is initially visible.
func NewRoaringVisibilityMap() *RoaringVisibilityMap {
	return &RoaringVisibilityMap{dead: roaring.New()}
}

// MarkDeleted removes id from visibility.
func (m *RoaringVisibilityMap) MarkDeleted(id TupleID) {
	m.dead.Add(uint32(id))
}

// Visible reports whether id has not been marked deleted.
func (m *RoaringVisibilityMap) Visible(id TupleID) bool {
	return !m.dead.Contains(uint32(id))
}

// Cardinality returns the number of ids currently marked deleted.
func (m *RoaringVisibilityMap) Cardinality() uint64 {
	return m.dead.GetCardinality()
}
