package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecindex/vecindex/config"
	"github.com/vecindex/vecindex/hostif"
	"github.com/vecindex/vecindex/hnsw"
	"github.com/vecindex/vecindex/ivfflat"
	"github.com/vecindex/vecindex/vector"
)

type sliceIterator struct {
	ids  []hostif.TupleID
	vecs [][]float32
	pos  int
}

func newSliceIterator(ids []hostif.TupleID, vecs [][]float32) func() (hostif.TupleIterator, error) {
	return func() (hostif.TupleIterator, error) {
		return &sliceIterator{ids: ids, vecs: vecs, pos: -1}, nil
	}
}

func (s *sliceIterator) Next(ctx context.Context) bool {
	s.pos++
	return s.pos < len(s.ids)
}

func (s *sliceIterator) Tuple() (hostif.TupleID, []float32) { return s.ids[s.pos], s.vecs[s.pos] }
func (s *sliceIterator) Err() error                         { return nil }

func fixtureRows(n int) ([]hostif.TupleID, [][]float32) {
	ids := make([]hostif.TupleID, n)
	vecs := make([][]float32, n)
	for i := 0; i < n; i++ {
		ids[i] = hostif.TupleID(i + 1)
		vecs[i] = []float32{float32(i), float32(i)}
	}
	return ids, vecs
}

func drain(t *testing.T, s *Stream) []Result {
	t.Helper()
	var out []Result
	for s.Next(context.Background()) {
		out = append(out, s.Result())
	}
	require.NoError(t, s.Err())
	return out
}

func TestStreamOverIVFFlatRespectsVisibility(t *testing.T) {
	ids, vecs := fixtureRows(20)
	ix, err := ivfflat.Build(context.Background(), newSliceIterator(ids, vecs), 2, nil, nil, ivfflat.WithLists(2))
	require.NoError(t, err)

	vis := hostif.NewRoaringVisibilityMap()
	vis.MarkDeleted(1)
	vis.MarkDeleted(2)

	cfg := config.Default().WithProbes(2)
	s := New(IVFFlatSearcher{Index: ix}, vector.Vector{0, 0}, 3, cfg, vis)
	results := drain(t, s)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.NotEqual(t, hostif.TupleID(1), r.ID)
		assert.NotEqual(t, hostif.TupleID(2), r.ID)
	}
}

func TestStreamOverHNSWGrowsWhenFiltered(t *testing.T) {
	h, err := hnsw.New(2, hnsw.WithM(8), hnsw.WithEFConstruction(32))
	require.NoError(t, err)

	ids, vecs := fixtureRows(30)
	for i := range ids {
		require.NoError(t, h.Insert(context.Background(), ids[i], vector.Vector(vecs[i]), nil))
	}

	vis := hostif.NewRoaringVisibilityMap()
	for i := hostif.TupleID(1); i <= 25; i++ {
		vis.MarkDeleted(i)
	}

	s := New(HNSWSearcher{Index: h}, vector.Vector{0, 0}, 3, config.Default(), vis)
	results := drain(t, s)

	assert.Len(t, results, 3)
	seen := map[hostif.TupleID]bool{}
	for _, r := range results {
		assert.False(t, seen[r.ID], "duplicate tuple id emitted across a regrow")
		seen[r.ID] = true
		assert.Greater(t, r.ID, hostif.TupleID(25))
	}
}

func TestStreamStopsAtIndexExhaustion(t *testing.T) {
	ids, vecs := fixtureRows(3)
	ix, err := ivfflat.Build(context.Background(), newSliceIterator(ids, vecs), 2, nil, nil, ivfflat.WithLists(1))
	require.NoError(t, err)

	vis := hostif.NewRoaringVisibilityMap()
	vis.MarkDeleted(1)
	vis.MarkDeleted(2)
	vis.MarkDeleted(3)

	s := New(IVFFlatSearcher{Index: ix}, vector.Vector{0, 0}, 5, config.Default().WithProbes(1), vis)
	results := drain(t, s)
	assert.Empty(t, results)
}

func TestStreamNoVisibilityMapEmitsEverything(t *testing.T) {
	ids, vecs := fixtureRows(5)
	ix, err := ivfflat.Build(context.Background(), newSliceIterator(ids, vecs), 2, nil, nil, ivfflat.WithLists(1))
	require.NoError(t, err)

	s := New(IVFFlatSearcher{Index: ix}, vector.Vector{0, 0}, 5, config.Default().WithProbes(1), nil)
	results := drain(t, s)
	assert.Len(t, results, 5)
}
