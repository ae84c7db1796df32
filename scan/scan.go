// Package scan implements the thin glue an index-access-method scan
// node needs: translate "nearest k to q under distance d" into calls
// against an ivfflat.Index or hnsw.HNSW, filter the raw ranked stream
// through the host's visibility map, and grow the underlying candidate
// request transparently when too many candidates turn out invisible.
// The index guarantees only that a returned tuple-id was at some point
// inserted with the vector used for distance computation — it says
// nothing about whether that row is still live.
//
// Neither ANN index understands MVCC visibility or row re-validation —
// those stay host-side by design — so this package is the only place
// in the module where a VisibilityMap is consulted.
package scan

import (
	"context"

	"github.com/vecindex/vecindex/config"
	"github.com/vecindex/vecindex/hnsw"
	"github.com/vecindex/vecindex/hostif"
	"github.com/vecindex/vecindex/ivfflat"
	"github.com/vecindex/vecindex/vector"
)

// Result is one ranked, visibility-checked hit.
type Result struct {
	ID       hostif.TupleID
	Distance float32
}

// Searcher is the common shape both index engines expose, reduced to
// what a scan needs. ivfflat.Index and hnsw.HNSW each satisfy this
// through the adapters below; scan itself never branches on index kind.
type Searcher interface {
	Search(ctx context.Context, q vector.Vector, k int, cfg config.QueryConfig) ([]Result, error)
	Dimension() int
}

// IVFFlatSearcher adapts *ivfflat.Index to Searcher.
type IVFFlatSearcher struct{ Index *ivfflat.Index }

func (s IVFFlatSearcher) Dimension() int { return s.Index.Dimension() }

func (s IVFFlatSearcher) Search(ctx context.Context, q vector.Vector, k int, cfg config.QueryConfig) ([]Result, error) {
	cfg = cfg.ClampProbes(s.Index.Lists())
	raw, err := s.Index.Search(ctx, q, k, cfg)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(raw))
	for i, r := range raw {
		out[i] = Result{ID: r.ID, Distance: r.Distance}
	}
	return out, nil
}

// HNSWSearcher adapts *hnsw.HNSW to Searcher.
type HNSWSearcher struct{ Index *hnsw.HNSW }

func (s HNSWSearcher) Dimension() int { return s.Index.Dimension() }

func (s HNSWSearcher) Search(ctx context.Context, q vector.Vector, k int, cfg config.QueryConfig) ([]Result, error) {
	raw, err := s.Index.Search(ctx, q, k, cfg)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(raw))
	for i, r := range raw {
		out[i] = Result{ID: r.ID, Distance: r.Distance}
	}
	return out, nil
}

// growthFactor and maxFetch bound how aggressively Stream widens its
// underlying request when the visibility map is filtering out a large
// fraction of candidates, so one pathologically dead-heavy region of
// the index can't turn a bounded scan into an unbounded one.
const (
	growthFactor = 4
	maxFetch     = 1 << 20
)

// Stream is a lazy, distance-ordered tuple-id cursor over one Searcher.
// It satisfies hostif.TupleIterator's Next/Err shape but returns
// (TupleID, distance) pairs instead of (TupleID, vector) — the scan
// layer's output contract is ranked ids, not raw vectors.
type Stream struct {
	searcher Searcher
	vis      hostif.VisibilityMap
	q        vector.Vector
	cfg      config.QueryConfig
	limit    int

	fetchK    int
	buffer    []Result
	pos       int
	emitted   int
	exhausted bool
	cur       Result
	err       error
	seen      map[hostif.TupleID]bool
}

// New starts a scan for the k nearest tuples to q, ranked under the
// Searcher's configured distance, skipping any tuple vis reports as not
// visible. A nil vis treats every candidate as visible.
func New(searcher Searcher, q vector.Vector, k int, cfg config.QueryConfig, vis hostif.VisibilityMap) *Stream {
	if vis == nil {
		vis = alwaysVisible{}
	}
	return &Stream{
		searcher: searcher,
		vis:      vis,
		q:        q,
		cfg:      cfg,
		limit:    k,
		fetchK:   k,
		seen:     make(map[hostif.TupleID]bool, k),
	}
}

// Next advances the cursor, fetching and filtering more candidates from
// the underlying index as needed. Returns false once limit results have
// been emitted, the index is exhausted, or an error occurred (check Err).
func (s *Stream) Next(ctx context.Context) bool {
	if s.err != nil || s.emitted >= s.limit {
		return false
	}

	for {
		if s.pos < len(s.buffer) {
			r := s.buffer[s.pos]
			s.pos++
			if !s.seen[r.ID] && s.vis.Visible(r.ID) {
				s.seen[r.ID] = true
				s.cur = r
				s.emitted++
				return true
			}
			continue
		}

		if s.exhausted {
			return false
		}

		raw, err := s.searcher.Search(ctx, s.q, s.fetchK, s.cfg)
		if err != nil {
			s.err = err
			return false
		}

		s.buffer = raw
		s.pos = 0

		if len(raw) < s.fetchK || s.fetchK >= maxFetch {
			s.exhausted = true
		} else {
			s.fetchK *= growthFactor
			if s.fetchK > maxFetch {
				s.fetchK = maxFetch
			}
		}

		if len(raw) == 0 {
			return false
		}
	}
}

// Result returns the current (tuple-id, distance) pair. Valid only
// after a call to Next that returned true.
func (s *Stream) Result() Result { return s.cur }

// Err reports the first error Next encountered, if any.
func (s *Stream) Err() error { return s.err }

type alwaysVisible struct{}

func (alwaysVisible) Visible(hostif.TupleID) bool { return true }
