// Package ivfflat implements the inverted-file flat index: k-means++
// trained centroids partitioning the vector space into lists, each an
// append-only sequence of (tuple-id, vector) entries, searched by
// scanning only the lists nearest the query.
//
// Built on a copy-on-write state pattern for lock-free reads during
// concurrent writes, generalized from a single exhaustive list to many
// centroid-partitioned ones.
package ivfflat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vecindex/vecindex/config"
	"github.com/vecindex/vecindex/hostif"
	"github.com/vecindex/vecindex/internal/kmeans32"
	"github.com/vecindex/vecindex/obs"
	"github.com/vecindex/vecindex/queue"
	"github.com/vecindex/vecindex/vecerrors"
	"github.com/vecindex/vecindex/vector"
)

// Entry is one (tuple-id, vector) pair stored in an inverted list.
type Entry struct {
	ID     hostif.TupleID
	Vector vector.Vector
}

// SearchResult is one ranked hit returned from Search, ascending by
// Distance under the index's configured kernel.
type SearchResult struct {
	ID       hostif.TupleID
	Distance float32
}

// Options configures a new or rebuilt Index.
type Options struct {
	// Dimension is the fixed vector width for every entry. Required.
	Dimension int

	// Distance selects the kernel used for centroid training, insert
	// routing, and search ranking. L1 is rejected with Unsupported
	// since it has no index support.
	Distance vector.Distance

	// Lists is the number of centroids the vector space is partitioned
	// into, in [1, 32768].
	Lists int

	Logger  *obs.Logger
	Metrics obs.MetricsCollector
}

// Option mutates Options during construction.
type Option func(*Options)

// DefaultOptions is a conservative default list count; callers building
// at scale should set Lists near rows/1000.
var DefaultOptions = Options{
	Distance: vector.L2,
	Lists:    100,
}

func WithDistance(d vector.Distance) Option { return func(o *Options) { o.Distance = d } }
func WithLists(n int) Option                { return func(o *Options) { o.Lists = n } }
func WithLogger(l *obs.Logger) Option        { return func(o *Options) { o.Logger = l } }
func WithMetrics(m obs.MetricsCollector) Option {
	return func(o *Options) { o.Metrics = m }
}

func (o *Options) validate() error {
	if o.Dimension <= 0 {
		return vecerrors.NewBadInput("ivfflat: dimension must be positive")
	}
	if o.Dimension > vector.MaxIndexedDimension {
		return vecerrors.NewUnsupported(fmt.Sprintf("ivfflat: dimension %d exceeds indexed-search maximum %d", o.Dimension, vector.MaxIndexedDimension))
	}
	if !o.Distance.SupportsIndex() {
		return vecerrors.NewUnsupported("ivfflat: " + o.Distance.String() + " has no index support")
	}
	if o.Lists < 1 || o.Lists > 32768 {
		return vecerrors.NewBadInput("ivfflat: lists must be in [1, 32768]")
	}
	return nil
}

// ivfList is one inverted list: a mutex-guarded, copy-on-write entry
// slice so Search can take a lock-free snapshot while Insert appends.
// Write serialization happens at list granularity, not over the whole
// index, so concurrent inserts into different lists never contend.
type ivfList struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]Entry]
}

func (l *ivfList) snapshot() []Entry {
	if p := l.entries.Load(); p != nil {
		return *p
	}
	return nil
}

func (l *ivfList) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.snapshot()
	next := make([]Entry, len(old)+1)
	copy(next, old)
	next[len(old)] = e
	l.entries.Store(&next)
}

func (l *ivfList) appendBatch(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.snapshot()
	next := make([]Entry, len(old)+len(entries))
	copy(next, old)
	copy(next[len(old):], entries)
	l.entries.Store(&next)
}

// Index is a built IVFFlat index: a frozen centroid table plus L
// inverted lists. Centroids never change after Build; only list
// contents grow via Insert.
type Index struct {
	opts    Options
	model   *kmeans32.Model
	lists   []*ivfList
	logger  *obs.Logger
	metrics obs.MetricsCollector
}

func resolveOptions(dim int, optFns ...Option) Options {
	opts := DefaultOptions
	opts.Dimension = dim
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = obs.NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = obs.NoopMetricsCollector{}
	}
	return opts
}

// Build trains centroids and populates lists from two passes over the
// rows newIterator produces: one to sample and train, one to assign
// every row to its nearest list. newIterator must return a fresh
// iterator over the same underlying rows each call — the host's
// table-scan operator is expected to support repeated invocation for a
// bulk index build.
func Build(ctx context.Context, newIterator func() (hostif.TupleIterator, error), dim int, interrupt hostif.Interrupt, progress hostif.ProgressReporter, optFns ...Option) (*Index, error) {
	opts := resolveOptions(dim, optFns...)
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if interrupt == nil {
		interrupt = hostif.Never
	}
	if progress == nil {
		progress = hostif.NoopProgress
	}

	progress.Report("initializing", 0, 0)

	sampleCap := 50 * opts.Lists

	it, err := newIterator()
	if err != nil {
		return nil, err
	}
	sample, sampleN, err := reservoirSample(ctx, it, dim, sampleCap, interrupt)
	if err != nil {
		return nil, err
	}

	var model *kmeans32.Model
	if sampleN == 0 {
		// Empty table: seed L placeholder (zero-vector) centroids rather
		// than leaving the model untrained, so the index still reports L
		// lists and routes inserts normally. A rebuild once the table has
		// rows will replace these with trained centroids.
		model = &kmeans32.Model{Centroids: make([]float32, opts.Lists*dim), Dim: dim, Kernel: opts.Distance, K: opts.Lists}
	} else {
		model, err = kmeans32.Train(ctx, sample, sampleN, dim, opts.Lists, opts.Distance, kmeans32.DefaultTrainOptions(), interrupt, progress)
		if err != nil {
			return nil, err
		}
	}

	lists := make([]*ivfList, opts.Lists)
	for i := range lists {
		lists[i] = &ivfList{}
	}

	ix := &Index{opts: opts, model: model, lists: lists, logger: opts.Logger, metrics: opts.Metrics}

	if sampleN == 0 {
		// Empty table: no rows to assign yet, but the index already has
		// its L lists and centroids ready for subsequent inserts.
		return ix, nil
	}

	assignIt, err := newIterator()
	if err != nil {
		return nil, err
	}
	if err := ix.assignAll(ctx, assignIt, interrupt, progress); err != nil {
		return nil, err
	}

	ix.reportEmptyLists(ctx)

	return ix, nil
}

func reservoirSample(ctx context.Context, it hostif.TupleIterator, dim, capN int, interrupt hostif.Interrupt) ([]float32, int, error) {
	sample := make([]float32, 0, capN*dim)
	count := 0
	checkEvery := 4096
	for it.Next(ctx) {
		if count%checkEvery == 0 && interrupt.Requested() {
			return nil, 0, vecerrors.NewInterrupted()
		}
		_, v := it.Tuple()
		if len(v) != dim {
			return nil, 0, vecerrors.NewDimensionMismatch(dim, len(v))
		}
		if count < capN {
			sample = append(sample, v...)
		} else {
			j := fastRandIntn(count + 1)
			if j < capN {
				copy(sample[j*dim:(j+1)*dim], v)
			}
		}
		count++
	}
	if err := it.Err(); err != nil {
		return nil, 0, err
	}
	n := count
	if n > capN {
		n = capN
	}
	return sample, n, nil
}

func (ix *Index) assignAll(ctx context.Context, it hostif.TupleIterator, interrupt hostif.Interrupt, progress hostif.ProgressReporter) error {
	type workItem struct {
		id  hostif.TupleID
		vec vector.Vector
	}

	workers := 4
	batches := make([]chan workItem, workers)
	for i := range batches {
		batches[i] = make(chan workItem, 256)
	}

	var wg sync.WaitGroup
	var firstErr atomic.Pointer[error]
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(ch <-chan workItem) {
			defer wg.Done()
			buffers := make(map[int][]Entry)
			for item := range ch {
				li := ix.model.AssignPartition(item.vec)
				buffers[li] = append(buffers[li], Entry{ID: item.id, Vector: item.vec})
			}
			for li, entries := range buffers {
				ix.lists[li].appendBatch(entries)
			}
		}(batches[w])
	}

	var done, total int64
	checkEvery := int64(4096)
	for it.Next(ctx) {
		if done%checkEvery == 0 && interrupt.Requested() {
			for _, ch := range batches {
				close(ch)
			}
			wg.Wait()
			return vecerrors.NewInterrupted()
		}
		id, v := it.Tuple()
		if len(v) != ix.opts.Dimension {
			err := vecerrors.NewDimensionMismatch(ix.opts.Dimension, len(v))
			firstErr.Store(&err)
			continue
		}
		cv := vector.Vector(append([]float32(nil), v...))
		batches[int(id)%workers] <- workItem{id: id, vec: cv}
		done++
		total++
		if done%int64(checkEvery) == 0 {
			progress.Report("assigning tuples", done, total)
		}
	}
	for _, ch := range batches {
		close(ch)
	}
	wg.Wait()

	if err := it.Err(); err != nil {
		return err
	}
	if p := firstErr.Load(); p != nil {
		return *p
	}
	progress.Report("assigning tuples", done, done)
	return nil
}

func (ix *Index) reportEmptyLists(ctx context.Context) {
	empty := 0
	for _, l := range ix.lists {
		if len(l.snapshot()) == 0 {
			empty++
		}
	}
	if empty > 0 {
		ix.logger.Notice(ctx, "ivfflat build finished with empty lists", "empty_lists", empty, "total_lists", len(ix.lists))
	}
}

// Insert routes v to its nearest centroid's list. v must have the
// index's configured dimension and all-finite elements.
func (ix *Index) Insert(ctx context.Context, id hostif.TupleID, v vector.Vector) error {
	start := time.Now()
	err := ix.insert(ctx, id, v)
	ix.metrics.RecordInsert(time.Since(start), err)
	return err
}

func (ix *Index) insert(ctx context.Context, id hostif.TupleID, v vector.Vector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.ValidateDims(ix.opts.Dimension); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	li := ix.model.AssignPartition(v)
	ix.lists[li].append(Entry{ID: id, Vector: v.Clone()})
	return nil
}

// Search returns up to k results ordered by ascending distance under
// the index's kernel, scanning only the cfg.Probes nearest lists.
// Probes is clamped to [1, L].
func (ix *Index) Search(ctx context.Context, q vector.Vector, k int, cfg config.QueryConfig) ([]SearchResult, error) {
	start := time.Now()
	res, err := ix.search(ctx, q, k, cfg)
	ix.metrics.RecordSearch(k, time.Since(start), err)
	return res, err
}

func (ix *Index) search(ctx context.Context, q vector.Vector, k int, cfg config.QueryConfig) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, vecerrors.NewBadInput("ivfflat: k must be positive")
	}
	if err := q.ValidateDims(ix.opts.Dimension); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cfg = cfg.ClampProbes(ix.model.K)
	centroidIDs := ix.model.ClosestCentroids(q, cfg.Probes)

	kernel := ix.opts.Distance.Kernel()
	bounded := queue.NewBounded(k)

	for _, li := range centroidIDs {
		entries := ix.lists[li].snapshot()
		for _, e := range entries {
			d, err := kernel(q, e.Vector)
			if err != nil {
				return nil, err
			}
			bounded.Offer(uint64(e.ID), d)
		}
	}

	items := bounded.Drain()
	results := make([]SearchResult, len(items))
	for i, it := range items {
		results[i] = SearchResult{ID: hostif.TupleID(it.ID), Distance: it.Distance}
	}
	return results, nil
}

// Lists returns the configured number of centroids (L).
func (ix *Index) Lists() int { return len(ix.lists) }

// Dimension returns the index's fixed vector width.
func (ix *Index) Dimension() int { return ix.opts.Dimension }

// Distance returns the index's configured distance kernel.
func (ix *Index) Distance() vector.Distance { return ix.opts.Distance }

// Stats summarizes list population, useful after repeated
// inserts/deletes to judge whether a REINDEX would rebalance skewed
// lists — training only runs once, at Build, so a list's assignment
// never rebalances on its own as the data distribution drifts.
type Stats struct {
	Lists      int
	TotalItems int
	MinList    int
	MaxList    int
	EmptyLists int
}

func (ix *Index) Stats() Stats {
	st := Stats{Lists: len(ix.lists)}
	if len(ix.lists) == 0 {
		return st
	}
	st.MinList = -1
	for _, l := range ix.lists {
		n := len(l.snapshot())
		st.TotalItems += n
		if n == 0 {
			st.EmptyLists++
		}
		if st.MinList == -1 || n < st.MinList {
			st.MinList = n
		}
		if n > st.MaxList {
			st.MaxList = n
		}
	}
	return st
}

// fastRandIntn is a process-local, non-cryptographic generator used only
// for reservoir sampling index choice; a dedicated *rand.Rand per Build
// call would also work but this keeps Build's signature free of a
// caller-supplied RNG for the common case.
var randState atomic.Uint64

func fastRandIntn(n int) int {
	if n <= 0 {
		return 0
	}
	for {
		old := randState.Load()
		next := old*6364136223846793005 + 1442695040888963407
		if randState.CompareAndSwap(old, next) {
			return int((next >> 33) % uint64(n))
		}
	}
}
