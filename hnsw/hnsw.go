// Package hnsw implements the hierarchical navigable small world graph
// index: a multi-layer proximity graph searched by greedy descent from a
// monotone entry point, with bounded per-layer neighbor lists chosen by
// a diversity-favoring heuristic.
//
// The element arena, findShortestPath/findEp descent, searchLayer beam
// search, and both neighbor-selection strategies generalize the usual
// shape from a fixed squared-L2 metric and raw uint32 ids to the tagged
// vector.Distance enum and external hostif.TupleID identifiers this
// core's data model requires.
package hnsw

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/vecindex/vecindex/config"
	"github.com/vecindex/vecindex/hostif"
	"github.com/vecindex/vecindex/obs"
	"github.com/vecindex/vecindex/queue"
	"github.com/vecindex/vecindex/vecerrors"
	"github.com/vecindex/vecindex/vector"
)

// element is one node of the graph: an external tuple-id, its vector,
// the layer it was drawn into, and a bounded neighbor list per layer
// 0..Level. Connections are arena positions (indices into HNSW.elements),
// not owning references — validity is by position plus the monotonic
// append-only arena.
type element struct {
	ID          hostif.TupleID
	Vector      vector.Vector
	Level       int
	Connections [][]uint32
}

// SearchResult is one ranked hit, ascending by Distance.
type SearchResult struct {
	ID       hostif.TupleID
	Distance float32
}

// Options configures a new HNSW index.
type Options struct {
	// M is the target neighbor count per node per layer, Mmax0 = 2M at
	// layer 0. Range [2, 100].
	M int

	// EFConstruction is the beam width used while inserting. Range
	// [4, 1000], and must be >= 2*M.
	EFConstruction int

	// Heuristic selects the diversity-favoring neighbor-selection
	// heuristic when true, or naive top-M truncation when false. Kept
	// as a toggle for comparing graph quality in tests; defaults to
	// true, which is what production builds should use.
	Heuristic bool

	// Distance is the tagged distance kind this index ranks by.
	Distance vector.Distance

	// Deterministic seeds each element's level draw from its tuple id
	// rather than a shared per-index RNG, for reproducible tests.
	Deterministic bool

	// Seed initializes the per-index RNG when Deterministic is false.
	Seed int64

	// MaintenanceMemory bounds the in-memory build arena; when the
	// running estimate exceeds it, a single NOTICE is logged and the
	// build continues rather than failing — the arena is an optional
	// working structure, not something worth aborting a build over.
	// Nil means unbounded.
	MaintenanceMemory hostif.MaintenanceMemory

	Logger  *obs.Logger
	Metrics obs.MetricsCollector
}

var DefaultOptions = Options{
	M:              16,
	EFConstruction: 64,
	Heuristic:      true,
	Distance:       vector.L2,
	Seed:           1,
}

type Option func(*Options)

func WithM(m int) Option               { return func(o *Options) { o.M = m } }
func WithEFConstruction(ef int) Option  { return func(o *Options) { o.EFConstruction = ef } }
func WithHeuristic(enabled bool) Option { return func(o *Options) { o.Heuristic = enabled } }
func WithDistance(d vector.Distance) Option {
	return func(o *Options) { o.Distance = d }
}
func WithDeterministic(det bool) Option { return func(o *Options) { o.Deterministic = det } }
func WithSeed(seed int64) Option        { return func(o *Options) { o.Seed = seed } }
func WithMaintenanceMemory(m hostif.MaintenanceMemory) Option {
	return func(o *Options) { o.MaintenanceMemory = m }
}
func WithLogger(l *obs.Logger) Option           { return func(o *Options) { o.Logger = l } }
func WithMetrics(m obs.MetricsCollector) Option { return func(o *Options) { o.Metrics = m } }

func (o *Options) validate() error {
	if o.M < 2 || o.M > 100 {
		return vecerrors.NewBadInput("hnsw: m must be in [2, 100]")
	}
	if o.EFConstruction < 4 || o.EFConstruction > 1000 {
		return vecerrors.NewBadInput("hnsw: ef_construction must be in [4, 1000]")
	}
	if o.EFConstruction < 2*o.M {
		return vecerrors.NewBadInput("hnsw: ef_construction must be >= 2*m")
	}
	if !o.Distance.SupportsIndex() {
		return vecerrors.NewUnsupported("hnsw: " + o.Distance.String() + " has no index support")
	}
	return nil
}

// HNSW is a hierarchical navigable small world graph index.
type HNSW struct {
	dimension int
	mmax      int
	mmax0     int
	ml        float64

	entryRef   uint32
	entryLevel int

	elements []*element

	opts Options
	rng  *rand.Rand

	arenaBudget     int64
	arenaBytesUsed  int64
	arenaOverflowed bool

	logger  *obs.Logger
	metrics obs.MetricsCollector

	// mu is an RWMutex rather than a plain Mutex so that once a graph is
	// built, concurrent Search/BruteSearch/Len calls run in parallel
	// against each other (the graph is read-mostly after build) while
	// inserts still take the graph exclusively. It does not go as far as
	// per-neighbor-list locking: two inserts into disjoint regions of the
	// graph still serialize against each other under this lock.
	mu sync.RWMutex
}

// New creates an empty HNSW index over vectors of the given dimension.
func New(dimension int, optFns ...Option) (*HNSW, error) {
	if dimension <= 0 {
		return nil, vecerrors.NewBadInput("hnsw: dimension must be positive")
	}
	if dimension > vector.MaxIndexedDimension {
		return nil, vecerrors.NewUnsupported(fmt.Sprintf("hnsw: dimension %d exceeds indexed-search maximum %d", dimension, vector.MaxIndexedDimension))
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = obs.NoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = obs.NoopMetricsCollector{}
	}

	budget := int64(0)
	if opts.MaintenanceMemory != nil {
		budget = opts.MaintenanceMemory.BudgetBytes()
	}

	return &HNSW{
		dimension:   dimension,
		mmax:        opts.M,
		mmax0:       2 * opts.M,
		ml:          1 / math.Log(float64(opts.M)),
		entryLevel:  -1,
		opts:        opts,
		rng:         rand.New(rand.NewSource(opts.Seed)),
		arenaBudget: budget,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}, nil
}

func (h *HNSW) kernel(a, b vector.Vector) float32 {
	kf := h.opts.Distance.Kernel()
	d, _ := kf(a, b) // dimensions are guaranteed equal by validation on insert/search
	return d
}

func (h *HNSW) levelFor(id hostif.TupleID) int {
	u := h.rng.Float64()
	if h.opts.Deterministic {
		r := rand.New(rand.NewSource(int64(id)))
		u = r.Float64()
	}
	// Avoid log(0): Float64 is in [0,1) so u can be exactly 0.
	if u == 0 {
		u = 1e-300
	}
	return int(math.Floor(-math.Log(u) * h.ml))
}

func (h *HNSW) estimateElementBytes(level int) int64 {
	// Vector storage plus one uint32 per neighbor slot across levels
	// 0..level, a deliberately coarse estimate — good enough to decide
	// when to warn, not to size an allocator precisely.
	conns := int64(h.mmax0)
	if level > 0 {
		conns += int64(level) * int64(h.mmax)
	}
	return int64(h.dimension)*4 + conns*4
}

func (h *HNSW) chargeArena(ctx context.Context, bytes int64) {
	if h.arenaBudget <= 0 {
		return
	}
	h.arenaBytesUsed += bytes
	if !h.arenaOverflowed && h.arenaBytesUsed > h.arenaBudget {
		h.arenaOverflowed = true
		h.logger.Notice(ctx, "hnsw build arena exceeded maintenance memory budget",
			"tuple_count", len(h.elements), "bytes_used", h.arenaBytesUsed, "budget", h.arenaBudget)
	}
}

// Build constructs an HNSW index from a full table scan, reporting
// "initializing" then "loading tuples" progress. Construction here is single-
// threaded element-at-a-time insertion; a host that wants a parallel
// build coordinates per-neighbor-list locks and the entry-pointer latch
// itself — this core's build path does not spawn workers for that.
func Build(ctx context.Context, newIterator func() (hostif.TupleIterator, error), dim int, interrupt hostif.Interrupt, progress hostif.ProgressReporter, optFns ...Option) (*HNSW, error) {
	h, err := New(dim, optFns...)
	if err != nil {
		return nil, err
	}
	if interrupt == nil {
		interrupt = hostif.Never
	}
	if progress == nil {
		progress = hostif.NoopProgress
	}

	progress.Report(hostif.ProgressPhase("initializing"), 0, 0)

	it, err := newIterator()
	if err != nil {
		return nil, err
	}

	var n int64
	checkEvery := int64(1024)
	for it.Next(ctx) {
		if n%checkEvery == 0 && interrupt.Requested() {
			return nil, vecerrors.NewInterrupted()
		}
		id, raw := it.Tuple()
		if err := h.insert(ctx, id, vector.Vector(raw), interrupt); err != nil {
			return nil, err
		}
		n++
		if n%checkEvery == 0 {
			progress.Report(hostif.ProgressPhase("loading tuples"), n, n)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	progress.Report(hostif.ProgressPhase("loading tuples"), n, n)
	h.metrics.RecordBuild(n, 0, nil)

	return h, nil
}

// Insert adds v under tuple id to the graph.
func (h *HNSW) Insert(ctx context.Context, id hostif.TupleID, v vector.Vector, interrupt hostif.Interrupt) error {
	start := time.Now()
	err := h.insert(ctx, id, v, interrupt)
	h.metrics.RecordInsert(time.Since(start), err)
	return err
}

func (h *HNSW) insert(ctx context.Context, id hostif.TupleID, v vector.Vector, interrupt hostif.Interrupt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.ValidateDims(h.dimension); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if interrupt == nil {
		interrupt = hostif.Never
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	level := h.levelFor(id)
	el := &element{ID: id, Vector: v.Clone(), Level: level, Connections: make([][]uint32, level+1)}

	if len(h.elements) == 0 {
		h.elements = append(h.elements, el)
		h.entryRef = 0
		h.entryLevel = level
		h.chargeArena(ctx, h.estimateElementBytes(level))
		return nil
	}

	entryRef, entryDist := h.findShortestPath(el.Vector, level)

	newRef := uint32(len(h.elements))

	for lvl := min(level, h.entryLevel); lvl >= 0; lvl-- {
		if interrupt.Requested() {
			return vecerrors.NewInterrupted()
		}

		candidates, err := h.searchLayer(el.Vector, entryRef, entryDist, h.opts.EFConstruction, lvl)
		if err != nil {
			return err
		}

		if h.opts.Heuristic {
			h.selectNeighboursHeuristic(candidates, h.mmax)
		} else {
			selectNeighboursSimple(candidates, h.mmax)
		}

		conns := make([]uint32, candidates.Len())
		for i := candidates.Len() - 1; i >= 0; i-- {
			item := heap.Pop(candidates).(*queue.PriorityQueueItem)
			conns[i] = uint32(item.ID)
		}
		el.Connections[lvl] = conns

		if len(conns) > 0 {
			entryRef = conns[0]
			entryDist = h.kernel(el.Vector, h.elements[entryRef].Vector)
		}
	}

	h.elements = append(h.elements, el)

	for lvl := min(level, h.entryLevel); lvl >= 0; lvl-- {
		for _, neighborRef := range el.Connections[lvl] {
			h.link(neighborRef, newRef, lvl)
		}
	}

	if level > h.entryLevel {
		h.entryRef = newRef
		h.entryLevel = level
	}

	h.chargeArena(ctx, h.estimateElementBytes(level))
	return nil
}

// findShortestPath descends greedily from the current entry point down
// to layer+1, returning the closest element found as the starting point
// for the insertion layers.
func (h *HNSW) findShortestPath(q vector.Vector, level int) (uint32, float32) {
	currRef := h.entryRef
	currDist := h.kernel(h.elements[currRef].Vector, q)

	for lvl := h.entryLevel; lvl > level; lvl-- {
		changed := true
		for changed {
			changed = false
			curr := h.elements[currRef]
			if lvl >= len(curr.Connections) {
				continue
			}
			for _, ref := range curr.Connections[lvl] {
				d := h.kernel(h.elements[ref].Vector, q)
				if d < currDist {
					currRef, currDist = ref, d
					changed = true
				}
			}
		}
	}
	return currRef, currDist
}

// findEp is findShortestPath's query-time counterpart: descend from the
// entry to layer 1 with ef=1.
func (h *HNSW) findEp(q vector.Vector) (uint32, float32) {
	currRef := h.entryRef
	currDist := h.kernel(q, h.elements[currRef].Vector)

	for lvl := h.entryLevel; lvl > 0; lvl-- {
		changed := true
		for changed {
			changed = false
			curr := h.elements[currRef]
			if lvl >= len(curr.Connections) {
				continue
			}
			for _, ref := range curr.Connections[lvl] {
				d := h.kernel(q, h.elements[ref].Vector)
				if d < currDist {
					currRef, currDist = ref, d
					changed = true
				}
			}
		}
	}
	return currRef, currDist
}

// link adds a back-edge from `from` to `to` at level, re-running
// neighbor selection to prune from's neighbor list back down to its
// capacity whenever the new edge pushes it over.
func (h *HNSW) link(from, to uint32, level int) {
	maxConns := h.mmax
	if level == 0 {
		maxConns = h.mmax0
	}

	node := h.elements[from]
	node.Connections[level] = append(node.Connections[level], to)

	if len(node.Connections[level]) <= maxConns {
		return
	}

	candidates := queue.NewMax()
	for _, ref := range node.Connections[level] {
		d := h.kernel(node.Vector, h.elements[ref].Vector)
		heap.Push(candidates, &queue.PriorityQueueItem{ID: uint64(ref), Distance: d})
	}

	if h.opts.Heuristic {
		h.selectNeighboursHeuristic(candidates, maxConns)
	} else {
		selectNeighboursSimple(candidates, maxConns)
	}

	node.Connections[level] = make([]uint32, candidates.Len())
	for i := candidates.Len() - 1; i >= 0; i-- {
		item := heap.Pop(candidates).(*queue.PriorityQueueItem)
		node.Connections[level][i] = uint32(item.ID)
	}
}

// searchLayer runs the beam search: a min-heap of candidates still to
// expand and a max-heap of the current best results, both seeded from
// entryRef. Returns the max-heap, ascending-drainable via heap.Pop from
// the back.
func (h *HNSW) searchLayer(q vector.Vector, entryRef uint32, entryDist float32, ef int, level int) (*queue.PriorityQueue, error) {
	visited := bitset.New(uint(len(h.elements)))
	visited.Set(uint(entryRef))

	entryItem := &queue.PriorityQueueItem{ID: uint64(entryRef), Distance: entryDist}

	candidates := queue.NewMin()
	heap.Push(candidates, entryItem)

	results := queue.NewMax()
	heap.Push(results, &queue.PriorityQueueItem{ID: uint64(entryRef), Distance: entryDist})

	for candidates.Len() > 0 {
		lowerBound := results.Top().Distance
		candidate := heap.Pop(candidates).(*queue.PriorityQueueItem)
		if candidate.Distance > lowerBound && results.Len() >= ef {
			break
		}

		curr := h.elements[candidate.ID]
		if level >= len(curr.Connections) {
			continue
		}

		for _, ref := range curr.Connections[level] {
			if visited.Test(uint(ref)) {
				continue
			}
			visited.Set(uint(ref))

			d := h.kernel(q, h.elements[ref].Vector)
			top := results.Top()

			if results.Len() < ef || (top != nil && d < top.Distance) {
				item := &queue.PriorityQueueItem{ID: uint64(ref), Distance: d}
				heap.Push(results, item)
				heap.Push(candidates, &queue.PriorityQueueItem{ID: uint64(ref), Distance: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	return results, nil
}

// selectNeighboursSimple keeps only the M nearest from topCandidates,
// discarding the rest. This is the naive fallback used when
// Options.Heuristic is false.
func selectNeighboursSimple(topCandidates *queue.PriorityQueue, m int) {
	for topCandidates.Len() > m {
		heap.Pop(topCandidates)
	}
}

// selectNeighboursHeuristic applies diversity-favoring selection: a
// candidate c is first accepted only if it is closer to the inserted
// element than to every neighbor already kept, which spreads edges across
// the neighborhood instead of clustering them near one hub. If fewer than
// m candidates pass that test, the remaining slots are filled with the
// nearest rejected candidates.
func (h *HNSW) selectNeighboursHeuristic(topCandidates *queue.PriorityQueue, m int) {
	if topCandidates.Len() <= m {
		return
	}

	// topCandidates is a max-heap: draining it yields descending order,
	// so the farthest candidate is considered last once reversed below.
	descending := make([]*queue.PriorityQueueItem, 0, topCandidates.Len())
	for topCandidates.Len() > 0 {
		descending = append(descending, heap.Pop(topCandidates).(*queue.PriorityQueueItem))
	}

	ascending := queue.NewMin()
	for i := len(descending) - 1; i >= 0; i-- {
		heap.Push(ascending, descending[i])
	}

	kept := make([]*queue.PriorityQueueItem, 0, m)
	deferred := queue.NewMin()

	for ascending.Len() > 0 && len(kept) < m {
		item := heap.Pop(ascending).(*queue.PriorityQueueItem)
		diverse := true
		for _, r := range kept {
			d := h.kernel(h.elements[item.ID].Vector, h.elements[r.ID].Vector)
			if d < item.Distance {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, item)
		} else {
			heap.Push(deferred, item)
		}
	}
	for len(kept) < m && deferred.Len() > 0 {
		kept = append(kept, heap.Pop(deferred).(*queue.PriorityQueueItem))
	}

	for _, item := range kept {
		heap.Push(topCandidates, item)
	}
}

// Search returns up to k results ascending by distance.
func (h *HNSW) Search(ctx context.Context, q vector.Vector, k int, cfg config.QueryConfig) ([]SearchResult, error) {
	start := time.Now()
	res, err := h.search(ctx, q, k, cfg)
	h.metrics.RecordSearch(k, time.Since(start), err)
	return res, err
}

func (h *HNSW) search(ctx context.Context, q vector.Vector, k int, cfg config.QueryConfig) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, vecerrors.NewBadInput("hnsw: k must be positive")
	}
	if err := q.ValidateDims(h.dimension); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.elements) == 0 {
		return nil, nil
	}

	cfg = cfg.ClampEFSearch()
	ef := cfg.EFSearch
	if k > ef {
		ef = k
	}

	entryRef, _ := h.findEp(q)
	results, err := h.searchLayer(q, entryRef, h.kernel(q, h.elements[entryRef].Vector), ef, 0)
	if err != nil {
		return nil, err
	}

	for results.Len() > k {
		heap.Pop(results)
	}

	out := make([]SearchResult, results.Len())
	for i := results.Len() - 1; i >= 0; i-- {
		item := heap.Pop(results).(*queue.PriorityQueueItem)
		out[i] = SearchResult{ID: h.elements[item.ID].ID, Distance: item.Distance}
	}
	return out, nil
}

// BruteSearch scans every element linearly, bypassing the graph. Used
// for exactness-regression tests against the approximate Search path.
func (h *HNSW) BruteSearch(ctx context.Context, q vector.Vector, k int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.ValidateDims(h.dimension); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	bounded := queue.NewBounded(k)
	for i, el := range h.elements {
		d := h.kernel(q, el.Vector)
		bounded.Offer(uint64(i), d)
	}
	items := bounded.Drain()
	out := make([]SearchResult, len(items))
	for i, it := range items {
		out[i] = SearchResult{ID: h.elements[it.ID].ID, Distance: it.Distance}
	}
	return out, nil
}

// Dimension returns the index's fixed vector width.
func (h *HNSW) Dimension() int { return h.dimension }

// Distance returns the index's configured distance kernel.
func (h *HNSW) Distance() vector.Distance { return h.opts.Distance }

// Len returns the number of elements in the graph.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.elements)
}
