// Package kmeans32 trains and queries flat centroid tables for ivfflat.
// The Lloyd-iteration trainer replaces naive random centroid seeding with
// k-means++, so training starts from better-spread centroids than a
// uniform random pick. The assignment step compares every point with
// every centroid; it keeps no triangle-inequality bounds.
package kmeans32

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/vecindex/vecindex/hostif"
	"github.com/vecindex/vecindex/vecerrors"
	"github.com/vecindex/vecindex/vector"
)

// Model is a trained flat centroid table: k centroids of dimension dim,
// stored contiguously (centroid i occupies Centroids[i*dim:(i+1)*dim]).
type Model struct {
	Centroids []float32
	K         int
	Dim       int
	Kernel    vector.Distance
}

// TrainOptions configures Train.
type TrainOptions struct {
	MaxIterations int
	// Tolerance stops iteration early once the fraction of points that
	// changed assignment in a round drops at or below this value.
	Tolerance float64
	Rand      *rand.Rand
}

// DefaultTrainOptions returns the options ivfflat's Build uses by default:
// at most 25 Lloyd iterations, stop once under 0.1% of points reassign.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{MaxIterations: 25, Tolerance: 0.001}
}

// Train clusters the n vectors of dimension dim packed contiguously in
// flat (flat[i*dim:(i+1)*dim] is vector i) into k centroids under kernel.
// Seeding uses k-means++: the first centroid is picked uniformly, each
// subsequent one with probability proportional to its squared distance
// to the nearest centroid already chosen, so initial centroids spread
// across the data rather than cluster together by chance.
func Train(ctx context.Context, flat []float32, n, dim, k int, kernel vector.Distance, opts TrainOptions, interrupt hostif.Interrupt, progress hostif.ProgressReporter) (*Model, error) {
	if n < k {
		k = n
	}
	if k == 0 {
		return &Model{Dim: dim, Kernel: kernel}, nil
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(1, 2))
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = DefaultTrainOptions().MaxIterations
	}
	kf := kernelFunc(kernel)

	centroids := seedPlusPlus(flat, n, dim, k, kf, opts.Rand)

	assignments := make([]int32, n)
	for i := range assignments {
		assignments[i] = -1
	}
	// centroidShift[j] is how far centroid j moved in the last update
	// step. The assignment loop uses it only to skip re-evaluating a
	// point's current centroid inside the loop when that centroid did
	// not move; every other centroid is always compared. No per-pair
	// triangle-inequality bounds (as in Elkan's method) are kept.
	centroidShift := make([]float32, k)
	for j := range centroidShift {
		centroidShift[j] = math.MaxFloat32
	}

	sums := make([]float32, k*dim)
	counts := make([]int32, k)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if interrupt != nil && interrupt.Requested() {
			return nil, vecerrors.NewInterrupted()
		}
		changed := 0
		for i := 0; i < n; i++ {
			vec := flat[i*dim : (i+1)*dim]
			cur := assignments[i]

			best := cur
			bestDist := float32(math.MaxFloat32)
			if cur >= 0 {
				bestDist = kf(vec, centroids[int(cur)*dim:(int(cur)+1)*dim])
			}
			for j := 0; j < k; j++ {
				if int32(j) == cur && centroidShift[j] == 0 {
					continue
				}
				center := centroids[j*dim : (j+1)*dim]
				d := kf(vec, center)
				if d < bestDist {
					bestDist = d
					best = int32(j)
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed++
			}
		}

		if progress != nil {
			progress.Report(hostif.ProgressPhase("performing k-means"), int64(iter+1), int64(opts.MaxIterations))
		}

		if n > 0 && float64(changed)/float64(n) <= opts.Tolerance && iter > 0 {
			break
		}

		for i := range sums {
			sums[i] = 0
		}
		for i := range counts {
			counts[i] = 0
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			if c < 0 {
				continue
			}
			vec := flat[i*dim : (i+1)*dim]
			base := int(c) * dim
			for d := 0; d < dim; d++ {
				sums[base+d] += vec[d]
			}
			counts[c]++
		}

		prevCentroids := append([]float32(nil), centroids...)
		usedPoints := make(map[int]bool)

		for j := 0; j < k; j++ {
			old := centroids[j*dim : (j+1)*dim]
			if counts[j] > 0 {
				scale := 1.0 / float32(counts[j])
				newRow := sums[j*dim : (j+1)*dim]
				for d := 0; d < dim; d++ {
					newRow[d] *= scale
				}
				if kernel == vector.Cosine {
					normalizeRow(newRow)
				}
				var shift float64
				for d := 0; d < dim; d++ {
					diff := float64(newRow[d] - old[d])
					shift += diff * diff
					old[d] = newRow[d]
				}
				centroidShift[j] = float32(math.Sqrt(shift))
			} else {
				// Empty cluster: reseed from the point currently
				// farthest from its nearest non-empty centroid, applied
				// during training rather than after. usedPoints keeps
				// two empty centroids reseeded in the same pass from
				// colliding on the same donor point.
				idx := farthestFromNearestNonEmpty(flat, n, dim, prevCentroids, assignments, counts, j, kf, usedPoints)
				usedPoints[idx] = true
				copy(old, flat[idx*dim:(idx+1)*dim])
				if kernel == vector.Cosine {
					normalizeRow(old)
				}
				centroidShift[j] = math.MaxFloat32
			}
		}
	}

	return &Model{Centroids: centroids, K: k, Dim: dim, Kernel: kernel}, nil
}

// kernelFunc adapts a vector.Distance's Kernel to plain float32 slices,
// used internally where dimensions are already known uniform and an
// error return would only ever be nil.
func kernelFunc(d vector.Distance) func(a, b []float32) float32 {
	k := d.Kernel()
	return func(a, b []float32) float32 {
		v, _ := k(vector.Vector(a), vector.Vector(b))
		return v
	}
}

func seedPlusPlus(flat []float32, n, dim, k int, kf func(a, b []float32) float32, r *rand.Rand) []float32 {
	centroids := make([]float32, k*dim)
	first := r.IntN(n)
	copy(centroids[0:dim], flat[first*dim:(first+1)*dim])

	minDistSq := make([]float32, n)
	for i := range minDistSq {
		minDistSq[i] = math.MaxFloat32
	}

	for c := 1; c < k; c++ {
		last := centroids[(c-1)*dim : c*dim]
		var total float64
		for i := 0; i < n; i++ {
			d := kf(flat[i*dim:(i+1)*dim], last)
			if d < minDistSq[i] {
				minDistSq[i] = d
			}
			total += float64(minDistSq[i])
		}
		if total <= 0 {
			// Degenerate: all remaining points coincide with a chosen
			// centroid. Fall back to uniform pick.
			idx := r.IntN(n)
			copy(centroids[c*dim:(c+1)*dim], flat[idx*dim:(idx+1)*dim])
			continue
		}
		target := r.Float64() * total
		var cum float64
		chosen := n - 1
		for i := 0; i < n; i++ {
			cum += float64(minDistSq[i])
			if cum >= target {
				chosen = i
				break
			}
		}
		copy(centroids[c*dim:(c+1)*dim], flat[chosen*dim:(chosen+1)*dim])
	}
	return centroids
}

// normalizeRow scales row to unit length in place. Cosine distance is
// scale-invariant on its own, but a centroid is also handed back to
// callers (ClosestCentroids, AssignPartition) as a representative
// direction, so it's kept unit length the same way the points it was
// averaged from would be after normalization. A zero row (every point
// in the cluster canceled out) is left as-is rather than divided by
// zero.
func normalizeRow(row []float32) {
	var sumSq float64
	for _, x := range row {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range row {
		row[i] /= norm
	}
}

// farthestFromNearestNonEmpty reseeds empty centroid emptyIdx from the
// point farthest from emptyIdx's nearest non-empty centroid, among the
// points currently assigned to that non-empty centroid. This donates a
// point from whichever existing cluster is both closest to the empty
// slot and has one to spare, rather than picking the single
// globally-farthest point regardless of which empty centroid is being
// repaired — the latter reseeds every empty centroid in the same pass
// to the same point when more than one is empty at once.
func farthestFromNearestNonEmpty(flat []float32, n, dim int, centroids []float32, assignments []int32, counts []int32, emptyIdx int, kf func(a, b []float32) float32, used map[int]bool) int {
	k := len(counts)
	donor := -1
	bestCentroidDist := float32(math.MaxFloat32)
	empty := centroids[emptyIdx*dim : (emptyIdx+1)*dim]
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		d := kf(empty, centroids[c*dim:(c+1)*dim])
		if d < bestCentroidDist {
			bestCentroidDist = d
			donor = c
		}
	}

	best := -1
	bestDist := float32(-1)
	if donor >= 0 {
		center := centroids[donor*dim : (donor+1)*dim]
		for i := 0; i < n; i++ {
			if int(assignments[i]) != donor || used[i] {
				continue
			}
			d := kf(flat[i*dim:(i+1)*dim], center)
			if d > bestDist {
				bestDist = d
				best = i
			}
		}
	}
	if best >= 0 {
		return best
	}

	// No candidate in the nearest non-empty cluster (every point there
	// was already claimed by another empty centroid this pass, or no
	// non-empty centroid exists at all). Fall back to the globally
	// farthest unused assigned point.
	for i := 0; i < n; i++ {
		c := assignments[i]
		if c < 0 || used[i] {
			continue
		}
		d := kf(flat[i*dim:(i+1)*dim], centroids[int(c)*dim:(int(c)+1)*dim])
		if d > bestDist {
			bestDist = d
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	return 0
}

// AssignPartition returns the index of the centroid nearest vec. When
// every distance is NaN (cosine distance with a zero vector or zero
// centroids) it returns 0.
func (m *Model) AssignPartition(vec []float32) int {
	kf := kernelFunc(m.Kernel)
	best := -1
	bestDist := float32(math.MaxFloat32)
	for j := 0; j < m.K; j++ {
		d := kf(vec, m.Centroids[j*m.Dim:(j+1)*m.Dim])
		if d < bestDist {
			bestDist = d
			best = j
		}
	}
	if best < 0 && m.K > 0 {
		best = 0
	}
	return best
}

type centroidDist struct {
	id   int
	dist float32
}

// ClosestCentroids returns up to probes centroid indices ordered nearest
// first, for IVFFlat's probe-based search.
func (m *Model) ClosestCentroids(query []float32, probes int) []int {
	if probes > m.K {
		probes = m.K
	}
	kf := kernelFunc(m.Kernel)
	dists := make([]centroidDist, m.K)
	for i := 0; i < m.K; i++ {
		dists[i] = centroidDist{id: i, dist: kf(query, m.Centroids[i*m.Dim:(i+1)*m.Dim])}
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i].dist < dists[j].dist })
	out := make([]int, probes)
	for i := 0; i < probes; i++ {
		out[i] = dists[i].id
	}
	return out
}
