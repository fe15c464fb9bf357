package align

import "sync"

// Pair is an unordered index pair (I < J) into a cloud together with its
// Euclidean distance.
type Pair struct {
	I, J int32
	Dist float64
}

// PairIndex answers "all pairs at distance d ± delta" queries over a fixed
// position set without an O(n²) pass: candidate partners for each point are
// gathered by walking only the grid cells intersecting the spherical shell
// [d-delta, d+delta] around it. Because diagonal lengths recur across many
// randomly drawn bases, extracted pair sets are cached per quantized
// distance bucket and reused; the cache is insert-locked and read shared.
type PairIndex struct {
	grid  *NeighborIndex
	delta float64

	mu    sync.Mutex
	cache map[int64][]Pair
}

// NewPairIndex builds the index over pts. The grid cell size is tied to the
// tolerance so shell walks touch few cells per query.
func NewPairIndex(pts []Vec3, delta float64) *PairIndex {
	return &PairIndex{
		grid:  NewNeighborIndex(pts, delta),
		delta: delta,
		cache: make(map[int64][]Pair),
	}
}

// Delta returns the tolerance the index was built with.
func (pi *PairIndex) Delta() float64 { return pi.delta }

// Point returns the indexed position i.
func (pi *PairIndex) Point(i int32) Vec3 { return pi.grid.Point(int(i)) }

// bucket quantizes a query distance. Queries landing in the same bucket
// share one extraction; the window is widened by one quantum on each side
// so a cached bucket still covers every distance that maps to it.
func (pi *PairIndex) bucket(d float64) int64 {
	return int64(d / pi.delta)
}

// PairsAt returns every pair (i, j), i < j, whose distance falls in
// [d-delta, d+delta]. The returned slice is shared cache state and must be
// treated as read-only. Pairs outside the bucket's widened window never
// appear; callers needing the exact [d-delta, d+delta] window filter with
// Pair.Dist (see pairsWithin).
func (pi *PairIndex) PairsAt(d float64) []Pair {
	b := pi.bucket(d)

	pi.mu.Lock()
	cached, ok := pi.cache[b]
	pi.mu.Unlock()
	if ok {
		return cached
	}

	// The bucket covers distances [b*delta, (b+1)*delta); extract the union
	// of all tolerance windows of queries in the bucket.
	lo := float64(b)*pi.delta - pi.delta
	hi := float64(b+1)*pi.delta + pi.delta
	if lo < 0 {
		lo = 0
	}

	var pairs []Pair
	n := pi.grid.Len()
	for i := 0; i < n; i++ {
		p := pi.grid.Point(i)
		for _, j := range pi.grid.Shell(p, lo, hi) {
			if int32(i) < j {
				pairs = append(pairs, Pair{I: int32(i), J: j, Dist: p.Dist(pi.grid.Point(int(j)))})
			}
		}
	}

	pi.mu.Lock()
	// A concurrent extraction may have won the race; keep the first insert
	// so previously returned slices stay valid.
	if prior, ok := pi.cache[b]; ok {
		pairs = prior
	} else {
		pi.cache[b] = pairs
	}
	pi.mu.Unlock()
	return pairs
}

// pairsWithin narrows a cached bucket to the exact tolerance window of one
// query distance.
func pairsWithin(pairs []Pair, d, delta float64) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Dist >= d-delta && p.Dist <= d+delta {
			out = append(out, p)
		}
	}
	return out
}

// PairsWithin returns exactly the pairs whose distance lies in
// [d-delta, d+delta], backed by the bucket cache.
func (pi *PairIndex) PairsWithin(d float64) []Pair {
	return pairsWithin(pi.PairsAt(d), d, pi.delta)
}

// bruteForcePairs enumerates the same window by exhaustive pairwise
// checking. It is the baseline the brute matcher variant runs on and the
// oracle the pair index is tested against.
func bruteForcePairs(pts []Vec3, d, delta float64) []Pair {
	var out []Pair
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			dist := pts[i].Dist(pts[j])
			if dist >= d-delta && dist <= d+delta {
				out = append(out, Pair{I: int32(i), J: int32(j), Dist: dist})
			}
		}
	}
	return out
}
