package align

import (
	"math/rand"
	"sort"
	"sync"
	"testing"
)

func sortPairs(pairs []Pair) []Pair {
	out := make([]Pair, len(pairs))
	copy(out, pairs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].I != out[j].I {
			return out[i].I < out[j].I
		}
		return out[i].J < out[j].J
	})
	return out
}

func TestPairsWithinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	pts := randomCloudPositions(250, 5, rng)
	delta := 0.05
	pi := NewPairIndex(pts, delta)

	for i := 0; i < 30; i++ {
		d := rng.Float64() * 4
		got := sortPairs(pi.PairsWithin(d))
		want := sortPairs(bruteForcePairs(pts, d, delta))
		if len(got) != len(want) {
			t.Fatalf("PairsWithin(%g): got %d pairs, want %d", d, len(got), len(want))
		}
		for j := range got {
			if got[j].I != want[j].I || got[j].J != want[j].J {
				t.Fatalf("PairsWithin(%g): pair %d is (%d,%d), want (%d,%d)",
					d, j, got[j].I, got[j].J, want[j].I, want[j].J)
			}
		}
	}
}

func TestPairsWithinOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	pts := randomCloudPositions(100, 3, rng)
	pi := NewPairIndex(pts, 0.1)
	for _, p := range pi.PairsWithin(1.0) {
		if p.I >= p.J {
			t.Fatalf("pair (%d,%d) violates I < J", p.I, p.J)
		}
		if d := pts[p.I].Dist(pts[p.J]); d != p.Dist {
			t.Fatalf("pair (%d,%d) stores distance %g, actual %g", p.I, p.J, p.Dist, d)
		}
	}
}

func TestPairIndexCacheReuse(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	pts := randomCloudPositions(100, 3, rng)
	pi := NewPairIndex(pts, 0.1)

	// Two queries in the same quantized bucket share the extraction.
	a := pi.PairsAt(1.00)
	b := pi.PairsAt(1.04)
	if len(a) > 0 && len(b) > 0 && &a[0] != &b[0] {
		t.Error("same-bucket queries returned different extractions")
	}
}

func TestPairIndexConcurrentQueries(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	pts := randomCloudPositions(150, 4, rng)
	pi := NewPairIndex(pts, 0.08)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				d := r.Float64() * 3
				for _, p := range pi.PairsWithin(d) {
					if p.Dist < d-pi.Delta() || p.Dist > d+pi.Delta() {
						t.Errorf("pair at distance %g outside window around %g", p.Dist, d)
						return
					}
				}
			}
		}(int64(w))
	}
	wg.Wait()
}

func TestPairsWithinBeyondDiameter(t *testing.T) {
	// Query distances far past the cloud diameter must come back empty
	// without walking the whole distance window in grid cells.
	pts := []Vec3{{0, 0, 0}, {0.01, 0, 0}, {0, 0.01, 0}, {0.01, 0.01, 0}}
	pi := NewPairIndex(pts, 0.01)
	if pairs := pi.PairsWithin(50); len(pairs) != 0 {
		t.Errorf("got %d pairs for a distance past the cloud diameter", len(pairs))
	}
}

func TestBruteForcePairsWindow(t *testing.T) {
	pts := []Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {0, 1, 0}}
	pairs := bruteForcePairs(pts, 1.0, 0.01)
	// Distance-1 pairs: (0,1), (1,2), (0,3).
	if len(pairs) != 3 {
		t.Fatalf("got %d pairs, want 3: %v", len(pairs), pairs)
	}
}
