package align

import (
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"
)

func bruteRadius(pts []Vec3, q Vec3, rmin, rmax float64) []int32 {
	var out []int32
	for i, p := range pts {
		d := p.Dist(q)
		if d >= rmin && d <= rmax {
			out = append(out, int32(i))
		}
	}
	return out
}

func sortedCopy(s []int32) []int32 {
	out := make([]int32, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalIndexSets(a, b []int32) bool {
	a, b = sortedCopy(a), sortedCopy(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNeighborIndexRadiusMatchesBrute(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pts := randomCloudPositions(300, 10, rng)
	idx := NewNeighborIndex(pts, 0.5)

	for i := 0; i < 50; i++ {
		q := Vec3{rng.Float64() * 10, rng.Float64() * 10, rng.Float64() * 10}
		r := rng.Float64() * 3
		got := idx.Radius(q, r)
		want := bruteRadius(pts, q, 0, r)
		if !equalIndexSets(got, want) {
			t.Fatalf("Radius(%+v, %g): got %d indices, want %d", q, r, len(got), len(want))
		}
	}
}

func TestNeighborIndexShellMatchesBrute(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	pts := randomCloudPositions(300, 10, rng)
	idx := NewNeighborIndex(pts, 0.3)

	for i := 0; i < 50; i++ {
		q := Vec3{rng.Float64() * 10, rng.Float64() * 10, rng.Float64() * 10}
		rmin := rng.Float64() * 4
		rmax := rmin + rng.Float64()*0.5
		got := idx.Shell(q, rmin, rmax)
		want := bruteRadius(pts, q, rmin, rmax)
		if !equalIndexSets(got, want) {
			t.Fatalf("Shell(%+v, %g, %g): got %d indices, want %d", q, rmin, rmax, len(got), len(want))
		}
	}
}

func TestNeighborIndexNearest(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	pts := randomCloudPositions(200, 5, rng)
	idx := NewNeighborIndex(pts, 0.4)

	queries := randomCloudPositions(30, 5, rng)
	// Queries far outside the bounding box must still find a point.
	queries = append(queries, Vec3{100, 100, 100}, Vec3{-50, 2, 2})

	for _, q := range queries {
		got, gotD := idx.Nearest(q)
		want := -1
		wantD := math.Inf(1)
		for i, p := range pts {
			if d := p.Dist(q); d < wantD {
				wantD = d
				want = i
			}
		}
		if got != want {
			t.Fatalf("Nearest(%+v) = %d (d=%g), want %d (d=%g)", q, got, gotD, want, wantD)
		}
		if math.Abs(gotD-wantD) > 1e-12 {
			t.Fatalf("Nearest distance %g, want %g", gotD, wantD)
		}
	}
}

func TestNeighborIndexNearestWithin(t *testing.T) {
	pts := []Vec3{{0, 0, 0}, {1, 0, 0}, {0.1, 0, 0}}
	idx := NewNeighborIndex(pts, 0.2)

	i, d := idx.NearestWithin(Vec3{0.12, 0, 0}, 0.05)
	if i != 2 || d > 0.05 {
		t.Errorf("NearestWithin close query: got (%d, %g)", i, d)
	}

	if i, _ := idx.NearestWithin(Vec3{5, 5, 5}, 0.5); i != -1 {
		t.Errorf("NearestWithin out of range: got index %d, want -1", i)
	}
}

func TestNeighborIndexEmpty(t *testing.T) {
	idx := NewNeighborIndex(nil, 1)
	if got := idx.Radius(Vec3{}, 10); got != nil {
		t.Errorf("Radius on empty index: got %v", got)
	}
	if i, d := idx.Nearest(Vec3{}); i != -1 || !math.IsInf(d, 1) {
		t.Errorf("Nearest on empty index: got (%d, %g)", i, d)
	}
}

func TestNeighborIndexShellBeyondExtent(t *testing.T) {
	// A window far larger than the cloud extent must cost on the order of
	// the occupied cells, not the window volume in cells.
	pts := []Vec3{{0, 0, 0}, {0.01, 0, 0}, {0, 0.01, 0}, {0.01, 0.01, 0}}
	idx := NewNeighborIndex(pts, 0.01)

	done := make(chan []int32, 1)
	go func() { done <- idx.Shell(Vec3{0, 0, 0}, 49.99, 50.01) }()
	select {
	case got := <-done:
		if got != nil {
			t.Errorf("shell past the cloud extent: got %v, want nil", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("shell query past the cloud extent did not return")
	}

	// A window that swallows the whole cloud still reports every point.
	if got := idx.Shell(Vec3{0, 0, 0}, 0, 50); len(got) != len(pts) {
		t.Errorf("enclosing shell returned %d points, want %d", len(got), len(pts))
	}
}

func TestNeighborIndexDegenerateShell(t *testing.T) {
	pts := []Vec3{{0, 0, 0}, {1, 1, 1}}
	idx := NewNeighborIndex(pts, 0.5)
	if got := idx.Shell(Vec3{}, 2, 1); got != nil {
		t.Errorf("inverted shell bounds: got %v, want nil", got)
	}
	if got := idx.Shell(Vec3{}, 0, -1); got != nil {
		t.Errorf("negative radius: got %v, want nil", got)
	}
}
