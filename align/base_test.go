package align

import (
	"math"
	"math/rand"
	"testing"
)

// planarGrid builds a flat n x n grid in the z=0 plane, the easiest cloud
// to draw coplanar bases from.
func planarGrid(n int, spacing float64) []Vec3 {
	pts := make([]Vec3, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pts = append(pts, Vec3{float64(i) * spacing, float64(j) * spacing, 0})
		}
	}
	return pts
}

func testSelectorOptions() Options {
	opts := DefaultOptions()
	opts.OverlapEstimate = 1.0
	opts.MinSpreadFraction = 0.1
	opts.CoplanarityTolerance = 0.05
	opts.BaseAttempts = 500
	return opts
}

func TestBaseSelectorProducesValidBases(t *testing.T) {
	pts := planarGrid(10, 1)
	diameter := positionsToCloud(pts).Diameter()
	sel := newBaseSelector(pts, diameter, testSelectorOptions())
	rng := rand.New(rand.NewSource(31))

	for i := 0; i < 20; i++ {
		base, err := sel.Select(rng)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}

		seen := map[int]bool{}
		for _, idx := range base.Idx {
			if seen[idx] {
				t.Fatalf("base reuses point index %d", idx)
			}
			seen[idx] = true
		}

		bp := base.Points(pts)
		if d := bp[0].Dist(bp[1]); math.Abs(d-base.D1) > 1e-12 {
			t.Fatalf("D1 = %g, actual diagonal length %g", base.D1, d)
		}
		if d := bp[2].Dist(bp[3]); math.Abs(d-base.D2) > 1e-12 {
			t.Fatalf("D2 = %g, actual diagonal length %g", base.D2, d)
		}
		if base.R1 < 0 || base.R1 > 1 || base.R2 < 0 || base.R2 > 1 {
			t.Fatalf("intersection ratios outside [0,1]: r1=%g r2=%g", base.R1, base.R2)
		}

		// The diagonals must actually cross: interpolated crossing points of a
		// planar base coincide within the coplanarity slack.
		c1 := bp[0].Lerp(bp[1], base.R1)
		c2 := bp[2].Lerp(bp[3], base.R2)
		if c1.Dist(c2) > sel.coplanarTol+1e-9 {
			t.Fatalf("diagonal crossing gap %g exceeds tolerance", c1.Dist(c2))
		}

		wantSides := [4]float64{
			bp[0].Dist(bp[2]), bp[0].Dist(bp[3]),
			bp[1].Dist(bp[2]), bp[1].Dist(bp[3]),
		}
		if base.Sides != wantSides {
			t.Fatalf("Sides = %v, want %v", base.Sides, wantSides)
		}
	}
}

func TestBaseSelectorSpreadBounds(t *testing.T) {
	pts := planarGrid(12, 1)
	diameter := positionsToCloud(pts).Diameter()
	opts := testSelectorOptions()
	sel := newBaseSelector(pts, diameter, opts)
	rng := rand.New(rand.NewSource(32))

	base, err := sel.Select(rng)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	bp := base.Points(pts)
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			d := bp[i].Dist(bp[j])
			if d < sel.spread-1e-12 || d > sel.maxDiameter+1e-12 {
				t.Fatalf("base pair distance %g outside [%g, %g]", d, sel.spread, sel.maxDiameter)
			}
		}
	}
}

func TestBaseSelectorTooFewPoints(t *testing.T) {
	pts := []Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	sel := newBaseSelector(pts, 2, testSelectorOptions())
	if _, err := sel.Select(rand.New(rand.NewSource(33))); err != ErrDegenerateBase {
		t.Errorf("3-point cloud: got %v, want ErrDegenerateBase", err)
	}
}

func TestBaseSelectorCollinearCloud(t *testing.T) {
	// All points on one line: no triangle survives the collinearity check.
	pts := make([]Vec3, 20)
	for i := range pts {
		pts[i] = Vec3{float64(i), 0, 0}
	}
	opts := testSelectorOptions()
	opts.BaseAttempts = 100
	sel := newBaseSelector(pts, 19, opts)
	if _, err := sel.Select(rand.New(rand.NewSource(34))); err != ErrDegenerateBase {
		t.Errorf("collinear cloud: got %v, want ErrDegenerateBase", err)
	}
}

func TestOrderQuadRejectsNonCrossing(t *testing.T) {
	// A triangle with an interior point has a crossing pairing; four points
	// where one is far off every diagonal has none only in contrived layouts,
	// so check the accepting path carefully instead: a unit square must order
	// into its two true diagonals.
	pts := []Vec3{{0, 0, 0}, {1, 1, 0}, {1, 0, 0}, {0, 1, 0}}
	base, ok := orderQuad(pts, [4]int{0, 1, 2, 3})
	if !ok {
		t.Fatal("unit square has crossing diagonals")
	}
	if math.Abs(base.R1-0.5) > 1e-9 || math.Abs(base.R2-0.5) > 1e-9 {
		t.Errorf("square diagonals cross at midpoints, got r1=%g r2=%g", base.R1, base.R2)
	}
	if math.Abs(base.D1-math.Sqrt2) > 1e-9 || math.Abs(base.D2-math.Sqrt2) > 1e-9 {
		t.Errorf("square diagonal lengths: d1=%g d2=%g", base.D1, base.D2)
	}
}

func TestSegmentCrossParallel(t *testing.T) {
	if _, _, _, ok := segmentCross(
		Vec3{0, 0, 0}, Vec3{1, 0, 0},
		Vec3{0, 1, 0}, Vec3{1, 1, 0},
	); ok {
		t.Error("parallel segments reported as crossing")
	}
}

func positionsToCloud(pts []Vec3) Cloud {
	c := make(Cloud, len(pts))
	for i, p := range pts {
		c[i] = Point3{Pos: p}
	}
	return c
}
