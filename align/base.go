package align

import (
	"math"
	"math/rand"
)

// Base is a wide, near-coplanar 4-point quadruple drawn from the reference
// cloud. Idx[0],Idx[1] span the first diagonal, Idx[2],Idx[3] the second.
// R1 and R2 are the fractional positions along each diagonal where the two
// diagonals (nearly) cross; both lie in [0,1] and are invariant under rigid
// motion, which is what makes the quadruple a usable matching unit.
type Base struct {
	Idx    [4]int
	D1, D2 float64
	R1, R2 float64

	// Sides are the four diagonal-endpoint-to-diagonal-endpoint distances
	// (0-2, 0-3, 1-2, 1-3), used to close the hinge freedom left by the
	// diagonal invariants when validating candidate congruent sets.
	Sides [4]float64
}

// Points resolves the base indices against the cloud it was drawn from.
func (b Base) Points(pts []Vec3) [4]Vec3 {
	return [4]Vec3{pts[b.Idx[0]], pts[b.Idx[1]], pts[b.Idx[2]], pts[b.Idx[3]]}
}

// baseSelector draws bases from a fixed position set. Thresholds are fixed
// at construction; draws only consume the injected RNG, so selection is
// reproducible per worker.
type baseSelector struct {
	pts         []Vec3
	spread      float64 // minimum pairwise distance between base points
	maxDiameter float64 // maximum pairwise distance (keeps bases inside the overlap)
	coplanarTol float64 // max distance of the 4th point from the base plane
	attempts    int
}

// newBaseSelector derives the spread thresholds from the cloud extent and
// the expected overlap: a base wider than the overlapping region can never
// be matched, and a narrow base has no discriminating power.
func newBaseSelector(pts []Vec3, diameter float64, opts Options) *baseSelector {
	maxDiameter := diameter * opts.OverlapEstimate
	return &baseSelector{
		pts:         pts,
		spread:      maxDiameter * opts.MinSpreadFraction,
		maxDiameter: maxDiameter,
		coplanarTol: diameter * opts.CoplanarityTolerance,
		attempts:    opts.BaseAttempts,
	}
}

// Select draws one valid base, or ErrDegenerateBase after the attempt
// budget is exhausted (tiny or degenerate clouds).
func (s *baseSelector) Select(rng *rand.Rand) (Base, error) {
	n := len(s.pts)
	if n < 4 {
		return Base{}, ErrDegenerateBase
	}
	for try := 0; try < s.attempts; try++ {
		i0, i1, i2, ok := s.drawTriangle(rng)
		if !ok {
			continue
		}
		i3, ok := s.pickCoplanar(i0, i1, i2)
		if !ok {
			continue
		}
		base, ok := orderQuad(s.pts, [4]int{i0, i1, i2, i3})
		if !ok {
			continue
		}
		return base, nil
	}
	return Base{}, ErrDegenerateBase
}

// drawTriangle samples three distinct points with pairwise distances inside
// [spread, maxDiameter].
func (s *baseSelector) drawTriangle(rng *rand.Rand) (int, int, int, bool) {
	n := len(s.pts)
	i0 := rng.Intn(n)
	i1 := rng.Intn(n)
	i2 := rng.Intn(n)
	if i0 == i1 || i0 == i2 || i1 == i2 {
		return 0, 0, 0, false
	}
	d01 := s.pts[i0].Dist(s.pts[i1])
	d02 := s.pts[i0].Dist(s.pts[i2])
	d12 := s.pts[i1].Dist(s.pts[i2])
	for _, d := range [3]float64{d01, d02, d12} {
		if d < s.spread || d > s.maxDiameter {
			return 0, 0, 0, false
		}
	}
	// Reject near-collinear triangles; they give an unstable base plane.
	e1 := s.pts[i1].Sub(s.pts[i0])
	e2 := s.pts[i2].Sub(s.pts[i0])
	if e1.Cross(e2).Norm() < 1e-9*d01*d02 {
		return 0, 0, 0, false
	}
	return i0, i1, i2, true
}

// pickCoplanar scans the cloud for the fourth point: the one closest to the
// plane of the triangle among those keeping the base spread, accepted only
// when its plane deviation is within tolerance.
func (s *baseSelector) pickCoplanar(i0, i1, i2 int) (int, bool) {
	p0 := s.pts[i0]
	normal := s.pts[i1].Sub(p0).Cross(s.pts[i2].Sub(p0)).Normalize()

	best := -1
	bestDev := math.Inf(1)
	for i, p := range s.pts {
		if i == i0 || i == i1 || i == i2 {
			continue
		}
		ok := true
		for _, j := range [3]int{i0, i1, i2} {
			d := p.Dist(s.pts[j])
			if d < s.spread || d > s.maxDiameter {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		dev := math.Abs(p.Sub(p0).Dot(normal))
		if dev < bestDev {
			bestDev = dev
			best = i
		}
	}
	if best < 0 || bestDev > s.coplanarTol {
		return 0, false
	}
	return best, true
}

// orderQuad arranges four points into two diagonals whose segments cross:
// it tries the three possible pairings and keeps the one whose closest
// points lie strictly inside both segments. Returns false when no pairing
// crosses (a non-convex or degenerate quadruple).
func orderQuad(pts []Vec3, idx [4]int) (Base, bool) {
	pairings := [3][4]int{
		{idx[0], idx[1], idx[2], idx[3]},
		{idx[0], idx[2], idx[1], idx[3]},
		{idx[0], idx[3], idx[1], idx[2]},
	}
	best := Base{}
	bestGap := math.Inf(1)
	found := false
	for _, p := range pairings {
		r1, r2, gap, ok := segmentCross(pts[p[0]], pts[p[1]], pts[p[2]], pts[p[3]])
		if !ok {
			continue
		}
		if gap < bestGap {
			bestGap = gap
			best = Base{
				Idx: p,
				D1:  pts[p[0]].Dist(pts[p[1]]),
				D2:  pts[p[2]].Dist(pts[p[3]]),
				R1:  r1,
				R2:  r2,
				Sides: [4]float64{
					pts[p[0]].Dist(pts[p[2]]),
					pts[p[0]].Dist(pts[p[3]]),
					pts[p[1]].Dist(pts[p[2]]),
					pts[p[1]].Dist(pts[p[3]]),
				},
			}
			found = true
		}
	}
	return best, found
}

// segmentCross computes the closest points between segments a1a2 and b1b2.
// It returns the fractional positions of the closest points along each
// segment and the gap between them, accepting only interior crossings.
func segmentCross(a1, a2, b1, b2 Vec3) (r1, r2, gap float64, ok bool) {
	u := a2.Sub(a1)
	v := b2.Sub(b1)
	w := a1.Sub(b1)

	a := u.Dot(u)
	b := u.Dot(v)
	c := v.Dot(v)
	d := u.Dot(w)
	e := v.Dot(w)

	den := a*c - b*b
	if den < 1e-12*a*c || a < 1e-24 || c < 1e-24 {
		// Parallel or degenerate diagonals.
		return 0, 0, 0, false
	}
	r1 = (b*e - c*d) / den
	r2 = (a*e - b*d) / den
	if r1 < 0 || r1 > 1 || r2 < 0 || r2 > 1 {
		return 0, 0, 0, false
	}
	gap = a1.Lerp(a2, r1).Dist(b1.Lerp(b2, r2))
	return r1, r2, gap, true
}
