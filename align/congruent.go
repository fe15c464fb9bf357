package align

// CongruentSet maps a base's four indices (in Base.Idx order) to four
// indices in the target cloud forming a quadruple congruent to the base
// within tolerance. Ephemeral: produced, scored and discarded within one
// loop iteration.
type CongruentSet [4]int32

// maxSetsPerBase caps the candidates returned for a single base. Highly
// self-similar clouds can produce enormous candidate counts for one base;
// past this cap more bases beat more candidates.
const maxSetsPerBase = 1024

// diagEntry is one orientation of an extracted pair: the interpolated point
// is taken fraction r along the segment from A to B.
type diagEntry struct {
	A, B int32
}

// findCongruentSmart enumerates target quadruples congruent to base using
// the pair index. Pairs matching each diagonal length are extracted once
// (E1, E2); the point each E1 pair implies at ratio R1 goes into a spatial
// index, and each E2 pair's implied point at R2 is matched against it
// within delta. A hit means the two candidate diagonals cross the way the
// base's diagonals do, which is the congruence invariant.
//
// Candidates are materialized eagerly rather than streamed to the caller;
// maxSetsPerBase bounds the slice so that stays cheap on self-similar clouds.
func findCongruentSmart(base Base, pi *PairIndex, delta float64) []CongruentSet {
	e1 := pi.PairsWithin(base.D1)
	e2 := pi.PairsWithin(base.D2)
	if len(e1) == 0 || len(e2) == 0 {
		return nil
	}

	// Both orientations of every E1 pair: the base diagonal is directed,
	// the extracted pairs are not.
	positions := make([]Vec3, 0, 2*len(e1))
	entries := make([]diagEntry, 0, 2*len(e1))
	for _, p := range e1 {
		a, b := pi.Point(p.I), pi.Point(p.J)
		positions = append(positions, a.Lerp(b, base.R1))
		entries = append(entries, diagEntry{p.I, p.J})
		positions = append(positions, b.Lerp(a, base.R1))
		entries = append(entries, diagEntry{p.J, p.I})
	}
	crossIdx := NewNeighborIndex(positions, delta)

	var sets []CongruentSet
	for _, p := range e2 {
		for _, o := range [2]diagEntry{{p.I, p.J}, {p.J, p.I}} {
			q := pi.Point(o.A).Lerp(pi.Point(o.B), base.R2)
			for _, hit := range crossIdx.Radius(q, delta) {
				d1 := entries[hit]
				set := CongruentSet{d1.A, d1.B, o.A, o.B}
				if !validCongruentSet(set, base, pi.Point, delta) {
					continue
				}
				sets = append(sets, set)
				if len(sets) >= maxSetsPerBase {
					return sets
				}
			}
		}
	}
	return sets
}

// findCongruentBrute is the baseline variant: the same enumeration by
// direct pairwise comparison, quadratic in the candidate pair counts.
func findCongruentBrute(base Base, pts []Vec3, delta float64) []CongruentSet {
	e1 := bruteForcePairs(pts, base.D1, delta)
	e2 := bruteForcePairs(pts, base.D2, delta)

	point := func(i int32) Vec3 { return pts[i] }

	var sets []CongruentSet
	for _, p1 := range e1 {
		for _, o1 := range [2]diagEntry{{p1.I, p1.J}, {p1.J, p1.I}} {
			c1 := pts[o1.A].Lerp(pts[o1.B], base.R1)
			for _, p2 := range e2 {
				for _, o2 := range [2]diagEntry{{p2.I, p2.J}, {p2.J, p2.I}} {
					c2 := pts[o2.A].Lerp(pts[o2.B], base.R2)
					if c1.Dist(c2) > delta {
						continue
					}
					set := CongruentSet{o1.A, o1.B, o2.A, o2.B}
					if !validCongruentSet(set, base, point, delta) {
						continue
					}
					sets = append(sets, set)
					if len(sets) >= maxSetsPerBase {
						return sets
					}
				}
			}
		}
	}
	return sets
}

// validCongruentSet rejects candidates that reuse a target index and ones
// whose side lengths disagree with the base. Matching diagonals and a
// shared crossing point still leave a hinge freedom between the two
// diagonal planes; the side check closes it.
func validCongruentSet(set CongruentSet, base Base, point func(int32) Vec3, delta float64) bool {
	if set[0] == set[1] || set[0] == set[2] || set[0] == set[3] ||
		set[1] == set[2] || set[1] == set[3] || set[2] == set[3] {
		return false
	}
	// Sides connect each diagonal-1 endpoint to each diagonal-2 endpoint.
	sideTol := 2 * delta
	sides := [4][2]int{{0, 2}, {0, 3}, {1, 2}, {1, 3}}
	for k, s := range sides {
		want := base.Sides[k]
		got := point(set[s[0]]).Dist(point(set[s[1]]))
		if got < want-sideTol || got > want+sideTol {
			return false
		}
	}
	return true
}
