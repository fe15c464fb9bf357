package align

import "math"

// NeighborIndex is a uniform-grid spatial index over a fixed position set.
// Cells are stored sparsely, keyed by integer grid coordinates. The index is
// immutable after construction and safe for concurrent readers.
type NeighborIndex struct {
	pts   []Vec3
	cell  float64
	min   Vec3
	cmin  [3]int32
	cmax  [3]int32
	cells map[[3]int32][]int32
}

// NewNeighborIndex builds a grid over pts with the given cell size.
// Construction is a single O(n) bucketing pass.
func NewNeighborIndex(pts []Vec3, cell float64) *NeighborIndex {
	if cell <= 0 {
		cell = 1
	}
	idx := &NeighborIndex{
		pts:   pts,
		cell:  cell,
		cells: make(map[[3]int32][]int32, len(pts)),
	}
	if len(pts) == 0 {
		return idx
	}
	min, max := pts[0], pts[0]
	for _, p := range pts[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	idx.min = min
	idx.cmin = idx.cellOf(min)
	idx.cmax = idx.cellOf(max)
	for i, p := range pts {
		c := idx.cellOf(p)
		idx.cells[c] = append(idx.cells[c], int32(i))
	}
	return idx
}

// Len returns the number of indexed points.
func (g *NeighborIndex) Len() int { return len(g.pts) }

// Point returns the indexed position i.
func (g *NeighborIndex) Point(i int) Vec3 { return g.pts[i] }

func (g *NeighborIndex) cellOf(p Vec3) [3]int32 {
	return [3]int32{
		int32(math.Floor((p.X - g.min.X) / g.cell)),
		int32(math.Floor((p.Y - g.min.Y) / g.cell)),
		int32(math.Floor((p.Z - g.min.Z) / g.cell)),
	}
}

// Radius returns the indices of all points within distance r of q.
func (g *NeighborIndex) Radius(q Vec3, r float64) []int32 {
	return g.Shell(q, 0, r)
}

// Shell returns the indices of all points p with rmin <= |p-q| <= rmax.
// The walk covers only grid cells that are both inside the occupied cell
// range and whose distance interval to q intersects [rmin, rmax], so the
// cost tracks the shell's intersection with the data rather than the query
// volume: a window far beyond the cloud extent costs nothing no matter how
// large rmax is relative to the cell size. This is the query that keeps
// pair extraction output-sensitive.
func (g *NeighborIndex) Shell(q Vec3, rmin, rmax float64) []int32 {
	if len(g.pts) == 0 || rmax < rmin || rmax < 0 {
		return nil
	}
	var out []int32
	cq := g.cellOf(q)
	span := int32(math.Ceil(rmax/g.cell)) + 1
	rmin2 := rmin * rmin
	rmax2 := rmax * rmax

	// Cells outside [cmin, cmax] are never occupied; clamping the query cube
	// to that box bounds every walk by the grid's occupied extent.
	x0, x1 := clampSpan(cq[0], span, g.cmin[0], g.cmax[0])
	y0, y1 := clampSpan(cq[1], span, g.cmin[1], g.cmax[1])
	z0, z1 := clampSpan(cq[2], span, g.cmin[2], g.cmax[2])

	for cx := x0; cx <= x1; cx++ {
		// Minimum planar distance contribution of this x slab.
		ax := axisDist(q.X, g.min.X+float64(cx)*g.cell, g.cell)
		if ax > rmax {
			continue
		}
		for cy := y0; cy <= y1; cy++ {
			ay := axisDist(q.Y, g.min.Y+float64(cy)*g.cell, g.cell)
			rho2 := ax*ax + ay*ay
			if rho2 > rmax2 {
				continue
			}
			// The z cells worth visiting in this column are the ones whose
			// distance interval to q can still land inside [rmin, rmax].
			for cz := z0; cz <= z1; cz++ {
				az := axisDist(q.Z, g.min.Z+float64(cz)*g.cell, g.cell)
				lo2 := rho2 + az*az
				if lo2 > rmax2 {
					continue
				}
				// Farthest corner of the cell from q; if even that is
				// closer than rmin the whole cell is inside the hole.
				bx := ax + g.cell
				by := ay + g.cell
				bz := az + g.cell
				hi2 := bx*bx + by*by + bz*bz
				if hi2 < rmin2 {
					continue
				}
				key := [3]int32{cx, cy, cz}
				for _, i := range g.cells[key] {
					d2 := g.pts[i].Sub(q).Dot(g.pts[i].Sub(q))
					if d2 >= rmin2 && d2 <= rmax2 {
						out = append(out, i)
					}
				}
			}
		}
	}
	return out
}

// clampSpan intersects the per-axis query interval [c-span, c+span] with the
// occupied cell range [lo, hi].
func clampSpan(c, span, lo, hi int32) (int32, int32) {
	a := c - span
	if a < lo {
		a = lo
	}
	b := c + span
	if b > hi {
		b = hi
	}
	return a, b
}

// axisDist returns the distance from coordinate x to the interval
// [lo, lo+cell] along one axis, 0 if x lies inside it.
func axisDist(x, lo, cell float64) float64 {
	if x < lo {
		return lo - x
	}
	if x > lo+cell {
		return x - (lo + cell)
	}
	return 0
}

// Nearest returns the index and distance of the point closest to q, or
// (-1, +Inf) for an empty index. Cells are visited in expanding Chebyshev
// rings around q's cell; the search stops once no farther ring can beat the
// best distance seen.
func (g *NeighborIndex) Nearest(q Vec3) (int, float64) {
	if len(g.pts) == 0 {
		return -1, math.Inf(1)
	}
	cq := g.cellOf(q)
	best := -1
	bestD2 := math.Inf(1)

	// Enough rings to walk from q's cell to the far corner of the occupied
	// cell range, even when q lies outside the bounding box.
	maxRing := int32(0)
	for a := 0; a < 3; a++ {
		lo := g.cmin[a] - cq[a]
		hi := g.cmax[a] - cq[a]
		if lo < 0 {
			lo = -lo
		}
		if hi < 0 {
			hi = -hi
		}
		if lo > maxRing {
			maxRing = lo
		}
		if hi > maxRing {
			maxRing = hi
		}
	}
	maxRing++

	for ring := int32(0); ring <= maxRing; ring++ {
		// Any cell in ring k is at least (k-1)*cell away from q.
		if best >= 0 {
			reach := float64(ring-1) * g.cell
			if reach > 0 && bestD2 <= reach*reach {
				break
			}
		}
		g.visitRing(cq, ring, func(idxs []int32) {
			for _, i := range idxs {
				d := g.pts[i].Sub(q)
				d2 := d.Dot(d)
				if d2 < bestD2 {
					bestD2 = d2
					best = int(i)
				}
			}
		})
	}
	return best, math.Sqrt(bestD2)
}

// NearestWithin returns the closest point to q no farther than r, or
// (-1, +Inf) if none exists. Cheaper than Nearest when r is small, which is
// the verification case.
func (g *NeighborIndex) NearestWithin(q Vec3, r float64) (int, float64) {
	best := -1
	bestD := math.Inf(1)
	for _, i := range g.Radius(q, r) {
		d := g.pts[i].Dist(q)
		if d < bestD {
			bestD = d
			best = int(i)
		}
	}
	return best, bestD
}

// visitRing calls fn for each occupied cell at Chebyshev distance ring from c.
func (g *NeighborIndex) visitRing(c [3]int32, ring int32, fn func([]int32)) {
	if ring == 0 {
		if idxs, ok := g.cells[c]; ok {
			fn(idxs)
		}
		return
	}
	for dx := -ring; dx <= ring; dx++ {
		for dy := -ring; dy <= ring; dy++ {
			for dz := -ring; dz <= ring; dz++ {
				if maxAbs3(dx, dy, dz) != ring {
					continue
				}
				key := [3]int32{c[0] + dx, c[1] + dy, c[2] + dz}
				if idxs, ok := g.cells[key]; ok {
					fn(idxs)
				}
			}
		}
	}
}

func maxAbs3(a, b, c int32) int32 {
	m := a
	if m < 0 {
		m = -m
	}
	if b < 0 {
		b = -b
	}
	if b > m {
		m = b
	}
	if c < 0 {
		c = -c
	}
	if c > m {
		m = c
	}
	return m
}
