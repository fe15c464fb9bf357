package align

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// Footprint is the XY-plane convex outline of a cloud, used to sanity
// check coverage and overlap after registration without loading a viewer.
type Footprint struct {
	Hull orb.Ring
	Area float64
}

// Geometry is a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature is a GeoJSON feature with geometry and properties.
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection is a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// ComputeFootprint projects the cloud onto the XY plane, takes the convex
// hull, and simplifies it at the given tolerance (0 skips simplification).
func ComputeFootprint(c Cloud, tolerance float64) (*Footprint, error) {
	if len(c) < 3 {
		return nil, fmt.Errorf("footprint needs at least 3 points, have %d", len(c))
	}
	points := make([]orb.Point, len(c))
	for i, p := range c {
		points[i] = orb.Point{p.Pos.X, p.Pos.Y}
	}
	hull := convexHull(points)
	if len(hull) < 3 {
		return nil, fmt.Errorf("cloud is degenerate in the XY plane")
	}

	ring := make(orb.Ring, 0, len(hull)+1)
	ring = append(ring, hull...)
	ring = append(ring, hull[0]) // close the ring

	if tolerance > 0 {
		ls := orb.LineString(ring)
		simplified := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone())
		if sls, ok := simplified.(orb.LineString); ok && len(sls) >= 4 {
			ring = orb.Ring(sls)
		}
	}

	area := planar.Area(orb.Polygon{ring})
	if area < 0 {
		area = -area
	}
	return &Footprint{Hull: ring, Area: area}, nil
}

// FootprintCollection builds a GeoJSON FeatureCollection with one polygon
// per named cloud, tagged with its area.
func FootprintCollection(clouds map[string]Cloud, tolerance float64) (*FeatureCollection, error) {
	names := make([]string, 0, len(clouds))
	for name := range clouds {
		names = append(names, name)
	}
	sort.Strings(names)

	fc := &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]*Feature, 0, len(names)),
	}
	for _, name := range names {
		fp, err := ComputeFootprint(clouds[name], tolerance)
		if err != nil {
			return nil, fmt.Errorf("footprint for %s: %w", name, err)
		}
		coords := make([][2]float64, len(fp.Hull))
		for i, p := range fp.Hull {
			coords[i] = [2]float64{p[0], p[1]}
		}
		coordsJSON, err := json.Marshal([][][2]float64{coords})
		if err != nil {
			return nil, fmt.Errorf("marshaling footprint for %s: %w", name, err)
		}
		fc.Features = append(fc.Features, &Feature{
			Type: "Feature",
			Geometry: &Geometry{
				Type:        "Polygon",
				Coordinates: coordsJSON,
			},
			Properties: map[string]interface{}{
				"name": name,
				"area": fp.Area,
			},
		})
	}
	return fc, nil
}

// WriteFootprints writes the per-cloud footprints as a GeoJSON file.
func WriteFootprints(path string, clouds map[string]Cloud, tolerance float64) error {
	fc, err := FootprintCollection(clouds, tolerance)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling feature collection: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing footprint file: %w", err)
	}
	return nil
}

// convexHull computes the convex hull of a set of 2D points using Andrew's
// monotone chain algorithm. Returns points in counter-clockwise order.
func convexHull(points []orb.Point) []orb.Point {
	if len(points) < 3 {
		result := make([]orb.Point, len(points))
		copy(result, points)
		return result
	}

	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	n := len(sorted)
	hull := make([]orb.Point, 0, 2*n)

	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}
