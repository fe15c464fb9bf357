package align

import (
	"errors"
	"time"
)

// DisabledColorDistance is the sentinel above which the color gate is
// considered disabled. Matches the convention of passing 1e9 for "don't use".
const DisabledColorDistance = 1e9

// Vec3 is a 3-component vector (position, direction or RGB triple).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point3 is a single cloud sample: a position plus optional attributes.
// HasNormal / HasColor record whether the optional attributes were present
// in the source data; absent attributes are left as zero values.
type Point3 struct {
	Pos       Vec3
	Normal    Vec3
	Color     Vec3
	TexU      float64
	TexV      float64
	HasNormal bool
	HasColor  bool
	HasTex    bool
}

// Cloud is an ordered point set. Order carries no meaning for registration,
// but indices into a Cloud are used as stable identifiers.
type Cloud []Point3

// Positions extracts the bare positions of a cloud.
func (c Cloud) Positions() []Vec3 {
	out := make([]Vec3, len(c))
	for i := range c {
		out[i] = c[i].Pos
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the cloud.
// Both corners are zero for an empty cloud.
func (c Cloud) Bounds() (min, max Vec3) {
	if len(c) == 0 {
		return Vec3{}, Vec3{}
	}
	min, max = c[0].Pos, c[0].Pos
	for _, p := range c[1:] {
		if p.Pos.X < min.X {
			min.X = p.Pos.X
		}
		if p.Pos.Y < min.Y {
			min.Y = p.Pos.Y
		}
		if p.Pos.Z < min.Z {
			min.Z = p.Pos.Z
		}
		if p.Pos.X > max.X {
			max.X = p.Pos.X
		}
		if p.Pos.Y > max.Y {
			max.Y = p.Pos.Y
		}
		if p.Pos.Z > max.Z {
			max.Z = p.Pos.Z
		}
	}
	return min, max
}

// Diameter returns the bounding-box diagonal, used as the scale reference
// when deriving base spread thresholds.
func (c Cloud) Diameter() float64 {
	min, max := c.Bounds()
	return max.Sub(min).Norm()
}

// Options configures a registration run. Zero values are not usable;
// start from DefaultOptions and override.
type Options struct {
	// Delta is the distance tolerance used everywhere: pair extraction
	// windows, congruence matching and LCP verification. Must be > 0.
	Delta float64 `yaml:"delta" json:"delta"`

	// OverlapEstimate is the expected fractional overlap between the two
	// clouds, in (0, 1]. It sizes the base spread and the iteration budget.
	OverlapEstimate float64 `yaml:"overlapEstimate" json:"overlapEstimate"`

	// OverlapThreshold stops the search early once the best LCP score
	// reaches it. 1.0 means never stop early.
	OverlapThreshold float64 `yaml:"overlapThreshold" json:"overlapThreshold"`

	// SampleSize is the number of points retained from each cloud before
	// matching. Must be > 0.
	SampleSize int `yaml:"sampleSize" json:"sampleSize"`

	// MaxNormalAngleDeg gates verification matches by normal agreement
	// when both points carry normals.
	MaxNormalAngleDeg float64 `yaml:"maxNormalAngleDeg" json:"maxNormalAngleDeg"`

	// MaxColorDistance gates verification matches by RGB distance when both
	// points carry colors. Values >= DisabledColorDistance disable the gate.
	MaxColorDistance float64 `yaml:"maxColorDistance" json:"maxColorDistance"`

	// MaxTimeSeconds bounds the wall-clock time of the search.
	MaxTimeSeconds float64 `yaml:"maxTimeSeconds" json:"maxTimeSeconds"`

	// Algorithm selects the congruent-set strategy: AlgorithmSuper uses the
	// output-sensitive pair index, AlgorithmBrute direct pairwise enumeration.
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	// Workers is the number of parallel matching workers. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`

	// Seed makes runs reproducible. 0 seeds from the clock.
	Seed int64 `yaml:"seed" json:"seed"`

	// CoplanarityTolerance is the maximum distance of the fourth base point
	// from the plane of the first three, as a fraction of the cloud diameter.
	CoplanarityTolerance float64 `yaml:"coplanarityTolerance" json:"coplanarityTolerance"`

	// MinSpreadFraction is the minimum pairwise distance between base points
	// as a fraction of the maximum base diameter.
	MinSpreadFraction float64 `yaml:"minSpreadFraction" json:"minSpreadFraction"`

	// BaseAttempts caps the random draws per base selection before the
	// selection is reported as degenerate.
	BaseAttempts int `yaml:"baseAttempts" json:"baseAttempts"`

	// MaxBases caps the number of bases tried overall. 0 derives a budget
	// from OverlapEstimate.
	MaxBases int `yaml:"maxBases" json:"maxBases"`
}

// Algorithm variants accepted by Options.Algorithm.
const (
	AlgorithmSuper = "super"
	AlgorithmBrute = "brute"
)

// DefaultOptions mirrors the parameter set of the reference harness:
// aggressive sampling, color gate disabled, effectively unbounded time.
func DefaultOptions() Options {
	return Options{
		Delta:                0.01,
		OverlapEstimate:      0.2,
		OverlapThreshold:     1.0,
		SampleSize:           500,
		MaxNormalAngleDeg:    90.0,
		MaxColorDistance:     DisabledColorDistance,
		MaxTimeSeconds:       1e9,
		Algorithm:            AlgorithmSuper,
		Workers:              0,
		Seed:                 0,
		CoplanarityTolerance: 0.01,
		MinSpreadFraction:    0.2,
		BaseAttempts:         200,
		MaxBases:             0,
	}
}

// MatchResult is the outcome of one registration run: the best rigid
// transform found, its LCP score in [0,1] and run accounting. A zero score
// with an identity transform is a weak result, not an error.
type MatchResult struct {
	Transform  RigidTransform `json:"transform"`
	Score      float64        `json:"score"`
	Elapsed    time.Duration  `json:"elapsed"`
	Bases      int            `json:"bases"`
	Candidates int            `json:"candidates"`
}

// Recoverable geometric failures. Both abandon the current draw and let the
// registration loop continue; neither ever surfaces to the caller.
var (
	// ErrDegenerateBase means no well-conditioned planar base could be
	// drawn within the attempt budget.
	ErrDegenerateBase = errors.New("degenerate base: no well-conditioned planar quadruple found")

	// ErrSingularCorrespondence means the 4-point correspondence was too
	// close to collinear or coincident to determine a rigid transform.
	ErrSingularCorrespondence = errors.New("singular correspondence: points nearly collinear or coincident")
)
