package align

import "math"

// verifier scores candidate transforms by largest-common-pointset overlap:
// the fraction of sampled reference points whose transformed position finds
// a compatible target neighbor. The target index is built once over the
// full target cloud and shared read-only by all workers.
type verifier struct {
	sample Cloud // (sub)sampled reference points
	target Cloud
	index  *NeighborIndex

	delta         float64
	minNormalDot  float64 // cos(MaxNormalAngleDeg)
	maxColorDist  float64
	useNormalGate bool
	useColorGate  bool
}

func newVerifier(sample, target Cloud, opts Options) *verifier {
	return &verifier{
		sample:        sample,
		target:        target,
		index:         NewNeighborIndex(target.Positions(), opts.Delta),
		delta:         opts.Delta,
		minNormalDot:  math.Cos(opts.MaxNormalAngleDeg * math.Pi / 180),
		maxColorDist:  opts.MaxColorDistance,
		useNormalGate: opts.MaxNormalAngleDeg < 180,
		useColorGate:  opts.MaxColorDistance < DisabledColorDistance,
	}
}

// Score returns the LCP score of a transform in [0,1]: matched sample
// points over total sample points. A sample point matches iff its nearest
// target neighbor is within delta and passes the normal and color gates
// when both sides carry those attributes.
func (v *verifier) Score(t RigidTransform) float64 {
	if len(v.sample) == 0 {
		return 0
	}
	matched := 0
	for _, p := range v.sample {
		tp := t.ApplyPoint(p)
		i, dist := v.index.NearestWithin(tp.Pos, v.delta)
		if i < 0 || dist > v.delta {
			continue
		}
		q := v.target[i]
		if v.useNormalGate && tp.HasNormal && q.HasNormal {
			if tp.Normal.Dot(q.Normal) < v.minNormalDot {
				continue
			}
		}
		if v.useColorGate && tp.HasColor && q.HasColor {
			if tp.Color.Dist(q.Color) > v.maxColorDist {
				continue
			}
		}
		matched++
	}
	return float64(matched) / float64(len(v.sample))
}
