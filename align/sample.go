package align

import (
	"log"
	"math/rand"
)

// minNormalNorm is the length below which a stored normal is considered
// invalid rather than merely unnormalized.
const minNormalNorm = 0.1

// CleanInvalidNormals returns a filtered copy of the cloud: points whose
// normal is present but near-zero are dropped, and remaining normals are
// renormalized to unit length. The input is never modified; positions and
// attributes stay index-aligned in the output.
func CleanInvalidNormals(c Cloud) Cloud {
	out := make(Cloud, 0, len(c))
	removed := 0
	for _, p := range c {
		if !p.HasNormal {
			out = append(out, p)
			continue
		}
		n := p.Normal.Norm()
		if n < minNormalNorm {
			removed++
			continue
		}
		if n != 1 {
			p.Normal = p.Normal.Scale(1 / n)
		}
		out = append(out, p)
	}
	if removed > 0 {
		log.Printf("Removed %d points with invalid normals", removed)
	}
	return out
}

// subsample returns up to n points drawn uniformly at random without
// replacement. The whole cloud is returned (copied) when it is already
// small enough.
func subsample(c Cloud, n int, rng *rand.Rand) Cloud {
	if len(c) <= n {
		out := make(Cloud, len(c))
		copy(out, c)
		return out
	}
	perm := rng.Perm(len(c))
	out := make(Cloud, n)
	for i := 0; i < n; i++ {
		out[i] = c[perm[i]]
	}
	return out
}
