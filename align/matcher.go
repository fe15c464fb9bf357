package align

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Matcher computes the rigid transform aligning a reference cloud onto a
// target cloud with no initial pose estimate. Implementations are safe for
// repeated use; each call is an independent run.
type Matcher interface {
	ComputeTransformation(ctx context.Context, ref, target Cloud) (MatchResult, error)
}

// NewMatcher validates opts and returns the matcher variant selected by
// Options.Algorithm. Validation failures here are the only fatal errors the
// registration core produces besides too-small input clouds.
func NewMatcher(opts Options) (Matcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch opts.Algorithm {
	case AlgorithmSuper:
		return &superMatcher{opts: opts}, nil
	case AlgorithmBrute:
		return &bruteMatcher{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q (want %q or %q)", opts.Algorithm, AlgorithmSuper, AlgorithmBrute)
	}
}

// Validate checks every field up front; an invalid configuration is fatal
// and never retried.
func (o Options) Validate() error {
	if o.Delta <= 0 {
		return fmt.Errorf("delta must be > 0, got %g", o.Delta)
	}
	if o.OverlapEstimate <= 0 || o.OverlapEstimate > 1 {
		return fmt.Errorf("overlapEstimate must be in (0, 1], got %g", o.OverlapEstimate)
	}
	if o.OverlapThreshold <= 0 || o.OverlapThreshold > 1 {
		return fmt.Errorf("overlapThreshold must be in (0, 1], got %g", o.OverlapThreshold)
	}
	if o.SampleSize <= 0 {
		return fmt.Errorf("sampleSize must be > 0, got %d", o.SampleSize)
	}
	if o.MaxNormalAngleDeg < 0 {
		return fmt.Errorf("maxNormalAngleDeg must be >= 0, got %g", o.MaxNormalAngleDeg)
	}
	if o.MaxColorDistance < 0 {
		return fmt.Errorf("maxColorDistance must be >= 0, got %g", o.MaxColorDistance)
	}
	if o.MaxTimeSeconds <= 0 {
		return fmt.Errorf("maxTimeSeconds must be > 0, got %g", o.MaxTimeSeconds)
	}
	if o.Algorithm != AlgorithmSuper && o.Algorithm != AlgorithmBrute {
		return fmt.Errorf("unknown algorithm %q", o.Algorithm)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", o.Workers)
	}
	if o.CoplanarityTolerance <= 0 {
		return fmt.Errorf("coplanarityTolerance must be > 0, got %g", o.CoplanarityTolerance)
	}
	if o.MinSpreadFraction <= 0 || o.MinSpreadFraction >= 1 {
		return fmt.Errorf("minSpreadFraction must be in (0, 1), got %g", o.MinSpreadFraction)
	}
	if o.BaseAttempts <= 0 {
		return fmt.Errorf("baseAttempts must be > 0, got %d", o.BaseAttempts)
	}
	if o.MaxBases < 0 {
		return fmt.Errorf("maxBases must be >= 0, got %d", o.MaxBases)
	}
	return nil
}

type superMatcher struct{ opts Options }

func (m *superMatcher) ComputeTransformation(ctx context.Context, ref, target Cloud) (MatchResult, error) {
	return runRegistration(ctx, m.opts, ref, target, true)
}

type bruteMatcher struct{ opts Options }

func (m *bruteMatcher) ComputeTransformation(ctx context.Context, ref, target Cloud) (MatchResult, error) {
	return runRegistration(ctx, m.opts, ref, target, false)
}

// bestResult is the single piece of mutable state shared across workers.
// Updates are mutually exclusive and strictly-greater, so the tracked score
// is non-decreasing regardless of worker scheduling.
type bestResult struct {
	mu        sync.Mutex
	transform RigidTransform
	score     float64
}

// update installs (t, score) iff score strictly improves on the best seen,
// and reports whether it did.
func (b *bestResult) update(t RigidTransform, score float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if score > b.score {
		b.transform = t
		b.score = score
		return true
	}
	return false
}

func (b *bestResult) snapshot() (RigidTransform, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transform, b.score
}

// baseBudget derives the number of bases to try when the caller left
// MaxBases at 0: rarer overlap needs more draws before a base lands fully
// inside the common region.
func baseBudget(opts Options) int {
	if opts.MaxBases > 0 {
		return opts.MaxBases
	}
	n := int(100.0 / opts.OverlapEstimate)
	if n < 64 {
		n = 64
	}
	if n > 10000 {
		n = 10000
	}
	return n
}

// runRegistration is the shared loop behind both matcher variants:
// Init -> SelectBase -> FindCongruentSets -> EstimateAndVerify, cycled by a
// bounded worker pool until the time budget, the base budget or the early
// overlap threshold ends the run. The returned result may be the identity
// with score 0; that is a weak outcome, not an error.
func runRegistration(ctx context.Context, opts Options, ref, target Cloud, smart bool) (MatchResult, error) {
	start := time.Now()

	ref = CleanInvalidNormals(ref)
	target = CleanInvalidNormals(target)
	if len(ref) < 4 {
		return MatchResult{}, fmt.Errorf("reference cloud has %d points, need at least 4", len(ref))
	}
	if len(target) < 4 {
		return MatchResult{}, fmt.Errorf("target cloud has %d points, need at least 4", len(target))
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// Bases are drawn from a subsample of the reference; congruent sets are
	// searched in a subsample of the target. Verification runs the reference
	// sample against the full target so the score reflects true overlap
	// rather than subsampling luck.
	pSample := subsample(ref, opts.SampleSize, rng)
	qSample := subsample(target, opts.SampleSize, rng)
	pPts := pSample.Positions()
	qPts := qSample.Positions()

	selector := newBaseSelector(pPts, pSample.Diameter(), opts)
	verify := newVerifier(pSample, target, opts)

	var pairIdx *PairIndex
	if smart {
		pairIdx = NewPairIndex(qPts, opts.Delta)
	}

	budget := time.Duration(opts.MaxTimeSeconds * float64(time.Second))
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	maxBases := int64(baseBudget(opts))
	var basesTried, candidates int64
	best := &bestResult{transform: IdentityTransform()}

	g, runCtx := errgroup.WithContext(runCtx)
	for w := 0; w < workers; w++ {
		wrng := rand.New(rand.NewSource(rng.Int63()))
		g.Go(func() error {
			for {
				if runCtx.Err() != nil {
					return nil
				}
				if atomic.AddInt64(&basesTried, 1) > maxBases {
					return nil
				}

				base, err := selector.Select(wrng)
				if err != nil {
					// Degenerate draw: recoverable, consumes one base slot.
					continue
				}

				var sets []CongruentSet
				if smart {
					sets = findCongruentSmart(base, pairIdx, opts.Delta)
				} else {
					sets = findCongruentBrute(base, qPts, opts.Delta)
				}
				atomic.AddInt64(&candidates, int64(len(sets)))

				basePts := base.Points(pPts)
				src := basePts[:]
				for _, set := range sets {
					if runCtx.Err() != nil {
						return nil
					}
					dst := []Vec3{qPts[set[0]], qPts[set[1]], qPts[set[2]], qPts[set[3]]}
					t, err := EstimateRigid(src, dst)
					if err != nil {
						// Singular correspondence: skip, never fatal.
						continue
					}
					score := verify.Score(t)
					if best.update(t, score) && score >= opts.OverlapThreshold {
						cancel()
						return nil
					}
				}
			}
		})
	}
	// Workers only return nil; the group exists for pooling and ctx plumbing.
	_ = g.Wait()

	transform, score := best.snapshot()
	res := MatchResult{
		Transform:  transform,
		Score:      score,
		Elapsed:    time.Since(start),
		Bases:      int(min(atomic.LoadInt64(&basesTried), maxBases)),
		Candidates: int(atomic.LoadInt64(&candidates)),
	}
	log.Printf("registration: score=%.3f bases=%d candidates=%d elapsed=%s",
		res.Score, res.Bases, res.Candidates, res.Elapsed.Round(time.Millisecond))
	return res, nil
}
