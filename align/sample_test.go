package align

import (
	"math"
	"math/rand"
	"testing"
)

func TestCleanInvalidNormalsDropsZeroNormals(t *testing.T) {
	c := Cloud{
		{Pos: Vec3{0, 0, 0}, Normal: Vec3{0, 0, 1}, HasNormal: true},
		{Pos: Vec3{1, 0, 0}, Normal: Vec3{0, 0, 0}, HasNormal: true},
		{Pos: Vec3{2, 0, 0}, Normal: Vec3{1e-6, 0, 0}, HasNormal: true},
		{Pos: Vec3{3, 0, 0}},
	}
	out := CleanInvalidNormals(c)
	if len(out) != 2 {
		t.Fatalf("got %d points, want 2", len(out))
	}
	if out[0].Pos.X != 0 || out[1].Pos.X != 3 {
		t.Errorf("wrong survivors: %+v", out)
	}
}

func TestCleanInvalidNormalsRenormalizes(t *testing.T) {
	c := Cloud{
		{Pos: Vec3{0, 0, 0}, Normal: Vec3{0, 0, 4}, HasNormal: true},
	}
	out := CleanInvalidNormals(c)
	if len(out) != 1 {
		t.Fatalf("got %d points, want 1", len(out))
	}
	if math.Abs(out[0].Normal.Norm()-1) > 1e-12 {
		t.Errorf("normal not unit length: %+v", out[0].Normal)
	}
}

func TestCleanInvalidNormalsIsPure(t *testing.T) {
	c := Cloud{
		{Pos: Vec3{0, 0, 0}, Normal: Vec3{0, 0, 4}, HasNormal: true},
		{Pos: Vec3{1, 0, 0}, Normal: Vec3{0, 0, 0}, HasNormal: true},
	}
	_ = CleanInvalidNormals(c)
	if c[0].Normal.Z != 4 {
		t.Error("input normal was modified")
	}
	if len(c) != 2 {
		t.Error("input length changed")
	}
}

func TestCleanInvalidNormalsKeepsBareClouds(t *testing.T) {
	c := positionsToCloud(planarGrid(3, 1))
	out := CleanInvalidNormals(c)
	if len(out) != len(c) {
		t.Errorf("normal-free cloud shrank from %d to %d", len(c), len(out))
	}
}

func TestSubsampleSize(t *testing.T) {
	rng := rand.New(rand.NewSource(61))
	c := positionsToCloud(randomCloudPositions(100, 5, rng))

	small := subsample(c, 30, rng)
	if len(small) != 30 {
		t.Errorf("got %d points, want 30", len(small))
	}

	all := subsample(c, 200, rng)
	if len(all) != 100 {
		t.Errorf("oversized request: got %d points, want 100", len(all))
	}
}

func TestSubsampleNoDuplicates(t *testing.T) {
	rng := rand.New(rand.NewSource(62))
	c := positionsToCloud(randomCloudPositions(50, 5, rng))
	out := subsample(c, 25, rng)

	seen := map[Vec3]bool{}
	for _, p := range out {
		if seen[p.Pos] {
			t.Fatalf("duplicate point %+v in subsample", p.Pos)
		}
		seen[p.Pos] = true
	}
}

func TestSubsampleCopies(t *testing.T) {
	rng := rand.New(rand.NewSource(63))
	c := positionsToCloud(planarGrid(3, 1))
	out := subsample(c, 100, rng)
	out[0].Pos.X = 999
	if c[0].Pos.X == 999 {
		t.Error("subsample aliases its input")
	}
}

func TestSubsampleDeterministic(t *testing.T) {
	c := positionsToCloud(planarGrid(8, 1))
	a := subsample(c, 10, rand.New(rand.NewSource(99)))
	b := subsample(c, 10, rand.New(rand.NewSource(99)))
	for i := range a {
		if a[i].Pos != b[i].Pos {
			t.Fatal("same seed produced different subsamples")
		}
	}
}
