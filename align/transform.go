package align

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and w.
func (v Vec3) Dot(w Vec3) float64 { return v.X*w.X + v.Y*w.Y + v.Z*w.Z }

// Cross returns the cross product of v and w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v.Y*w.Z - v.Z*w.Y,
		v.Z*w.X - v.X*w.Z,
		v.X*w.Y - v.Y*w.X,
	}
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalize returns v scaled to unit length, or the zero vector if v is
// too short to normalize.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n < 1e-12 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// Lerp returns the point fraction t along the segment from v to w.
func (v Vec3) Lerp(w Vec3, t float64) Vec3 {
	return Vec3{
		v.X + (w.X-v.X)*t,
		v.Y + (w.Y-v.Y)*t,
		v.Z + (w.Z-v.Z)*t,
	}
}

// Dist returns the Euclidean distance between v and w.
func (v Vec3) Dist(w Vec3) float64 { return v.Sub(w).Norm() }

// RigidTransform is a rotation (row-major orthonormal 3x3) plus translation.
// Points map as p' = R*p + T.
type RigidTransform struct {
	R [3][3]float64 `json:"r"`
	T Vec3          `json:"t"`
}

// IdentityTransform returns the identity rigid transform.
func IdentityTransform() RigidTransform {
	return RigidTransform{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Apply maps a position through the transform.
func (t RigidTransform) Apply(p Vec3) Vec3 {
	return Vec3{
		t.R[0][0]*p.X + t.R[0][1]*p.Y + t.R[0][2]*p.Z + t.T.X,
		t.R[1][0]*p.X + t.R[1][1]*p.Y + t.R[1][2]*p.Z + t.T.Y,
		t.R[2][0]*p.X + t.R[2][1]*p.Y + t.R[2][2]*p.Z + t.T.Z,
	}
}

// Rotate applies only the rotation component, for directions and normals.
func (t RigidTransform) Rotate(v Vec3) Vec3 {
	return Vec3{
		t.R[0][0]*v.X + t.R[0][1]*v.Y + t.R[0][2]*v.Z,
		t.R[1][0]*v.X + t.R[1][1]*v.Y + t.R[1][2]*v.Z,
		t.R[2][0]*v.X + t.R[2][1]*v.Y + t.R[2][2]*v.Z,
	}
}

// ApplyPoint transforms a full point, rotating its normal when present.
func (t RigidTransform) ApplyPoint(p Point3) Point3 {
	out := p
	out.Pos = t.Apply(p.Pos)
	if p.HasNormal {
		out.Normal = t.Rotate(p.Normal)
	}
	return out
}

// Compose returns the transform equivalent to applying u first, then t.
func (t RigidTransform) Compose(u RigidTransform) RigidTransform {
	var out RigidTransform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = t.R[i][0]*u.R[0][j] + t.R[i][1]*u.R[1][j] + t.R[i][2]*u.R[2][j]
		}
	}
	out.T = t.Apply(u.T)
	return out
}

// Inverse returns the inverse transform. For a rigid transform the inverse
// rotation is the transpose.
func (t RigidTransform) Inverse() RigidTransform {
	var out RigidTransform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = t.R[j][i]
		}
	}
	out.T = out.Rotate(t.T).Scale(-1)
	return out
}

// Matrix4 returns the transform as a 4x4 homogeneous matrix.
func (t RigidTransform) Matrix4() [4][4]float64 {
	return [4][4]float64{
		{t.R[0][0], t.R[0][1], t.R[0][2], t.T.X},
		{t.R[1][0], t.R[1][1], t.R[1][2], t.T.Y},
		{t.R[2][0], t.R[2][1], t.R[2][2], t.T.Z},
		{0, 0, 0, 1},
	}
}

// RotationAngle returns the rotation angle in radians, from the trace.
func (t RigidTransform) RotationAngle() float64 {
	tr := t.R[0][0] + t.R[1][1] + t.R[2][2]
	c := (tr - 1) / 2
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c)
}

// AngleBetween returns the rotation angle in radians separating two
// transforms, a useful error metric against a ground-truth pose.
func AngleBetween(a, b RigidTransform) float64 {
	return a.Compose(b.Inverse()).RotationAngle()
}

// RotationAboutZ builds a rotation of the given angle (radians) about the
// z axis with zero translation.
func RotationAboutZ(angle float64) RigidTransform {
	c, s := math.Cos(angle), math.Sin(angle)
	t := IdentityTransform()
	t.R = [3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
	return t
}

// QuaternionTransform builds a rigid transform from a unit quaternion
// (x, y, z, w) and a translation, the pose encoding used by Stanford
// conf files.
func QuaternionTransform(qx, qy, qz, qw float64, t Vec3) RigidTransform {
	n := math.Sqrt(qx*qx + qy*qy + qz*qz + qw*qw)
	if n > 1e-12 {
		qx, qy, qz, qw = qx/n, qy/n, qz/n, qw/n
	}
	return RigidTransform{
		R: [3][3]float64{
			{1 - 2*(qy*qy+qz*qz), 2 * (qx*qy - qz*qw), 2 * (qx*qz + qy*qw)},
			{2 * (qx*qy + qz*qw), 1 - 2*(qx*qx+qz*qz), 2 * (qy*qz - qx*qw)},
			{2 * (qx*qz - qy*qw), 2 * (qy*qz + qx*qw), 1 - 2*(qx*qx+qy*qy)},
		},
		T: t,
	}
}

// TransformCloud returns a transformed copy of a cloud, rotating normals
// along with positions. The input is not modified.
func TransformCloud(c Cloud, t RigidTransform) Cloud {
	out := make(Cloud, len(c))
	for i, p := range c {
		out[i] = t.ApplyPoint(p)
	}
	return out
}

// centroid of a position set.
func centroid(pts []Vec3) Vec3 {
	var sum Vec3
	for _, p := range pts {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(pts)))
}

// EstimateRigid computes the rigid transform minimizing the sum of squared
// distances between corresponding points (orthogonal Procrustes via SVD of
// the cross-covariance, with reflection correction). Returns
// ErrSingularCorrespondence when the correspondence is too close to
// collinear or coincident to pin down a rotation.
func EstimateRigid(src, dst []Vec3) (RigidTransform, error) {
	if len(src) < 3 || len(src) != len(dst) {
		return IdentityTransform(), ErrSingularCorrespondence
	}

	cs := centroid(src)
	cd := centroid(dst)

	// Cross-covariance H = sum (src_i - cs)(dst_i - cd)^T.
	h := mat.NewDense(3, 3, nil)
	var spread float64
	for i := range src {
		s := src[i].Sub(cs)
		d := dst[i].Sub(cd)
		spread += s.Norm()
		sv := [3]float64{s.X, s.Y, s.Z}
		dv := [3]float64{d.X, d.Y, d.Z}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				h.Set(r, c, h.At(r, c)+sv[r]*dv[c])
			}
		}
	}
	if spread < 1e-12 {
		return IdentityTransform(), ErrSingularCorrespondence
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return IdentityTransform(), ErrSingularCorrespondence
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)

	// Two vanishing singular values mean the correspondence is a line (or a
	// point): rotation about it is unconstrained.
	if vals[1] < 1e-9*math.Max(vals[0], 1e-300) {
		return IdentityTransform(), ErrSingularCorrespondence
	}

	// R = V * diag(1, 1, det(V U^T)) * U^T keeps the result a proper rotation.
	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
	}

	var out RigidTransform
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = r.At(i, j)
		}
	}
	out.T = cd.Sub(out.Rotate(cs))
	return out, nil
}
