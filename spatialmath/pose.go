// Package spatialmath defines the spatial mathematical operations needed to
// pose rigid bodies in 3D space: quaternion orientations, axis angles, and
// rigid transforms composed of a rotation and a translation.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a rotation followed by a translation. The zero
// value is not a valid pose; use NewZeroPose for the identity.
type Pose struct {
	o quat.Number
	t r3.Vector
}

// NewZeroPose returns the identity pose, which transforms nothing.
func NewZeroPose() Pose {
	return Pose{o: quat.Number{Real: 1}}
}

// NewPose creates a pose from an orientation quaternion and a translation.
func NewPose(o quat.Number, t r3.Vector) Pose {
	return Pose{o: o, t: t}
}

// NewPoseFromPoint creates a pose with the identity orientation at the given point.
func NewPoseFromPoint(pt r3.Vector) Pose {
	return Pose{o: quat.Number{Real: 1}, t: pt}
}

// NewPoseFromAxisAngle creates a pose rotated by the given axis angle at the given point.
func NewPoseFromAxisAngle(pt, axis r3.Vector, theta float64) Pose {
	if theta == 0 {
		return Pose{o: quat.Number{Real: 1}, t: pt}
	}
	aa := R4AA{Theta: theta, RX: axis.X, RY: axis.Y, RZ: axis.Z}
	return Pose{o: aa.ToQuat(), t: pt}
}

// Point returns the translation component of the pose.
func (p Pose) Point() r3.Vector {
	return p.t
}

// Orientation returns the rotation component of the pose as a quaternion.
func (p Pose) Orientation() quat.Number {
	return p.o
}

// TransformPoint applies the pose to a point, rotating then translating it.
func (p Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return RotateVector(p.o, pt).Add(p.t)
}

// Compose returns the pose equivalent to applying b in a's frame, i.e. a * b.
func Compose(a, b Pose) Pose {
	return Pose{
		o: quat.Mul(a.o, b.o),
		t: a.TransformPoint(b.t),
	}
}

// Invert returns q such that Compose(p, q) is the identity.
func (p Pose) Invert() Pose {
	inv := quat.Conj(p.o)
	return Pose{
		o: inv,
		t: RotateVector(inv, p.t.Mul(-1)),
	}
}

// AlmostEqual returns whether two poses are within epsilon of each other in
// both position and orientation.
func (p Pose) AlmostEqual(o Pose, epsilon float64) bool {
	if p.t.Sub(o.t).Norm() > epsilon {
		return false
	}
	return QuatAlmostEqual(p.o, o.o, epsilon)
}

// RotateVector rotates a vector by a unit quaternion.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	if v == (r3.Vector{}) {
		return v
	}
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rq := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: rq.Imag, Y: rq.Jmag, Z: rq.Kmag}
}

// QuatAlmostEqual checks quaternion equality up to sign, since q and -q
// represent the same orientation.
func QuatAlmostEqual(a, b quat.Number, epsilon float64) bool {
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return math.Abs(math.Abs(dot)-1) < epsilon
}

// OrientationBetween returns the quaternion representing the rotation taking
// orientation a to orientation b.
func OrientationBetween(a, b quat.Number) quat.Number {
	return quat.Mul(b, quat.Conj(a))
}
