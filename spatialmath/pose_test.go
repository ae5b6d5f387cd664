package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func vectorAlmostEqual(t *testing.T, a, b r3.Vector, epsilon float64) {
	t.Helper()
	test.That(t, a.Sub(b).Norm(), test.ShouldBeLessThan, epsilon)
}

func TestRotateVector(t *testing.T) {
	quarterZ := R4AA{Theta: math.Pi / 2, RZ: 1}.ToQuat()
	vectorAlmostEqual(t, RotateVector(quarterZ, r3.Vector{X: 1}), r3.Vector{Y: 1}, 1e-9)
	vectorAlmostEqual(t, RotateVector(quarterZ, r3.Vector{Y: 1}), r3.Vector{X: -1}, 1e-9)
	// rotation axis itself is unmoved
	vectorAlmostEqual(t, RotateVector(quarterZ, r3.Vector{Z: 1}), r3.Vector{Z: 1}, 1e-9)
	// zero vector stays zero
	vectorAlmostEqual(t, RotateVector(quarterZ, r3.Vector{}), r3.Vector{}, 1e-12)
}

func TestPoseTransformPoint(t *testing.T) {
	pose := NewPoseFromAxisAngle(r3.Vector{X: 1}, r3.Vector{Z: 1}, math.Pi/2)
	vectorAlmostEqual(t, pose.TransformPoint(r3.Vector{X: 1}), r3.Vector{X: 1, Y: 1}, 1e-9)

	identity := NewZeroPose()
	vectorAlmostEqual(t, identity.TransformPoint(r3.Vector{X: 2, Y: 3, Z: 4}), r3.Vector{X: 2, Y: 3, Z: 4}, 1e-12)
}

func TestCompose(t *testing.T) {
	a := NewPoseFromPoint(r3.Vector{X: 1})
	b := NewPoseFromAxisAngle(r3.Vector{Y: 2}, r3.Vector{Z: 1}, math.Pi/2)
	ab := Compose(a, b)
	vectorAlmostEqual(t, ab.Point(), r3.Vector{X: 1, Y: 2}, 1e-9)
	// composition applies b's rotation after a's translation
	vectorAlmostEqual(t, ab.TransformPoint(r3.Vector{X: 1}), r3.Vector{X: 1, Y: 3}, 1e-9)
}

func TestInvert(t *testing.T) {
	pose := NewPoseFromAxisAngle(r3.Vector{X: 1, Y: -2, Z: 0.5}, r3.Vector{X: 1, Y: 1}, 0.7)
	roundTrip := Compose(pose, pose.Invert())
	test.That(t, roundTrip.AlmostEqual(NewZeroPose(), 1e-9), test.ShouldBeTrue)
}

func TestQuatToR4AA(t *testing.T) {
	original := R4AA{Theta: 1.2, RX: 0, RY: 0, RZ: 1}
	recovered := QuatToR4AA(original.ToQuat())
	test.That(t, recovered.Theta, test.ShouldAlmostEqual, 1.2, 1e-9)
	vectorAlmostEqual(t, recovered.Axis(), r3.Vector{Z: 1}, 1e-9)

	// identity rotation has an arbitrary axis but zero theta
	identity := QuatToR4AA(NewZeroPose().Orientation())
	test.That(t, identity.Theta, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestEulerToQuat(t *testing.T) {
	yaw := EulerToQuat(0, 0, math.Pi/2)
	vectorAlmostEqual(t, RotateVector(yaw, r3.Vector{X: 1}), r3.Vector{Y: 1}, 1e-9)

	roll := EulerToQuat(math.Pi/2, 0, 0)
	vectorAlmostEqual(t, RotateVector(roll, r3.Vector{Y: 1}), r3.Vector{Z: 1}, 1e-9)
}

func TestQuatAlmostEqual(t *testing.T) {
	q := R4AA{Theta: 0.5, RZ: 1}.ToQuat()
	negated := q
	negated.Real, negated.Imag, negated.Jmag, negated.Kmag = -q.Real, -q.Imag, -q.Jmag, -q.Kmag
	// q and -q are the same orientation
	test.That(t, QuatAlmostEqual(q, negated, 1e-9), test.ShouldBeTrue)

	other := R4AA{Theta: 0.6, RZ: 1}.ToQuat()
	test.That(t, QuatAlmostEqual(q, other, 1e-6), test.ShouldBeFalse)
}
